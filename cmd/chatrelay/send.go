package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/a-h/chatrelay/chat"
)

type SendCommand struct {
	ClientFlags `embed:""`
	Message     string `arg:"" optional:"" help:"The message to send. Read from stdin if omitted."`
	LogLevel    string `help:"The log level to use." env:"LOG_LEVEL" default:"warn"`
}

// printingTransport writes each fragment of the reply to w as it arrives.
type printingTransport struct {
	chat.Transport
	w io.Writer
}

func (t printingTransport) Stream(ctx context.Context, message string, onText func(text string) error) error {
	return t.Transport.Stream(ctx, message, func(text string) error {
		if _, err := io.WriteString(t.w, text); err != nil {
			return err
		}
		return onText(text)
	})
}

func readMessage(arg string, stdin io.Reader) (string, error) {
	if arg != "" {
		return arg, nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read message from stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (c SendCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	msg, err := readMessage(c.Message, os.Stdin)
	if err != nil {
		return err
	}
	session, s, err := c.openSession(ctx, log, printingTransport{Transport: c.transport(), w: os.Stdout}, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	err = session.Send(ctx, msg)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("%s: %w", chat.ErrorMessage, err)
	}
	return nil
}
