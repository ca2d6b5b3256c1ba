package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/a-h/chatrelay/models"
)

// ErrStreamFailed is returned when the relay reports a failure after the reply started.
var ErrStreamFailed = errors.New("chat: reply stream failed")

// Transport sends one message to the relay and calls onText with the decoded reply,
// fragment by fragment, in order.
type Transport interface {
	Stream(ctx context.Context, message string, onText func(text string) error) error
}

type ChatPoster interface {
	ChatPost(ctx context.Context, request models.ChatPostRequest, f func(ctx context.Context, chunk []byte) error) error
}

// PlainTransport reads the plain text protocol.
type PlainTransport struct {
	Client ChatPoster
}

func (t PlainTransport) Stream(ctx context.Context, message string, onText func(text string) error) error {
	dec := NewDecoder()
	err := t.Client.ChatPost(ctx, models.ChatPostRequest{Message: message}, func(ctx context.Context, chunk []byte) error {
		text, err := dec.Decode(chunk)
		if err != nil {
			return fmt.Errorf("failed to decode chunk: %w", err)
		}
		if text == "" {
			return nil
		}
		return onText(text)
	})
	if err != nil {
		return err
	}
	text, err := dec.Flush()
	if err != nil {
		return fmt.Errorf("failed to decode end of stream: %w", err)
	}
	if text == "" {
		return nil
	}
	return onText(text)
}

type ChatEventPoster interface {
	ChatPostEvents(ctx context.Context, request models.ChatPostRequest, f func(ctx context.Context, event models.ChatEvent) error) error
}

// FramedTransport reads the newline delimited JSON protocol, where failures are
// separate events instead of text in the reply.
type FramedTransport struct {
	Client ChatEventPoster
}

func (t FramedTransport) Stream(ctx context.Context, message string, onText func(text string) error) error {
	return t.Client.ChatPostEvents(ctx, models.ChatPostRequest{Message: message}, func(ctx context.Context, event models.ChatEvent) error {
		switch event.Type {
		case models.ChatEventTypeContent:
			if event.Text == "" {
				return nil
			}
			return onText(event.Text)
		case models.ChatEventTypeError:
			return fmt.Errorf("%w: %s", ErrStreamFailed, event.Text)
		}
		return nil
	})
}
