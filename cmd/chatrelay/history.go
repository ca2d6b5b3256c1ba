package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

type HistoryCommand struct {
	ClientFlags `embed:""`
	LogLevel    string `help:"The log level to use." env:"LOG_LEVEL" default:"warn"`
}

func (c HistoryCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	session, s, err := c.openSession(ctx, log, c.transport(), nil)
	if err != nil {
		return err
	}
	defer s.Close()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err = enc.Encode(session.Snapshot().Messages); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	return nil
}
