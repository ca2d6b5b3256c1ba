package main

import (
	"context"
	"log/slog"
)

type NewCommand struct {
	ClientFlags `embed:""`
	LogLevel    string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c NewCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	session, s, err := c.openSession(ctx, log, c.transport(), nil)
	if err != nil {
		return err
	}
	defer s.Close()
	cleared := len(session.Snapshot().Messages)
	if err = session.NewChat(ctx); err != nil {
		return err
	}
	log.Info("started a new chat", slog.Int("clearedMessages", cleared))
	return nil
}
