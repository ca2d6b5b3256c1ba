package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a-h/chatrelay/chat"
	"github.com/a-h/chatrelay/client"
	"github.com/a-h/chatrelay/store"
)

// ClientFlags are shared by the commands that talk to the relay or read the saved
// conversation.
type ClientFlags struct {
	RelayURL    string `help:"The URL of the chat relay." env:"CHAT_RELAY_URL" default:"http://localhost:3001"`
	RelayAPIKey string `help:"The API key for the chat relay." env:"CHAT_RELAY_API_KEY" default:""`
	StoreURL    string `help:"Where the conversation is saved: file:///dir, redis://host:6379/0 or http://host:4001 for rqlite. Defaults to a directory in the user config directory." env:"CHAT_STORE_URL" default:""`
	Framed      bool   `help:"Ask the relay for newline delimited JSON events instead of plain text." env:"CHAT_FRAMED" default:"false"`
}

func (f ClientFlags) transport() chat.Transport {
	c := client.New(f.RelayURL, f.RelayAPIKey)
	if f.Framed {
		return chat.FramedTransport{Client: c}
	}
	return chat.PlainTransport{Client: c}
}

func (f ClientFlags) openStore(ctx context.Context) (store.Store, error) {
	u := f.StoreURL
	if u == "" {
		var err error
		if u, err = store.DefaultURL(); err != nil {
			return nil, err
		}
	}
	s, err := store.Open(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}
	return s, nil
}

// openSession opens the store and loads the saved conversation. The caller must close
// the returned store.
func (f ClientFlags) openSession(ctx context.Context, log *slog.Logger, t chat.Transport, onChange func(chat.Snapshot)) (*chat.Session, store.Store, error) {
	s, err := f.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	session := chat.NewSession(log, t, s, onChange)
	if err = session.Load(ctx); err != nil {
		s.Close()
		return nil, nil, err
	}
	return session, s, nil
}
