package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/a-h/chatrelay/models"
)

// LogKey is the store key the conversation log is kept under.
const LogKey = "chatMessages"

// ErrorMessage is shown to the user when a send fails, whatever the cause.
const ErrorMessage = "An error occurred while communicating with the server. Please try again."

var (
	ErrSendInProgress = errors.New("chat: a message is already being sent")
	ErrBlankMessage   = errors.New("chat: message is blank")
)

// Store persists the conversation log.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Snapshot is the state of a session at one point in time. Messages must not be modified.
type Snapshot struct {
	Messages Log
	// Sending is true from the moment a message is sent until its reply ends.
	Sending bool
	// Err is the user facing error of the last send, if it failed.
	Err string
	// Version increases with every change.
	Version uint64
}

// Session owns a conversation: it sends messages, merges replies into the log and
// persists the log after every change. At most one send is in flight at a time.
type Session struct {
	log       *slog.Logger
	transport Transport
	store     Store
	onChange  func(Snapshot)

	mu       sync.Mutex
	messages Log
	sending  bool
	err      string
	turn     uint64
	version  uint64

	persistMu sync.Mutex
	persisted uint64
}

// NewSession creates a session. onChange is called with each new snapshot, from the
// goroutine that made the change, and may be nil. Snapshots can arrive out of order when
// callers change the session from several goroutines; use Version to discard stale ones.
func NewSession(log *slog.Logger, transport Transport, store Store, onChange func(Snapshot)) *Session {
	if onChange == nil {
		onChange = func(Snapshot) {}
	}
	return &Session{
		log:       log,
		transport: transport,
		store:     store,
		onChange:  onChange,
		messages:  Log{},
	}
}

// Load reads the persisted log, replacing the log in memory.
func (s *Session) Load(ctx context.Context) error {
	data, ok, err := s.store.Get(ctx, LogKey)
	if err != nil {
		return fmt.Errorf("failed to read conversation log: %w", err)
	}
	messages := Log{}
	if ok && len(data) > 0 {
		if err = json.Unmarshal(data, &messages); err != nil {
			return fmt.Errorf("failed to decode conversation log: %w", err)
		}
		if messages == nil {
			messages = Log{}
		}
	}
	s.mu.Lock()
	s.messages = messages
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.persistMu.Lock()
	s.persisted = snap.Version
	s.persistMu.Unlock()
	s.log.Debug("conversation log loaded", slog.Int("messages", len(messages)))
	s.onChange(snap)
	return nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Messages: s.messages,
		Sending:  s.sending,
		Err:      s.err,
		Version:  s.version,
	}
}

// Send adds the message to the log, then streams the reply into the last message of the
// log until the reply ends. The user message is kept even if the send fails.
func (s *Session) Send(ctx context.Context, text string) (err error) {
	if strings.TrimSpace(text) == "" {
		return ErrBlankMessage
	}
	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return ErrSendInProgress
	}
	s.sending = true
	s.err = ""
	s.turn++
	turn := s.turn
	s.messages = AppendUser(s.messages, text)
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(ctx, snap)

	var reply strings.Builder
	var replied bool
	err = s.transport.Stream(ctx, text, func(fragment string) error {
		reply.WriteString(fragment)
		replied = true
		s.update(ctx, turn, func(messages Log) Log {
			return MergeReply(messages, reply.String())
		})
		return nil
	})

	final := reply.String()
	if err == nil {
		// The plain protocol reports late failures as text at the end of the reply.
		if rest, found := strings.CutSuffix(final, models.ErrorSentinel); found {
			final = rest
			err = fmt.Errorf("%w: relay reported an error", ErrStreamFailed)
		}
	}

	s.mu.Lock()
	s.sending = false
	if s.turn == turn {
		switch {
		case err == nil || final != "":
			// A successful turn always ends with a bot message, even an empty one.
			s.messages = MergeReply(s.messages, final)
		case replied:
			// Nothing but the sentinel arrived.
			s.messages = DropReply(s.messages)
		}
		if err != nil {
			s.err = ErrorMessage
		}
	}
	s.version++
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.publish(ctx, snap)

	if err != nil {
		s.log.Error("failed to send message", slog.Any("error", err), slog.Int("replyLength", len(final)))
		return err
	}
	s.log.Debug("reply received", slog.Int("replyLength", len(final)))
	return nil
}

// NewChat empties the log and persists the empty log. A reply that is still streaming
// keeps the session busy until it ends, but none of it is added to the new log.
func (s *Session) NewChat(ctx context.Context) error {
	s.mu.Lock()
	s.messages = Log{}
	s.err = ""
	s.turn++
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()
	err := s.persist(ctx, snap)
	s.onChange(snap)
	return err
}

// update applies f to the log if turn is still the current turn.
func (s *Session) update(ctx context.Context, turn uint64, f func(Log) Log) {
	s.mu.Lock()
	if s.turn != turn {
		s.mu.Unlock()
		return
	}
	s.messages = f(s.messages)
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(ctx, snap)
}

func (s *Session) publish(ctx context.Context, snap Snapshot) {
	if err := s.persist(ctx, snap); err != nil {
		s.log.Error("failed to persist conversation log", slog.Any("error", err))
	}
	s.onChange(snap)
}

// persist writes the log of snap unless a newer version has already been written.
func (s *Session) persist(ctx context.Context, snap Snapshot) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if snap.Version <= s.persisted {
		return nil
	}
	messages := snap.Messages
	if messages == nil {
		messages = Log{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode conversation log: %w", err)
	}
	if err = s.store.Set(ctx, LogKey, data); err != nil {
		return fmt.Errorf("failed to write conversation log: %w", err)
	}
	s.persisted = snap.Version
	return nil
}
