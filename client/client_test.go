package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a-h/chatrelay/models"
	"github.com/a-h/chatrelay/requestid"
	"github.com/a-h/jsonapi"
	"github.com/google/go-cmp/cmp"
)

func newRelay(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", h)
	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func TestChatPost(t *testing.T) {
	var received models.ChatPostRequest
	var headers http.Header
	s := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/plain")
		for _, chunk := range []string{"Hel", "lo ", "world"} {
			io.WriteString(w, chunk)
			w.(http.Flusher).Flush()
		}
	})

	buf := new(bytes.Buffer)
	c := New(s.URL, "test-api-key")
	err := c.ChatPost(context.Background(), models.ChatPostRequest{Message: "Say hello"}, func(ctx context.Context, chunk []byte) error {
		_, err := buf.Write(chunk)
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", buf.String())
	}
	if received.Message != "Say hello" {
		t.Errorf("expected message %q, got %q", "Say hello", received.Message)
	}
	if got := headers.Get("Authorization"); got != "test-api-key" {
		t.Errorf("expected API key to be sent, got %q", got)
	}
	if headers.Get(requestid.Header) == "" {
		t.Error("expected a request ID to be sent")
	}
}

func TestChatPostErrors(t *testing.T) {
	s := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"Failed to retrieve a response from the LLM. Please try again later."}`)
	})

	c := New(s.URL, "")
	var called bool
	err := c.ChatPost(context.Background(), models.ChatPostRequest{Message: "hi"}, func(ctx context.Context, chunk []byte) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if called {
		t.Error("expected no chunks for a failed request")
	}
	var ise jsonapi.InvalidStatusError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStatusError, got %T", err)
	}
	if ise.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", ise.Status)
	}
	msg, ok := RelayError(err)
	if !ok {
		t.Fatal("expected a relay error message")
	}
	if msg != "Failed to retrieve a response from the LLM. Please try again later." {
		t.Errorf("unexpected relay error message %q", msg)
	}
}

func TestChatPostCallbackErrorsStopTheStream(t *testing.T) {
	s := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "some text")
	})
	errStop := errors.New("stop")
	err := New(s.URL, "").ChatPost(context.Background(), models.ChatPostRequest{Message: "hi"}, func(ctx context.Context, chunk []byte) error {
		return errStop
	})
	if !errors.Is(err, errStop) {
		t.Errorf("expected errStop, got %v", err)
	}
}

func TestChatPostTransportFailure(t *testing.T) {
	s := newRelay(t, func(w http.ResponseWriter, r *http.Request) {})
	url := s.URL
	s.Close()

	err := New(url, "").ChatPost(context.Background(), models.ChatPostRequest{Message: "hi"}, func(ctx context.Context, chunk []byte) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, ok := RelayError(err); ok {
		t.Error("transport failures are not relay errors")
	}
}

func TestChatPostEvents(t *testing.T) {
	var accept string
	s := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", models.ChatEventsContentType)
		enc := json.NewEncoder(w)
		enc.Encode(models.ChatEvent{Type: models.ChatEventTypeContent, Text: "Hel"})
		w.(http.Flusher).Flush()
		enc.Encode(models.ChatEvent{Type: models.ChatEventTypeContent, Text: "lo"})
		w.(http.Flusher).Flush()
		enc.Encode(models.ChatEvent{Type: models.ChatEventTypeError, Text: "failed"})
	})

	var events []models.ChatEvent
	err := New(s.URL, "").ChatPostEvents(context.Background(), models.ChatPostRequest{Message: "hi"}, func(ctx context.Context, event models.ChatEvent) error {
		events = append(events, event)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accept != models.ChatEventsContentType {
		t.Errorf("expected Accept %q, got %q", models.ChatEventsContentType, accept)
	}
	expected := []models.ChatEvent{
		{Type: models.ChatEventTypeContent, Text: "Hel"},
		{Type: models.ChatEventTypeContent, Text: "lo"},
		{Type: models.ChatEventTypeError, Text: "failed"},
	}
	if diff := cmp.Diff(expected, events); diff != "" {
		t.Error(diff)
	}
}

func TestChatPostEventsReturnsStatusErrors(t *testing.T) {
	s := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"unauthorized"}`)
	})
	err := New(s.URL, "").ChatPostEvents(context.Background(), models.ChatPostRequest{Message: "hi"}, func(ctx context.Context, event models.ChatEvent) error {
		return nil
	})
	var ise jsonapi.InvalidStatusError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStatusError, got %v", err)
	}
	if ise.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", ise.Status)
	}
}
