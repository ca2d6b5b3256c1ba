package post

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/chatrelay/auth"
	"github.com/a-h/chatrelay/models"
	"github.com/a-h/chatrelay/requestid"
	"github.com/a-h/respond"
	"github.com/tmc/langchaingo/llms"
)

const DefaultSystemPrompt = "Reply to user message with proper answer."

// ErrorMessage is returned to the caller when the provider fails before any text was sent.
const ErrorMessage = "Failed to retrieve a response from the LLM. Please try again later."

func New(log *slog.Logger, llm llms.Model, systemPrompt string) Handler {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return Handler{
		log:          log,
		llm:          llm,
		systemPrompt: systemPrompt,
	}
}

// Handler relays a single user message to the LLM and streams the reply back.
// It keeps no state between requests.
type Handler struct {
	log          *slog.Logger
	llm          llms.Model
	systemPrompt string
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("requestId", requestid.Get(r)))
	if user, ok := auth.GetUser(r); ok {
		log = log.With(slog.String("user", user))
	}

	// An empty body is relayed as an empty message.
	var req models.ChatPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode body", slog.Any("error", err))
		respond.WithJSON(w, models.ChatErrorResponse{Error: "failed to decode body"}, http.StatusBadRequest)
		return
	}

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, h.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Message),
	}

	sw := newStreamWriter(w, strings.Contains(r.Header.Get("Accept"), models.ChatEventsContentType))
	log.Info("generating content", slog.Int("messageLength", len(req.Message)), slog.Bool("framed", sw.framed))

	_, err = h.llm.GenerateContent(r.Context(), msgs, llms.WithStreamingFunc(sw.WriteChunk))
	if err != nil {
		log.Error("failed to generate content", slog.Any("error", err), slog.Bool("streaming", sw.started), slog.Int("bytesWritten", sw.written))
		if !sw.started {
			respond.WithJSON(w, models.ChatErrorResponse{Error: ErrorMessage}, http.StatusInternalServerError)
			return
		}
		if r.Context().Err() != nil {
			// The caller has gone.
			return
		}
		if err = sw.WriteError(); err != nil {
			log.Error("failed to write error to stream", slog.Any("error", err))
		}
		return
	}
	sw.Start()
	log.Info("content generated", slog.Int("bytesWritten", sw.written))
}

func newStreamWriter(w http.ResponseWriter, framed bool) *streamWriter {
	sw := &streamWriter{
		w:      w,
		framed: framed,
	}
	if framed {
		sw.enc = json.NewEncoder(w)
	}
	return sw
}

// streamWriter writes provider fragments to the response as they arrive. Headers are
// committed by the first fragment, so failures before that can still set the status.
type streamWriter struct {
	w       http.ResponseWriter
	framed  bool
	enc     *json.Encoder
	started bool
	written int
}

func (sw *streamWriter) Start() {
	if sw.started {
		return
	}
	sw.started = true
	if sw.framed {
		sw.w.Header().Set("Content-Type", models.ChatEventsContentType)
	} else {
		sw.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	sw.w.Header().Set("Cache-Control", "no-cache")
	sw.w.Header().Set("X-Content-Type-Options", "nosniff")
	sw.w.WriteHeader(http.StatusOK)
}

func (sw *streamWriter) WriteChunk(ctx context.Context, chunk []byte) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	sw.Start()
	if len(chunk) == 0 {
		return nil
	}
	if sw.framed {
		err = sw.enc.Encode(models.ChatEvent{Type: models.ChatEventTypeContent, Text: string(chunk)})
	} else {
		_, err = sw.w.Write(chunk)
	}
	if err != nil {
		return err
	}
	sw.written += len(chunk)
	sw.flush()
	return nil
}

// WriteError ends a stream that has already started. Plain streams get the in-band
// sentinel, framed streams get an error event.
func (sw *streamWriter) WriteError() (err error) {
	if sw.framed {
		err = sw.enc.Encode(models.ChatEvent{Type: models.ChatEventTypeError, Text: ErrorMessage})
	} else {
		_, err = io.WriteString(sw.w, models.ErrorSentinel)
	}
	sw.flush()
	return err
}

func (sw *streamWriter) flush() {
	if flusher, canFlush := sw.w.(http.Flusher); canFlush {
		flusher.Flush()
	}
}
