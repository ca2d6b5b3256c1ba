package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/chatrelay/models"
	"github.com/a-h/chatrelay/requestid"
	"github.com/a-h/jsonapi"
	"github.com/google/uuid"
)

func New(baseURL, apiKey string) Client {
	return Client{
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type Client struct {
	baseURL string
	apiKey  string
}

// ChatPost sends a message and calls f with each chunk of the plain text reply, in order.
// Chunks are raw bytes and may split multi-byte characters.
func (c Client) ChatPost(ctx context.Context, request models.ChatPostRequest, f func(ctx context.Context, chunk []byte) error) (err error) {
	url, err := jsonapi.URL(c.baseURL).Path("api", "chat").String()
	if err != nil {
		return err
	}
	return c.postStream(ctx, url, "text/plain", request, f)
}

// ChatPostEvents sends a message and asks for the framed reply, calling f with each event.
func (c Client) ChatPostEvents(ctx context.Context, request models.ChatPostRequest, f func(ctx context.Context, event models.ChatEvent) error) (err error) {
	url, err := jsonapi.URL(c.baseURL).Path("api", "chat").String()
	if err != nil {
		return err
	}
	pr, pw := io.Pipe()
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		dec := json.NewDecoder(pr)
		for {
			var event models.ChatEvent
			if err := dec.Decode(&event); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				pr.CloseWithError(err)
				errs <- fmt.Errorf("failed to decode event: %w", err)
				return
			}
			if err := f(ctx, event); err != nil {
				pr.CloseWithError(err)
				errs <- err
				return
			}
		}
	}()
	err = c.postStream(ctx, url, models.ChatEventsContentType, request, func(ctx context.Context, chunk []byte) error {
		_, err := pw.Write(chunk)
		return err
	})
	pw.CloseWithError(err)
	decodeErr := <-errs
	if err != nil {
		return err
	}
	return decodeErr
}

func (c Client) postStream(ctx context.Context, url, accept string, req any, f func(ctx context.Context, chunk []byte) error) (err error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set(requestid.Header, uuid.NewString())
	res, err := jsonapi.Raw(httpReq, jsonapi.WithRequestHeader("Authorization", c.apiKey))
	if err != nil {
		return fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(res.Body)
		return jsonapi.InvalidStatusError{
			Status: res.StatusCode,
			Body:   string(body),
		}
	}
	for {
		chunk := make([]byte, 1024)
		n, err := res.Body.Read(chunk)
		if n > 0 {
			if err := f(ctx, chunk[:n]); err != nil {
				return fmt.Errorf("failed to process chunk: %w", err)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read response body: %w", err)
		}
	}
	return nil
}

// RelayError returns the message from a structured relay error response, if err is one.
func RelayError(err error) (msg string, ok bool) {
	var ise jsonapi.InvalidStatusError
	if !errors.As(err, &ise) {
		return "", false
	}
	var resp models.ChatErrorResponse
	if json.Unmarshal([]byte(ise.Body), &resp) != nil || resp.Error == "" {
		return "", false
	}
	return resp.Error, true
}
