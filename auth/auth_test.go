package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAuth(t *testing.T) {
	apiKeyToUserName := map[string]string{
		"test-api-key-1": "user-1",
		"test-api-key-2": "user-2",
	}
	tests := []struct {
		name           string
		keys           map[string]string
		req            func() *http.Request
		expectedStatus int
		expectedUser   string
	}{
		{
			name:           "no auth header returns 401",
			keys:           apiKeyToUserName,
			req:            func() *http.Request { return httptest.NewRequest("POST", "/api/chat", nil) },
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "auth header not in map returns 401",
			keys: apiKeyToUserName,
			req: func() *http.Request {
				req := httptest.NewRequest("POST", "/api/chat", nil)
				req.Header.Set("Authorization", "Bearer not-in-map")
				return req
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "auth header in map returns 200",
			keys: apiKeyToUserName,
			req: func() *http.Request {
				req := httptest.NewRequest("POST", "/api/chat", nil)
				req.Header.Set("Authorization", "Bearer test-api-key-1")
				return req
			},
			expectedStatus: http.StatusOK,
			expectedUser:   "user-1",
		},
		{
			name: "auth header doesn't need Bearer prefix",
			keys: apiKeyToUserName,
			req: func() *http.Request {
				req := httptest.NewRequest("POST", "/api/chat", nil)
				req.Header.Set("Authorization", "test-api-key-2")
				return req
			},
			expectedStatus: http.StatusOK,
			expectedUser:   "user-2",
		},
		{
			name:           "no keys configured lets requests through as anonymous",
			keys:           nil,
			req:            func() *http.Request { return httptest.NewRequest("POST", "/api/chat", nil) },
			expectedStatus: http.StatusOK,
			expectedUser:   Anonymous,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var user string
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var ok bool
				user, ok = GetUser(r)
				if !ok {
					t.Error("expected user to be set")
				}
				w.WriteHeader(http.StatusOK)
			})

			auth := New(tt.keys, h)
			w := httptest.NewRecorder()
			auth.ServeHTTP(w, tt.req())
			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if user != tt.expectedUser {
				t.Errorf("expected user to be %s, got %s", tt.expectedUser, user)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	expected := map[string]string{"key-a": "alice", "key-b": "bob"}

	files := map[string]string{
		"apikeys.json": `{"key-a": "alice", "key-b": "bob"}`,
		"apikeys.yaml": "key-a: alice\nkey-b: bob\n",
	}
	for name, contents := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
				t.Fatalf("failed to write file: %v", err)
			}
			actual, err := LoadFromFile(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(expected, actual); diff != "" {
				t.Error(diff)
			}
		})
	}
	t.Run("an empty file name disables authentication", func(t *testing.T) {
		actual, err := LoadFromFile("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(actual) != 0 {
			t.Errorf("expected no keys, got %v", actual)
		}
	})
	t.Run("missing files return an error", func(t *testing.T) {
		if _, err := LoadFromFile(filepath.Join(dir, "missing.json")); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  map[string]string
		expectErr bool
	}{
		{
			name:     "empty input returns an empty map",
			input:    "",
			expected: map[string]string{},
		},
		{
			name:     "pairs are split on commas and colons",
			input:    "key-a:alice, key-b:bob",
			expected: map[string]string{"key-a": "alice", "key-b": "bob"},
		},
		{
			name:      "pairs without a user are rejected",
			input:     "key-a",
			expectErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := Parse(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, actual); diff != "" {
				t.Error(diff)
			}
		})
	}
}
