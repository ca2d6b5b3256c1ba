package chat

import (
	"strings"
	"testing"
)

func TestDecoder(t *testing.T) {
	tests := []struct {
		name     string
		chunks   [][]byte
		expected string
	}{
		{
			name:     "ASCII chunks are passed through",
			chunks:   [][]byte{[]byte("Hel"), []byte("lo "), []byte("world")},
			expected: "Hello world",
		},
		{
			name:     "a two byte character split across chunks is joined",
			chunks:   [][]byte{{'c', 'a', 'f', 0xc3}, {0xa9}},
			expected: "café",
		},
		{
			name:     "a three byte character split across three chunks is joined",
			chunks:   [][]byte{{'1', 0xe2}, {0x82}, {0xac, '!'}},
			expected: "1€!",
		},
		{
			name:     "a four byte character split after the first byte is joined",
			chunks:   [][]byte{{0xf0}, {0x9f, 0x98, 0x80}},
			expected: "😀",
		},
		{
			name:     "invalid bytes become replacement characters",
			chunks:   [][]byte{{'a', 0xff, 'b'}},
			expected: "a�b",
		},
		{
			name:     "empty chunks produce no text",
			chunks:   [][]byte{{}, []byte("x"), nil},
			expected: "x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			var sb strings.Builder
			for _, chunk := range tt.chunks {
				text, err := d.Decode(chunk)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if strings.ContainsRune(text, '�') && !strings.ContainsRune(tt.expected, '�') {
					t.Fatalf("unexpected replacement character in %q", text)
				}
				sb.WriteString(text)
			}
			text, err := d.Flush()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			sb.WriteString(text)
			if sb.String() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, sb.String())
			}
		})
	}
}

func TestDecoderHoldsBackPartialCharacters(t *testing.T) {
	d := NewDecoder()
	text, err := d.Decode([]byte{'a', 0xe2, 0x82})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "a" {
		t.Errorf("expected only the complete character, got %q", text)
	}
	text, err = d.Decode([]byte{0xac})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "€" {
		t.Errorf("expected the completed character, got %q", text)
	}
}

func TestDecoderFlushReplacesTruncatedCharacters(t *testing.T) {
	d := NewDecoder()
	text, err := d.Decode([]byte{'a', 0xe2, 0x82})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rest, err := d.Flush()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	actual := text + rest
	if !strings.HasPrefix(actual, "a�") || strings.Trim(actual[1:], "�") != "" {
		t.Errorf("expected the truncated character to be replaced, got %q", actual)
	}
}
