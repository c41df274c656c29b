package shared

import (
	"bytes"
	"strings"
	"testing"
)

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain", "привет", "привет"},
		{"Punctuation", "Готово!", `Готово\!`},
		{"Counter", "3 из 10", "3 из 10"},
		{"Sentence", "Что-то пошло не так. Попробуйте еще раз", `Что\-то пошло не так\. Попробуйте еще раз`},
		{"Link", "https://oauth.vk.com/oauth/authorize?client_id=1", `https://oauth\.vk\.com/oauth/authorize?client\_id\=1`},
		{"Parens", "(скобки)", `\(скобки\)`},
		{"Asterisk", "a*b", `a\*b`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EscapeMarkdown(tc.input); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello") {
		t.Errorf("expected log output to contain message, got %q", out)
	}
	if !strings.Contains(out, "value") {
		t.Errorf("expected log output to contain field value, got %q", out)
	}
}
