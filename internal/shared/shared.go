// package shared defines helpers used across the bot: logging, markdown
// escaping and the configuration model.
package shared

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// NewLogger creates a new [log.Logger] writing to w, with timestamps and
// caller reporting enabled.
//
// The writer defaults to [os.Stderr].
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// charsToEscape is the punctuation Telegram's MarkdownV2 renderer treats as
// markup and therefore has to be backslash-escaped in outgoing text.
var charsToEscape = []string{"!", ".", "(", ")", "-", "=", "_", "*"}

// EscapeMarkdown escapes the MarkdownV2 reserved punctuation set in text.
func EscapeMarkdown(text string) string {
	for _, c := range charsToEscape {
		text = strings.ReplaceAll(text, c, `\`+c)
	}
	return text
}
