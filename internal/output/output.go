package output

import (
	"fmt"
	"strings"

	"github.com/chirpwire/chirpwire/internal/twitter"
)

// Format represents an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// Formatter renders API results for the terminal.
type Formatter interface {
	FormatTweets(page *twitter.TweetsPage) (string, error)
	FormatTweet(tweet *twitter.Tweet) (string, error)
	FormatUser(user *twitter.User) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	if format == FormatJSON {
		return &JSONFormatter{Indent: true}
	}
	return &TableFormatter{}
}
