package output

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chirpwire/chirpwire/internal/twitter"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func samplePage() *twitter.TweetsPage {
	return &twitter.TweetsPage{
		Tweets: []twitter.Tweet{
			{
				ID:            "1001",
				Text:          "first tweet",
				AuthorID:      "42",
				CreatedAt:     "2025-06-01T12:00:00Z",
				PublicMetrics: map[string]int{"like_count": 3},
			},
		},
		Users: map[string]twitter.User{
			"42": {ID: "42", Username: "gopher", Name: "Go Pher"},
		},
		NextToken: "next-abc",
	}
}

func TestTableFormatterTweets(t *testing.T) {
	rendered, err := (&TableFormatter{}).FormatTweets(samplePage())
	require.NoError(t, err)
	require.Contains(t, rendered, "1001")
	require.Contains(t, rendered, "@gopher")
	require.Contains(t, rendered, "first tweet")
	require.Contains(t, rendered, "next page token: next-abc")
}

func TestTableFormatterEmptyPage(t *testing.T) {
	rendered, err := (&TableFormatter{}).FormatTweets(&twitter.TweetsPage{})
	require.NoError(t, err)
	require.Equal(t, "(no tweets)", rendered)
}

func TestTableFormatterUser(t *testing.T) {
	user := &twitter.User{
		ID:            "42",
		Username:      "gopher",
		Name:          "Go Pher",
		Description:   "writes Go",
		Verified:      true,
		PublicMetrics: map[string]int{"followers_count": 128},
	}

	rendered, err := (&TableFormatter{}).FormatUser(user)
	require.NoError(t, err)
	require.Contains(t, rendered, "@gopher")
	require.Contains(t, rendered, "writes Go")
	require.Contains(t, rendered, "Followers")
	require.Contains(t, rendered, "128")
}

func TestJSONFormatterTweets(t *testing.T) {
	rendered, err := (&JSONFormatter{Indent: true}).FormatTweets(samplePage())
	require.NoError(t, err)
	require.Contains(t, rendered, "\"id\": \"1001\"")
	require.Contains(t, rendered, "\"next_token\": \"next-abc\"")
}

func TestNewFormatter(t *testing.T) {
	require.IsType(t, &JSONFormatter{}, NewFormatter(FormatJSON))
	require.IsType(t, &TableFormatter{}, NewFormatter(FormatTable))
}
