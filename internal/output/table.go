package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/chirpwire/chirpwire/internal/twitter"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatTweets renders a page of tweets as a table, one row per tweet.
func (f *TableFormatter) FormatTweets(page *twitter.TweetsPage) (string, error) {
	if page == nil {
		return "", nil
	}
	if len(page.Tweets) == 0 {
		return "(no tweets)", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Author", "Created", "Likes", "Text"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Text", WidthMax: 72, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, tweet := range page.Tweets {
		t.AppendRow(table.Row{
			tweet.ID,
			authorLabel(page, tweet),
			tweet.CreatedAt,
			tweet.PublicMetrics["like_count"],
			strings.ReplaceAll(tweet.Text, "\n", " "),
		})
	}

	rendered := t.Render()
	if page.NextToken != "" {
		rendered += fmt.Sprintf("\nnext page token: %s", page.NextToken)
	}
	return rendered, nil
}

// FormatTweet renders a single tweet as a field/value table.
func (f *TableFormatter) FormatTweet(tweet *twitter.Tweet) (string, error) {
	if tweet == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"ID", tweet.ID})
	t.AppendRow(table.Row{"Author ID", tweet.AuthorID})
	t.AppendRow(table.Row{"Created", tweet.CreatedAt})
	t.AppendRow(table.Row{"Text", tweet.Text})
	for _, metric := range []string{"like_count", "retweet_count", "reply_count"} {
		if count, ok := tweet.PublicMetrics[metric]; ok {
			t.AppendRow(table.Row{metricLabel(metric), count})
		}
	}
	return t.Render(), nil
}

// FormatUser renders a user profile as a field/value table.
func (f *TableFormatter) FormatUser(user *twitter.User) (string, error) {
	if user == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"ID", user.ID})
	t.AppendRow(table.Row{"Username", "@" + user.Username})
	t.AppendRow(table.Row{"Name", user.Name})
	if user.Description != "" {
		t.AppendRow(table.Row{"Bio", user.Description})
	}
	if user.Location != "" {
		t.AppendRow(table.Row{"Location", user.Location})
	}
	if user.URL != "" {
		t.AppendRow(table.Row{"URL", user.URL})
	}
	t.AppendRow(table.Row{"Verified", user.Verified})
	if user.CreatedAt != "" {
		t.AppendRow(table.Row{"Joined", user.CreatedAt})
	}
	for _, metric := range []string{"followers_count", "following_count", "tweet_count"} {
		if count, ok := user.PublicMetrics[metric]; ok {
			t.AppendRow(table.Row{metricLabel(metric), count})
		}
	}
	return t.Render(), nil
}

func authorLabel(page *twitter.TweetsPage, tweet twitter.Tweet) string {
	if author, ok := page.Author(tweet); ok {
		return "@" + author.Username
	}
	return tweet.AuthorID
}

func metricLabel(metric string) string {
	label := strings.TrimSuffix(metric, "_count")
	label = strings.ReplaceAll(label, "_", " ")
	if label == "" {
		return metric
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
