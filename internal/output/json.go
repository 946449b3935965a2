package output

import (
	"encoding/json"

	"github.com/chirpwire/chirpwire/internal/twitter"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatTweets renders a page of tweets as JSON.
func (f *JSONFormatter) FormatTweets(page *twitter.TweetsPage) (string, error) {
	if page == nil {
		return "", nil
	}
	return f.marshal(page)
}

// FormatTweet renders a single tweet as JSON.
func (f *JSONFormatter) FormatTweet(tweet *twitter.Tweet) (string, error) {
	if tweet == nil {
		return "", nil
	}
	return f.marshal(tweet)
}

// FormatUser renders a user profile as JSON.
func (f *JSONFormatter) FormatUser(user *twitter.User) (string, error) {
	if user == nil {
		return "", nil
	}
	return f.marshal(user)
}
