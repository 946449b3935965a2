package twitter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tweet is the subset of tweet fields this client surfaces.
type Tweet struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	AuthorID      string         `json:"author_id"`
	CreatedAt     string         `json:"created_at"`
	PublicMetrics map[string]int `json:"public_metrics"`
}

// User is the subset of user fields this client surfaces.
type User struct {
	ID              string         `json:"id"`
	Username        string         `json:"username"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Location        string         `json:"location"`
	URL             string         `json:"url"`
	ProfileImageURL string         `json:"profile_image_url"`
	Verified        bool           `json:"verified"`
	CreatedAt       string         `json:"created_at"`
	PublicMetrics   map[string]int `json:"public_metrics"`
}

// TweetsPage is one page of tweets with expanded author objects.
type TweetsPage struct {
	Tweets    []Tweet         `json:"tweets"`
	Users     map[string]User `json:"users,omitempty"`
	NextToken string          `json:"next_token,omitempty"`
}

// Author resolves the expanded author of a tweet, if present.
func (p *TweetsPage) Author(tweet Tweet) (User, bool) {
	if p == nil || p.Users == nil {
		return User{}, false
	}
	user, ok := p.Users[tweet.AuthorID]
	return user, ok
}

// envelope is the common v2 response shape: a data payload plus
// optional expansions and paging metadata.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	Includes struct {
		Users []User `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

func decodeEnvelope(raw json.RawMessage) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env, nil
}

func decodeTweet(raw json.RawMessage) (*Tweet, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	var tweet Tweet
	if err := json.Unmarshal(env.Data, &tweet); err != nil {
		return nil, fmt.Errorf("decode tweet: %w", err)
	}
	return &tweet, nil
}

func decodeUser(raw json.RawMessage) (*User, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

func decodeTweetsPage(raw json.RawMessage) (*TweetsPage, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	page := &TweetsPage{NextToken: env.Meta.NextToken}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &page.Tweets); err != nil {
			return nil, fmt.Errorf("decode tweets: %w", err)
		}
	}
	if len(env.Includes.Users) > 0 {
		page.Users = make(map[string]User, len(env.Includes.Users))
		for _, user := range env.Includes.Users {
			page.Users[user.ID] = user
		}
	}
	return page, nil
}

// apiErrorMessage extracts a human-readable message from the two known
// error envelope shapes. Returns "" when neither shape matches.
func apiErrorMessage(body []byte) string {
	var multi struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &multi); err == nil && len(multi.Errors) > 0 && multi.Errors[0].Message != "" {
		return multi.Errors[0].Message
	}

	var single struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &single); err == nil && single.Error.Message != "" {
		return single.Error.Message
	}

	return ""
}

func newRemoteAPIError(statusCode int, body []byte) *RemoteAPIError {
	if message := apiErrorMessage(body); message != "" {
		return &RemoteAPIError{StatusCode: statusCode, Message: message}
	}
	return &RemoteAPIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
}
