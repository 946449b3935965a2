// Package twitter is a rate-limit-aware client for the v2 API.
//
// Every operation funnels through dispatch, which consults the local
// rate limiter before sending, waits out server-signaled quota
// exhaustion (429) with a bounded retry budget, and normalizes error
// responses into the package's error types.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chirpwire/chirpwire/internal/core/engine"
)

// Endpoint identifiers as they appear in the rate-limit table.
const (
	endpointCreateTweet    = "POST /2/tweets"
	endpointDeleteTweet    = "DELETE /2/tweets/:id"
	endpointGetTweet       = "GET /2/tweets/:id"
	endpointSearchRecent   = "GET /2/tweets/search/recent"
	endpointUsersMe        = "GET /2/users/me"
	endpointUserByUsername = "GET /2/users/by/username/:username"
	endpointUserTweets     = "GET /2/users/:id/tweets"
	endpointLikeTweet      = "POST /2/users/:id/likes"
	endpointUnlikeTweet    = "DELETE /2/users/:id/likes/:tweet_id"
	endpointHomeTimeline   = "GET /2/users/:id/timelines/reverse_chronological"
)

const (
	defaultMaxAttempts = 5
	defaultMaxResults  = 100
	maxTweetRunes      = 280

	rateLimitResetHeader = "x-rate-limit-reset"
)

// IdentityCache caches the authenticated account's own identifier so
// the "who am I" call happens at most once across process runs.
type IdentityCache interface {
	SelfID(ctx context.Context) (string, error)
	SaveSelfID(ctx context.Context, id string) error
}

// Client issues signed requests against the v2 API. It is designed for
// sequential use: one logical request is in flight at a time, and the
// 429-triggered wait suspends the calling goroutine. Run independent
// Client+RateLimiter pairs for concurrent accounts.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *engine.RateLimiter
	Uploader   *Uploader
	Identity   IdentityCache
	Logger     *logging.Logger

	// AppID scopes app-level quotas; conventionally the consumer key.
	AppID string

	// Permissive disables local blocking: admission failures are
	// logged and the server's 429 remains the only enforcement.
	Permissive bool

	// MaxAttempts caps dispatch attempts across 429 waits.
	MaxAttempts int

	Clock func() time.Time
	// Sleep is the cancellable wait used for 429 backoff. Tests inject
	// a recorder here.
	Sleep func(ctx context.Context, d time.Duration) error

	userID string
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

// sleepContext waits for d or until the context is canceled, whichever
// comes first. A non-positive duration returns immediately.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) maxAttempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return defaultMaxAttempts
}

func (c *Client) debugf(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Debug(msg, fields...)
	}
}

func (c *Client) warnf(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Warn(msg, fields...)
	}
}

// admit applies local admission control for one outgoing request.
func (c *Client) admit(ctx context.Context, endpointID string) error {
	if c.Limiter == nil {
		return nil
	}

	if c.Permissive {
		if !c.Limiter.CheckAdmission(ctx, endpointID, c.userID, c.AppID) {
			c.warnf("local rate limit exceeded, sending anyway",
				zap.String("endpoint", endpointID))
		}
		return nil
	}

	if !c.Limiter.Reserve(ctx, endpointID, c.userID, c.AppID) {
		return &RateLimitedError{
			Endpoint: endpointID,
			ResetAt:  c.blockedUntil(ctx, endpointID),
		}
	}
	return nil
}

// blockedUntil returns the latest reset time among exhausted scopes.
func (c *Client) blockedUntil(ctx context.Context, endpointID string) time.Time {
	var until time.Time
	for _, status := range c.Limiter.Status(ctx, endpointID, c.userID, c.AppID) {
		if status.Remaining <= 0 && status.ResetAt.After(until) {
			until = status.ResetAt
		}
	}
	return until
}

// dispatch sends one API request, enforcing admission, waiting out 429
// responses, and normalizing errors. The retry budget is a bounded
// loop: a server that keeps answering 429 with a reset time in the
// past cannot spin this forever.
func (c *Client) dispatch(ctx context.Context, method, path, endpointID string, query url.Values, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	reqURL := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	requestID := uuid.NewString()

	for attempt := 1; attempt <= c.maxAttempts(); attempt++ {
		if err := c.admit(ctx, endpointID); err != nil {
			return nil, err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", "chirpwire")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		c.debugf("dispatching request",
			zap.String("endpoint", endpointID),
			zap.String("request_id", requestID),
			zap.Int("attempt", attempt))

		client := c.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, &TransportError{Err: err}
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, &TransportError{Err: err}
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated:
			if c.Permissive && c.Limiter != nil {
				c.Limiter.RecordConsumption(ctx, endpointID, c.userID, c.AppID)
			}
			return json.RawMessage(respBody), nil

		case http.StatusTooManyRequests:
			resetAt, wait := c.resetTarget(resp.Header)
			// The server's window is authoritative: align the local one
			// so the post-wait retry is admitted instead of being blocked
			// by a locally-tracked window that outlives the server's.
			if c.Limiter != nil {
				c.Limiter.SyncWindow(ctx, endpointID, c.userID, c.AppID, resetAt)
			}
			c.warnf("server rate limit hit, waiting for reset",
				zap.String("endpoint", endpointID),
				zap.String("request_id", requestID),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("rate limit wait interrupted: %w", err)
			}

		default:
			return nil, newRemoteAPIError(resp.StatusCode, respBody)
		}
	}

	return nil, fmt.Errorf("%s: %w", endpointID, ErrRateLimitExceeded)
}

// resetTarget reads the reset header (unix seconds) and returns the
// reset time plus the wait until it, floored at zero so reset times in
// the past do not block. A missing or malformed header resets now.
func (c *Client) resetTarget(header http.Header) (time.Time, time.Duration) {
	now := c.now()
	resetUnix, err := strconv.ParseInt(strings.TrimSpace(header.Get(rateLimitResetHeader)), 10, 64)
	if err != nil {
		return now, 0
	}
	resetAt := time.Unix(resetUnix, 0).UTC()
	wait := resetAt.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return resetAt, wait
}

// clampResults caps a requested page size at the endpoint's configured
// maximum.
func (c *Client) clampResults(endpointID string, requested int) int {
	ceiling := defaultMaxResults
	if c.Limiter != nil && c.Limiter.Table != nil {
		if entry, ok := c.Limiter.Table.Lookup(endpointID); ok && entry.MaxResults > 0 {
			ceiling = entry.MaxResults
		}
	}
	if requested <= 0 || requested > ceiling {
		return ceiling
	}
	return requested
}

// SelfID returns the authenticated account's identifier, fetching and
// caching it on first use. The id also scopes subsequent user-level
// quota tracking.
func (c *Client) SelfID(ctx context.Context) (string, error) {
	if c.userID != "" {
		return c.userID, nil
	}

	if c.Identity != nil {
		cached, err := c.Identity.SelfID(ctx)
		if err != nil {
			return "", err
		}
		if cached != "" {
			c.userID = cached
			return cached, nil
		}
	}

	raw, err := c.dispatch(ctx, http.MethodGet, "users/me", endpointUsersMe, nil, nil)
	if err != nil {
		return "", fmt.Errorf("resolve own user id: %w", err)
	}
	user, err := decodeUser(raw)
	if err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", fmt.Errorf("users/me response has no id")
	}

	c.userID = user.ID
	if c.Identity != nil {
		if err := c.Identity.SaveSelfID(ctx, user.ID); err != nil {
			c.warnf("failed to cache self id", zap.Error(err))
		}
	}
	return user.ID, nil
}

// GetUserByUsername fetches a user's profile.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	query := url.Values{}
	query.Set("user.fields", "created_at,description,public_metrics,verified,location,url,profile_image_url")

	raw, err := c.dispatch(ctx, http.MethodGet, "users/by/username/"+url.PathEscape(username), endpointUserByUsername, query, nil)
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// GetUserTweets fetches a user's recent tweets.
func (c *Client) GetUserTweets(ctx context.Context, userID string, limit int) (*TweetsPage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	query := url.Values{}
	query.Set("max_results", strconv.Itoa(c.clampResults(endpointUserTweets, limit)))
	query.Set("tweet.fields", "created_at,public_metrics,author_id,text")
	query.Set("expansions", "author_id")
	query.Set("user.fields", "username,name,verified")

	raw, err := c.dispatch(ctx, http.MethodGet, "users/"+url.PathEscape(userID)+"/tweets", endpointUserTweets, query, nil)
	if err != nil {
		return nil, err
	}
	return decodeTweetsPage(raw)
}

// SearchTweets runs a recent-search query. The query is decorated to
// exclude retweets and restrict to English, as the upstream bot did.
func (c *Client) SearchTweets(ctx context.Context, rawQuery string, limit int) (*TweetsPage, error) {
	rawQuery = strings.TrimSpace(rawQuery)
	if rawQuery == "" {
		return nil, fmt.Errorf("search query is required")
	}
	formatted := fmt.Sprintf("(%s) -is:retweet lang:en", rawQuery)

	if c.Limiter != nil && c.Limiter.Table != nil {
		if entry, ok := c.Limiter.Table.Lookup(endpointSearchRecent); ok && entry.MaxQueryLength > 0 {
			if len(formatted) > entry.MaxQueryLength {
				return nil, fmt.Errorf("search query exceeds maximum length of %d", entry.MaxQueryLength)
			}
		}
	}

	query := url.Values{}
	query.Set("query", formatted)
	query.Set("max_results", strconv.Itoa(c.clampResults(endpointSearchRecent, limit)))
	query.Set("tweet.fields", "created_at,public_metrics,author_id,text,lang")
	query.Set("expansions", "author_id")
	query.Set("user.fields", "username,name,verified,profile_image_url")

	raw, err := c.dispatch(ctx, http.MethodGet, "tweets/search/recent", endpointSearchRecent, query, nil)
	if err != nil {
		return nil, err
	}
	return decodeTweetsPage(raw)
}

// GetTweet fetches a single tweet.
func (c *Client) GetTweet(ctx context.Context, tweetID string) (*Tweet, error) {
	if strings.TrimSpace(tweetID) == "" {
		return nil, fmt.Errorf("tweet id is required")
	}

	query := url.Values{}
	query.Set("tweet.fields", "created_at,public_metrics,author_id,text")

	raw, err := c.dispatch(ctx, http.MethodGet, "tweets/"+url.PathEscape(tweetID), endpointGetTweet, query, nil)
	if err != nil {
		return nil, err
	}
	return decodeTweet(raw)
}

// CreateTweetRequest describes a tweet to post.
type CreateTweetRequest struct {
	Text      string
	MediaPath string
	ReplyToID string
}

type createTweetPayload struct {
	Text  string `json:"text"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply,omitempty"`
}

// CreateTweet posts a tweet, uploading attached media first if any.
func (c *Client) CreateTweet(ctx context.Context, req CreateTweetRequest) (*Tweet, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("tweet text is required")
	}
	if utf8.RuneCountInString(req.Text) > maxTweetRunes {
		return nil, fmt.Errorf("tweet exceeds %d character limit", maxTweetRunes)
	}

	payload := createTweetPayload{Text: req.Text}

	if req.MediaPath != "" {
		mediaID, err := c.UploadMedia(ctx, req.MediaPath)
		if err != nil {
			return nil, err
		}
		payload.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: []string{mediaID}}
	}

	if req.ReplyToID != "" {
		payload.Reply = &struct {
			InReplyToTweetID string `json:"in_reply_to_tweet_id"`
		}{InReplyToTweetID: req.ReplyToID}
	}

	raw, err := c.dispatch(ctx, http.MethodPost, "tweets", endpointCreateTweet, nil, payload)
	if err != nil {
		return nil, err
	}
	return decodeTweet(raw)
}

// LikeTweet likes a tweet on behalf of the authenticated user.
func (c *Client) LikeTweet(ctx context.Context, tweetID string) error {
	if strings.TrimSpace(tweetID) == "" {
		return fmt.Errorf("tweet id is required")
	}
	selfID, err := c.SelfID(ctx)
	if err != nil {
		return err
	}

	body := map[string]string{"tweet_id": tweetID}
	_, err = c.dispatch(ctx, http.MethodPost, "users/"+url.PathEscape(selfID)+"/likes", endpointLikeTweet, nil, body)
	return err
}

// UnlikeTweet removes a like.
func (c *Client) UnlikeTweet(ctx context.Context, tweetID string) error {
	if strings.TrimSpace(tweetID) == "" {
		return fmt.Errorf("tweet id is required")
	}
	selfID, err := c.SelfID(ctx)
	if err != nil {
		return err
	}

	_, err = c.dispatch(ctx, http.MethodDelete, "users/"+url.PathEscape(selfID)+"/likes/"+url.PathEscape(tweetID), endpointUnlikeTweet, nil, nil)
	return err
}

// HomeTimeline fetches the authenticated user's reverse-chronological
// timeline.
func (c *Client) HomeTimeline(ctx context.Context, limit int) (*TweetsPage, error) {
	selfID, err := c.SelfID(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("max_results", strconv.Itoa(c.clampResults(endpointHomeTimeline, limit)))
	query.Set("tweet.fields", "created_at,public_metrics,author_id,text")
	query.Set("expansions", "author_id")
	query.Set("user.fields", "username,name,verified")

	raw, err := c.dispatch(ctx, http.MethodGet, "users/"+url.PathEscape(selfID)+"/timelines/reverse_chronological", endpointHomeTimeline, query, nil)
	if err != nil {
		return nil, err
	}
	return decodeTweetsPage(raw)
}

// DeleteTweet deletes a tweet by id.
func (c *Client) DeleteTweet(ctx context.Context, tweetID string) error {
	if strings.TrimSpace(tweetID) == "" {
		return fmt.Errorf("tweet id is required")
	}

	raw, err := c.dispatch(ctx, http.MethodDelete, "tweets/"+url.PathEscape(tweetID), endpointDeleteTweet, nil, nil)
	if err != nil {
		return err
	}

	var result struct {
		Data struct {
			Deleted bool `json:"deleted"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err == nil && !result.Data.Deleted {
		return fmt.Errorf("tweet %s was not deleted", tweetID)
	}
	return nil
}

// UploadMedia uploads a media file through the chunked protocol and
// returns the allocated media id.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	if c.Uploader == nil {
		return "", fmt.Errorf("media upload is not configured")
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer file.Close() // nolint:errcheck // read-only handle

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat media file: %w", err)
	}

	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	return c.Uploader.Upload(ctx, file, info.Size(), mediaType)
}
