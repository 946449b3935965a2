package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chirpwire/chirpwire/internal/core/engine"
	"github.com/chirpwire/chirpwire/internal/core/limits"
)

func testLimiter(t *testing.T) *engine.RateLimiter {
	t.Helper()
	table, err := limits.Parse([]byte(`
endpoints:
  "GET /2/tweets/search/recent":
    user: { rate: 1, period: 15m }
    max_results: 100
    max_query_length: 512
  "POST /2/tweets":
    user: { rate: 17, period: 24h }
`))
	require.NoError(t, err)
	return engine.New(table)
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client := &Client{
		BaseURL:     server.URL,
		HTTPClient:  server.Client(),
		Limiter:     testLimiter(t),
		MaxAttempts: 3,
	}
	client.userID = "u1"
	return client
}

func TestSearchSuccessConsumesQuota(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, "/tweets/search/recent", r.URL.Path)
		require.Equal(t, "(golang) -is:retweet lang:en", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [{"id": "1", "text": "hello", "author_id": "42"}],
			"includes": {"users": [{"id": "42", "username": "gopher"}]},
			"meta": {"next_token": "abc"}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	page, err := client.SearchTweets(context.Background(), "golang", 10)
	require.NoError(t, err)
	require.Len(t, page.Tweets, 1)
	require.Equal(t, "hello", page.Tweets[0].Text)
	require.Equal(t, "abc", page.NextToken)

	author, ok := page.Author(page.Tweets[0])
	require.True(t, ok)
	require.Equal(t, "gopher", author.Username)

	statuses := client.Limiter.Status(context.Background(), "GET /2/tweets/search/recent", "u1", "")
	require.Len(t, statuses, 1)
	require.Equal(t, 0, statuses[0].Remaining)
	require.EqualValues(t, 1, requests.Load())
}

func TestStrictModeBlocksSecondCallLocally(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.SearchTweets(context.Background(), "golang", 10)
	require.NoError(t, err)

	_, err = client.SearchTweets(context.Background(), "golang", 10)
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, "GET /2/tweets/search/recent", limited.Endpoint)
	require.False(t, limited.ResetAt.IsZero())

	// The blocked call never reached the server.
	require.EqualValues(t, 1, requests.Load())
}

func TestPermissiveModeSendsAnyway(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	client.Permissive = true

	for i := 0; i < 3; i++ {
		_, err := client.SearchTweets(context.Background(), "golang", 10)
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, requests.Load())
}

func TestDispatchRetriesOnceAfter429(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("x-rate-limit-reset", strconv.FormatInt(now.Add(3*time.Second).Unix(), 10))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data": {"id": "7", "username": "gopher"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	client.Clock = func() time.Time { return now }

	var slept []time.Duration
	client.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	user, err := client.GetUserByUsername(context.Background(), "gopher")
	require.NoError(t, err)
	require.Equal(t, "7", user.ID)

	require.EqualValues(t, 2, requests.Load())
	require.Equal(t, []time.Duration{3 * time.Second}, slept)
}

func TestStrictRetryAdmittedAfterServerReset(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := start
	clock := func() time.Time { return current }

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("x-rate-limit-reset", strconv.FormatInt(start.Add(3*time.Second).Unix(), 10))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data": [{"id": "1", "text": "hello"}]}`))
	}))
	defer server.Close()

	// Strict mode on an endpoint limited to a single request: the first
	// attempt reserves the only local slot, so the retry after the
	// server-signaled wait must not be blocked by the stale local window.
	client := newTestClient(t, server)
	client.Clock = clock
	client.Limiter.Clock = clock

	var slept []time.Duration
	client.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		current = current.Add(d)
		return nil
	}

	page, err := client.SearchTweets(context.Background(), "golang", 10)
	require.NoError(t, err)
	require.Len(t, page.Tweets, 1)

	require.EqualValues(t, 2, requests.Load())
	require.Equal(t, []time.Duration{3 * time.Second}, slept)

	// The retry consumed the fresh window the server reset opened.
	statuses := client.Limiter.Status(context.Background(), "GET /2/tweets/search/recent", "u1", "")
	require.Len(t, statuses, 1)
	require.Equal(t, 0, statuses[0].Remaining)
}

func TestDispatchCapsRetriesOnPersistent429(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// Reset time in the past: the wait floors at zero, which would
		// spin forever without the attempt cap.
		w.Header().Set("x-rate-limit-reset", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	client.Sleep = func(ctx context.Context, d time.Duration) error {
		require.Zero(t, d)
		return nil
	}

	_, err := client.GetUserByUsername(context.Background(), "gopher")
	require.ErrorIs(t, err, ErrRateLimitExceeded)
	require.EqualValues(t, 3, requests.Load())
}

func TestDispatchWaitIsCancellable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.GetUserByUsername(ctx, "gopher")
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestDispatchParsesErrorEnvelopes(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"ErrorsArray", http.StatusNotFound, `{"errors":[{"message":"Could not find user"}]}`, "Could not find user"},
		{"SingleError", http.StatusForbidden, `{"error":{"message":"Forbidden"}}`, "Forbidden"},
		{"NonJSONBody", http.StatusBadGateway, "upstream unavailable", "upstream unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := newTestClient(t, server)

			_, err := client.GetUserByUsername(context.Background(), "gopher")
			var remote *RemoteAPIError
			require.ErrorAs(t, err, &remote)
			require.Equal(t, tc.status, remote.StatusCode)
			require.Equal(t, tc.message, remote.Message)
		})
	}
}

func TestTransportFailureIsWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := &Client{BaseURL: server.URL, Limiter: testLimiter(t)}

	_, err := client.GetUserByUsername(context.Background(), "gopher")
	var transport *TransportError
	require.ErrorAs(t, err, &transport)
}

func TestMaxResultsClampedToEndpointCeiling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "100", r.URL.Query().Get("max_results"))
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.SearchTweets(context.Background(), "golang", 500)
	require.NoError(t, err)
}

func TestSearchQueryLengthValidated(t *testing.T) {
	client := &Client{BaseURL: "http://unused.invalid", Limiter: testLimiter(t)}

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}

	_, err := client.SearchTweets(context.Background(), string(long), 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "maximum length")
}

func TestCreateTweetValidatesLength(t *testing.T) {
	client := &Client{BaseURL: "http://unused.invalid", Limiter: testLimiter(t)}

	text := ""
	for i := 0; i < 281; i++ {
		text += "x"
	}

	_, err := client.CreateTweet(context.Background(), CreateTweetRequest{Text: text})
	require.Error(t, err)
	require.Contains(t, err.Error(), "280")
}

func TestCreateTweetPostsPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tweets", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "hello world", payload["text"])
		reply, ok := payload["reply"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "99", reply["in_reply_to_tweet_id"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data": {"id": "1", "text": "hello world"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	tweet, err := client.CreateTweet(context.Background(), CreateTweetRequest{Text: "hello world", ReplyToID: "99"})
	require.NoError(t, err)
	require.Equal(t, "1", tweet.ID)
}

type memoryIdentity struct {
	id    string
	saved string
}

func (m *memoryIdentity) SelfID(context.Context) (string, error) { return m.id, nil }
func (m *memoryIdentity) SaveSelfID(_ context.Context, id string) error {
	m.saved = id
	return nil
}

func TestSelfIDUsesCache(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	client.userID = ""
	client.Identity = &memoryIdentity{id: "4242"}

	id, err := client.SelfID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "4242", id)
	require.Zero(t, requests.Load())
}

func TestSelfIDFetchesAndCaches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": {"id": "4242", "username": "me"}}`))
	}))
	defer server.Close()

	identity := &memoryIdentity{}
	client := newTestClient(t, server)
	client.userID = ""
	client.Identity = identity

	id, err := client.SelfID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "4242", id)
	require.Equal(t, "4242", identity.saved)

	// Second lookup is served from memory.
	id, err = client.SelfID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "4242", id)
}

func TestLikeAndUnlikeUseSelfID(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		_, _ = w.Write([]byte(`{"data": {"liked": true}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	client.userID = ""
	client.Identity = &memoryIdentity{id: "4242"}

	require.NoError(t, client.LikeTweet(context.Background(), "55"))
	require.NoError(t, client.UnlikeTweet(context.Background(), "55"))

	require.Equal(t, []string{
		"POST /users/4242/likes",
		"DELETE /users/4242/likes/55",
	}, paths)
}

func TestDeleteTweetChecksResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"deleted": false}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	err := client.DeleteTweet(context.Background(), "55")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not deleted")
}

func TestErrorTaxonomyIsDistinguishable(t *testing.T) {
	require.False(t, errors.Is(ErrRateLimitExceeded, ErrMissingCredentials))

	var remote *RemoteAPIError
	err := fmt.Errorf("wrapped: %w", &RemoteAPIError{StatusCode: 404, Message: "nope"})
	require.ErrorAs(t, err, &remote)
	require.Equal(t, 404, remote.StatusCode)
}
