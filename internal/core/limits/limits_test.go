package limits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chirpwire/chirpwire/internal/core"
)

func TestDefaultTable(t *testing.T) {
	table := Default()

	entry, ok := table.Lookup("GET /2/tweets/search/recent")
	require.True(t, ok)
	require.NotNil(t, entry.UserLimit)
	require.NotNil(t, entry.AppLimit)
	require.Equal(t, 1, entry.UserLimit.Rate)
	require.Equal(t, 15*time.Minute, entry.UserLimit.Period)
	require.Equal(t, core.ScopeUser, entry.UserLimit.Scope)
	require.Equal(t, core.ScopeApp, entry.AppLimit.Scope)
	require.Equal(t, 100, entry.MaxResults)
	require.Equal(t, 512, entry.MaxQueryLength)

	entry, ok = table.Lookup("GET /2/users/me")
	require.True(t, ok)
	require.NotNil(t, entry.UserLimit)
	require.Nil(t, entry.AppLimit)
	require.Equal(t, 25, entry.UserLimit.Rate)
	require.Equal(t, 24*time.Hour, entry.UserLimit.Period)
}

func TestLookupUnknownEndpoint(t *testing.T) {
	table := Default()

	entry, ok := table.Lookup("GET /2/spaces/:id")
	require.False(t, ok)
	require.Nil(t, entry.UserLimit)
	require.Nil(t, entry.AppLimit)
}

func TestEndpointsSorted(t *testing.T) {
	table := Default()

	ids := table.Endpoints()
	require.NotEmpty(t, ids)
	require.IsIncreasing(t, ids)
	require.Contains(t, ids, "POST /2/tweets")
}

func TestParseRejectsBadPeriod(t *testing.T) {
	_, err := Parse([]byte(`
endpoints:
  "GET /2/things":
    user: { rate: 5, period: fortnight }
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "period")
}

func TestParseRejectsZeroRate(t *testing.T) {
	_, err := Parse([]byte(`
endpoints:
  "GET /2/things":
    app: { rate: 0, period: 15m }
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate")
}
