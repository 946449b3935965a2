package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// brokenResultDriver executes statements but cannot report how many
// rows they affected.
type brokenResultDriver struct{}

func (brokenResultDriver) Open(string) (driver.Conn, error) { return brokenResultConn{}, nil }

type brokenResultConn struct{}

func (brokenResultConn) Prepare(string) (driver.Stmt, error) { return brokenResultStmt{}, nil }
func (brokenResultConn) Close() error                        { return nil }
func (brokenResultConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

type brokenResultStmt struct{}

func (brokenResultStmt) Close() error  { return nil }
func (brokenResultStmt) NumInput() int { return -1 }
func (brokenResultStmt) Exec([]driver.Value) (driver.Result, error) {
	return brokenResult{}, nil
}
func (brokenResultStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("not supported")
}

type brokenResult struct{}

func (brokenResult) LastInsertId() (int64, error) { return 0, nil }
func (brokenResult) RowsAffected() (int64, error) {
	return 0, errors.New("rows affected unavailable")
}

var registerBrokenResultDriver sync.Once

func TestResetRateLimitStatesSurfacesCountError(t *testing.T) {
	registerBrokenResultDriver.Do(func() {
		sql.Register("brokenresult", brokenResultDriver{})
	})

	db, err := sql.Open("brokenresult", "")
	require.NoError(t, err)
	defer db.Close() // nolint:errcheck // best-effort cleanup

	s := &Store{DB: db, driver: "brokenresult"}

	// The delete itself succeeds, but an unknown affected count must not
	// be reported as "deleted 0".
	_, err = s.ResetRateLimitStates(context.Background(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "count reset rate limit states")
}
