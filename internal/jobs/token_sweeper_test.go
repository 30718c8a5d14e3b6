package jobs

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/nexin-gg/nexin-backend/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newRefreshRepoForSweeper(t *testing.T) (*repositories.RefreshTokenRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New (refresh): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewRefreshTokenRepository(db), mock
}

func newOTTRepoForSweeper(t *testing.T) (*repositories.OneTimeTokenRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New (ott): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewOneTimeTokenRepository(db), mock
}

// ---------------------------------------------------------------------------
// NewTokenSweeper — construction and interval defaulting
// ---------------------------------------------------------------------------

func TestNewTokenSweeper_DefaultInterval(t *testing.T) {
	s := NewTokenSweeper(nil, nil, 0)
	if s == nil {
		t.Fatal("NewTokenSweeper returned nil")
	}
	if s.interval != 60*time.Minute {
		t.Errorf("interval = %v, want 60m", s.interval)
	}
}

func TestNewTokenSweeper_NegativeInterval_Defaults60m(t *testing.T) {
	s := NewTokenSweeper(nil, nil, -5)
	if s.interval != 60*time.Minute {
		t.Errorf("interval = %v, want 60m", s.interval)
	}
}

func TestNewTokenSweeper_CustomInterval(t *testing.T) {
	s := NewTokenSweeper(nil, nil, 15)
	if s.interval != 15*time.Minute {
		t.Errorf("interval = %v, want 15m", s.interval)
	}
}

// ---------------------------------------------------------------------------
// runSweep
// ---------------------------------------------------------------------------

func TestRunSweep_DeletesFromBothTables(t *testing.T) {
	refreshRepo, refreshMock := newRefreshRepoForSweeper(t)
	ottRepo, ottMock := newOTTRepoForSweeper(t)

	refreshMock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	ottMock.ExpectExec(regexp.QuoteMeta("DELETE FROM one_time_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 7))

	s := NewTokenSweeper(refreshRepo, ottRepo, 60)
	s.runSweep(context.Background())

	if err := refreshMock.ExpectationsWereMet(); err != nil {
		t.Errorf("refresh expectations: %v", err)
	}
	if err := ottMock.ExpectationsWereMet(); err != nil {
		t.Errorf("ott expectations: %v", err)
	}
}

func TestRunSweep_RefreshErrorDoesNotSkipOneTimeTokens(t *testing.T) {
	refreshRepo, refreshMock := newRefreshRepoForSweeper(t)
	ottRepo, ottMock := newOTTRepoForSweeper(t)

	refreshMock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens")).
		WillReturnError(errors.New("db error"))
	ottMock.ExpectExec(regexp.QuoteMeta("DELETE FROM one_time_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewTokenSweeper(refreshRepo, ottRepo, 60)
	s.runSweep(context.Background())

	if err := ottMock.ExpectationsWereMet(); err != nil {
		t.Errorf("one-time token sweep should still run after refresh failure: %v", err)
	}
}

func TestRunSweep_NothingToDelete(t *testing.T) {
	refreshRepo, refreshMock := newRefreshRepoForSweeper(t)
	ottRepo, ottMock := newOTTRepoForSweeper(t)

	refreshMock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ottMock.ExpectExec(regexp.QuoteMeta("DELETE FROM one_time_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewTokenSweeper(refreshRepo, ottRepo, 60)
	s.runSweep(context.Background())

	if err := refreshMock.ExpectationsWereMet(); err != nil {
		t.Errorf("refresh expectations: %v", err)
	}
	if err := ottMock.ExpectationsWereMet(); err != nil {
		t.Errorf("ott expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Start / Stop
// ---------------------------------------------------------------------------

func TestStartStop(t *testing.T) {
	refreshRepo, refreshMock := newRefreshRepoForSweeper(t)
	ottRepo, ottMock := newOTTRepoForSweeper(t)

	// The initial sweep fires immediately on Start.
	refreshMock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ottMock.ExpectExec(regexp.QuoteMeta("DELETE FROM one_time_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewTokenSweeper(refreshRepo, ottRepo, 60)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	// Give the initial sweep a moment to run, then stop.
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	if err := refreshMock.ExpectationsWereMet(); err != nil {
		t.Errorf("refresh expectations: %v", err)
	}
}

func TestStart_ContextCancellation(t *testing.T) {
	refreshRepo, refreshMock := newRefreshRepoForSweeper(t)
	ottRepo, ottMock := newOTTRepoForSweeper(t)

	refreshMock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ottMock.ExpectExec(regexp.QuoteMeta("DELETE FROM one_time_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	s := NewTokenSweeper(refreshRepo, ottRepo, 60)

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
