// token_sweeper.go implements the TokenSweeper background job, which periodically
// deletes expired refresh tokens and one-time tokens. Expired rows are already
// unusable (every query that reads them checks expires_at), so the sweeper is
// purely hygiene: it keeps the token tables from growing without bound.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/nexin-gg/nexin-backend/internal/db/repositories"
	"github.com/nexin-gg/nexin-backend/internal/telemetry"
)

// TokenSweeper periodically deletes expired token rows.
type TokenSweeper struct {
	refreshRepo *repositories.RefreshTokenRepository
	ottRepo     *repositories.OneTimeTokenRepository
	interval    time.Duration
	stopChan    chan struct{}
}

// NewTokenSweeper creates a new TokenSweeper.
// intervalMinutes controls how often the sweep runs (default 60m).
func NewTokenSweeper(
	refreshRepo *repositories.RefreshTokenRepository,
	ottRepo *repositories.OneTimeTokenRepository,
	intervalMinutes int,
) *TokenSweeper {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	return &TokenSweeper{
		refreshRepo: refreshRepo,
		ottRepo:     ottRepo,
		interval:    time.Duration(intervalMinutes) * time.Minute,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background sweep loop.
// It runs an initial sweep immediately, then repeats on the configured interval.
// The loop exits when ctx is cancelled or Stop() is called.
func (s *TokenSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Token sweeper started (interval: %v)", s.interval)

	// Run once immediately on startup
	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			log.Println("Token sweeper stopped")
			return
		case <-ctx.Done():
			log.Println("Token sweeper: context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *TokenSweeper) Stop() {
	close(s.stopChan)
}

// runSweep deletes expired rows from both token tables.
func (s *TokenSweeper) runSweep(ctx context.Context) {
	refreshDeleted, err := s.refreshRepo.DeleteExpired(ctx)
	if err != nil {
		log.Printf("Token sweeper: failed to delete expired refresh tokens: %v", err)
	} else if refreshDeleted > 0 {
		telemetry.TokensSweptTotal.WithLabelValues("refresh").Add(float64(refreshDeleted))
		log.Printf("Token sweeper: deleted %d expired refresh tokens", refreshDeleted)
	}

	ottDeleted, err := s.ottRepo.DeleteExpired(ctx)
	if err != nil {
		log.Printf("Token sweeper: failed to delete expired one-time tokens: %v", err)
	} else if ottDeleted > 0 {
		telemetry.TokensSweptTotal.WithLabelValues("one_time").Add(float64(ottDeleted))
		log.Printf("Token sweeper: deleted %d expired one-time tokens", ottDeleted)
	}
}
