package sweeper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"aegis/internal/guard/models"
	"aegis/internal/guard/store/entry"
)

type SweeperSuite struct {
	suite.Suite
	store *entry.InMemoryEntryStore
	now   time.Time
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) SetupTest() {
	s.store = entry.New()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SweeperSuite) newSweeper(opts ...Option) *Sweeper {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return s.now }),
	}
	return New(s.store, append(base, opts...)...)
}

func (s *SweeperSuite) put(userID string, op models.OperationKind, windowStart time.Time, blocked bool) {
	e := &models.RateLimitEntry{
		UserID:      userID,
		Operation:   op,
		Attempts:    1,
		WindowStart: windowStart,
		LastAttempt: windowStart,
		Blocked:     blocked,
	}
	s.Require().NoError(s.store.Put(context.Background(), e))
}

func (s *SweeperSuite) TestRunOnce_RemovesOnlyFullyExpiredEntries() {
	// profile_update: 10m window, 15m block.
	s.put("stale", models.OpProfileUpdate, s.now.Add(-time.Hour), false)
	s.put("active", models.OpProfileUpdate, s.now.Add(-time.Minute), false)

	res, err := s.newSweeper().RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(1, res.Evicted)

	gone, _ := s.store.Get(context.Background(), "stale", models.OpProfileUpdate)
	s.Nil(gone)
	kept, _ := s.store.Get(context.Background(), "active", models.OpProfileUpdate)
	s.NotNil(kept, "still-active entry must never be removed")
}

func (s *SweeperSuite) TestRunOnce_KeepsBlockedEntryUntilBlockElapses() {
	// Window (10m) elapsed, but the 15m block is still live.
	s.put("blocked", models.OpProfileUpdate, s.now.Add(-12*time.Minute), true)

	res, err := s.newSweeper().RunOnce(context.Background())
	s.Require().NoError(err)
	s.Zero(res.Evicted)

	// Past the block: now eligible.
	s.now = s.now.Add(10 * time.Minute)
	res, err = s.newSweeper().RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(1, res.Evicted)
}

func (s *SweeperSuite) TestRunOnce_EmptyTable() {
	res, err := s.newSweeper().RunOnce(context.Background())
	s.Require().NoError(err)
	s.Zero(res.Evicted)
}

func (s *SweeperSuite) TestStart_StopsOnContextCancel() {
	sw := s.newSweeper(WithInterval(10 * time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sw.Start(ctx)
	}()

	s.put("stale", models.OpProfileRead, s.now.Add(-time.Hour), false)
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("sweeper did not stop after cancel")
	}

	gone, _ := s.store.Get(context.Background(), "stale", models.OpProfileRead)
	s.Nil(gone, "loop swept while running")
}
