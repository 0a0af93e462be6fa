package srv

import (
	"context"
	"sync"
	"time"
)

const statsCacheTTL = 30 * time.Second

// StatsOut is the /stats response shape.
type StatsOut struct {
	LongestChain       int     `json:"longest_chain"`
	LongestGameSeconds float64 `json:"longest_game_seconds"`
	TotalFinishedGames int     `json:"total_finished_games"`
}

// statsCache memoizes the aggregate stats query for 30 seconds behind a
// single writer lock (spec §9 caching note).
type statsCache struct {
	mu        sync.Mutex
	value     StatsOut
	computed  time.Time
}

func (s *Server) Stats(ctx context.Context) (StatsOut, error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	if time.Since(s.stats.computed) < statsCacheTTL {
		return s.stats.value, nil
	}

	chain, seconds, total, err := s.store.Stats(ctx)
	if err != nil {
		return StatsOut{}, err
	}
	s.stats.value = StatsOut{LongestChain: chain, LongestGameSeconds: seconds, TotalFinishedGames: total}
	s.stats.computed = time.Now()
	return s.stats.value, nil
}
