package services

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/fanzyb/roblox-mooncrest/repository"
)

// Stats is the /debug and /api/stats snapshot.
type Stats struct {
	Totals     repository.Totals `json:"totals"`
	Group      *GroupInfo        `json:"group,omitempty"`
	Uptime     time.Duration     `json:"uptime"`
	GoVersion  string            `json:"go_version"`
	Goroutines int               `json:"goroutines"`
	HeapBytes  uint64            `json:"heap_bytes"`
	Levels     int               `json:"levels"`
	Rewards    int               `json:"achievements"`
	Streams    int               `json:"stream_subscribers"`
}

type StatsService struct {
	Accounts  repository.AccountRepository
	Identity  IdentityProvider
	GroupID   int64
	Levels    LevelTable
	Catalog   *AchievementCatalog
	StartedAt time.Time
	Events    *EventHub
}

// Snapshot gathers aggregate counts. Group metadata is optional.
func (s *StatsService) Snapshot(ctx context.Context) (*Stats, error) {
	totals, err := s.Accounts.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	out := &Stats{
		Totals:     *totals,
		Uptime:     time.Since(s.StartedAt).Truncate(time.Second),
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		HeapBytes:  mem.HeapAlloc,
		Levels:     s.Levels.Len(),
		Rewards:    len(s.Catalog.All()),
	}
	if s.Events != nil {
		out.Streams = s.Events.Subscribers()
	}
	if s.Identity != nil && s.GroupID != 0 {
		_ = runEffect("group info", func() error {
			g, err := s.Identity.GroupInfo(ctx, s.GroupID)
			out.Group = g
			return err
		})
	}
	return out, nil
}
