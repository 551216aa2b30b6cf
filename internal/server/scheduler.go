package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/orakle-ai/orakle/internal/capability"
)

// Scheduler periodically refreshes the capability registry so newly
// available MCP tools show up without a restart.
type Scheduler struct {
	Registry *capability.Registry
	Cron     string
	Stop     chan struct{}

	logger  *log.Logger
	lastRun *time.Time
}

func NewScheduler(registry *capability.Registry, cron string) *Scheduler {
	return &Scheduler{
		Registry: registry,
		Cron:     cron,
		Stop:     make(chan struct{}),
		logger:   log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	if !isDue(s.Cron, s.lastRun) {
		return
	}
	now := time.Now()
	s.lastRun = &now
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := s.Registry.Refresh(ctx); err != nil {
		s.logger.Printf("capability refresh failed: %v", err)
	}
}

// isDue determines if a refresh scheduled by cronSpec should run now based
// on the last run time. Supports "@daily", "@hourly", and standard 5-field
// cron expressions; invalid specs fall back to @hourly.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "":
		return false
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= time.Hour
		}
		base := now.Add(-time.Minute)
		if last != nil {
			base = *last
		}
		next := expr.Next(base)
		return !next.IsZero() && !next.After(now)
	}
}
