// Package digest sends the end-of-day summary on a cron schedule: how much
// was logged and which residents had nothing recorded.
package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/adhocore/gronx"
	"github.com/npezzotti/go-carehome/internal/aggregate"
	"go.uber.org/zap"
)

const Channel = "digest"

type Summarizer interface {
	Facility() aggregate.Facility
}

type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type Digest struct {
	Date            time.Time      `json:"date"`
	TotalUpdates    int            `json:"total_updates"`
	ByType          map[string]int `json:"by_type"`
	NoUpdates       []string       `json:"no_updates"`
	CoveragePercent int            `json:"coverage_percent"`
	TaskPercent     int            `json:"task_percent"`
}

func Build(f aggregate.Facility) Digest {
	d := Digest{
		Date:            f.Date,
		TotalUpdates:    f.Today.TotalUpdates,
		ByType:          make(map[string]int, len(f.Today.ByType)),
		NoUpdates:       make([]string, 0, len(f.Today.ResidentsWithNoUpdate)),
		CoveragePercent: f.CoveragePercent,
		TaskPercent:     f.TaskPercent,
	}
	for k, v := range f.Today.ByType {
		d.ByType[k] = v
	}
	for _, r := range f.Today.ResidentsWithNoUpdate {
		d.NoUpdates = append(d.NoUpdates, r.Name)
	}
	sort.Strings(d.NoUpdates)
	return d
}

type Scheduler struct {
	log  *zap.Logger
	sum  Summarizer
	pub  Publisher
	cron string
	now  func() time.Time
}

func NewScheduler(logger *zap.Logger, sum Summarizer, pub Publisher, cronExpr string) (*Scheduler, error) {
	if !gronx.IsValid(cronExpr) {
		logger.Error("digest_invalid_cron", zap.String("cron", cronExpr))
		return nil, fmt.Errorf("invalid digest cron expression: %s", cronExpr)
	}
	return &Scheduler{
		log:  logger,
		sum:  sum,
		pub:  pub,
		cron: cronExpr,
		now:  time.Now,
	}, nil
}

// Next is the first tick strictly after t.
func (s *Scheduler) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.cron, t, false)
}

// RunOnce builds and publishes a digest now.
func (s *Scheduler) RunOnce(ctx context.Context) (Digest, error) {
	d := Build(s.sum.Facility())
	s.log.Info("daily_digest",
		zap.Int("total_updates", d.TotalUpdates),
		zap.Int("coverage_percent", d.CoveragePercent),
		zap.Strings("no_updates", d.NoUpdates),
	)
	if s.pub == nil {
		return d, nil
	}
	if err := s.pub.Publish(ctx, Channel, d); err != nil {
		return d, fmt.Errorf("publish digest: %w", err)
	}
	return d, nil
}

// Run sends a digest at every cron tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("digest_scheduler_started", zap.String("cron", s.cron))
	for {
		next, err := s.Next(s.now())
		if err != nil {
			s.log.Error("digest_nexttick_failed", zap.String("cron", s.cron), zap.Error(err))
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				s.log.Info("digest_scheduler_stopping")
				return
			}
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("digest_scheduler_stopping")
			return
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("digest_run_failed", zap.Error(err))
		}
	}
}
