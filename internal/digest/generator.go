// Package digest builds the daily review digest: all pending items grouped
// by account, clustered into topics, rendered as a two-layer headline/detail
// message with per-item and bulk approval controls.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/leadsignal/intel-bot/internal/config"
	"github.com/leadsignal/intel-bot/internal/core/errors"
	"github.com/leadsignal/intel-bot/internal/llm"
	"github.com/leadsignal/intel-bot/internal/observability"
	"github.com/leadsignal/intel-bot/internal/platform/schedule"
	"github.com/leadsignal/intel-bot/internal/platform/worker"
	db "github.com/leadsignal/intel-bot/internal/storage"
)

// Store is the slice of the database the generator needs.
type Store interface {
	GetPendingGroupedByAccount(ctx context.Context) ([]db.AccountGroup, error)
}

// Poster delivers the rendered digest to the chat platform.
type Poster interface {
	PostMessage(ctx context.Context, channelID, text string) error
}

// Summary aggregates the outcome of one digest run.
type Summary struct {
	Accounts int `json:"accounts"`
	Signals  int `json:"signals"`
}

// Generator is the digest-cycle controller.
type Generator struct {
	cfg       *config.Config
	store     Store
	poster    Poster
	clusterer llm.Client
	loc       *time.Location
	logger    *zerolog.Logger

	now func() time.Time
}

func New(cfg *config.Config, store Store, poster Poster, clusterer llm.Client, loc *time.Location, logger *zerolog.Logger) *Generator {
	return &Generator{
		cfg:       cfg,
		store:     store,
		poster:    poster,
		clusterer: clusterer,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// Run generates the digest once per day at the configured local time until
// the context is canceled.
func (g *Generator) Run(ctx context.Context) error {
	if !g.cfg.MonitoringEnabled {
		g.logger.Info().Msg("monitoring disabled, digest generator not started")

		return errors.ErrMonitoringDisabled
	}

	for {
		next, err := schedule.NextDailyRun(g.now(), g.cfg.DigestTime, g.loc)
		if err != nil {
			return fmt.Errorf("digest schedule: %w", err)
		}

		g.logger.Info().Time("next_run", next).Msg("digest scheduled")

		if err := worker.WaitUntil(ctx, next); err != nil {
			return err
		}

		func() {
			defer worker.RecoverPanic(g.logger, "digest run")

			summary, err := g.RunOnce(ctx, "")
			if err != nil {
				g.logger.Error().Err(err).Msg("digest run failed")

				return
			}

			g.logger.Info().
				Int("accounts", summary.Accounts).
				Int("signals", summary.Signals).
				Msg("digest posted")
		}()
	}
}

// RunOnce builds and posts one digest. destination overrides the configured
// digest channel when non-empty (used by the trigger-digest control).
func (g *Generator) RunOnce(ctx context.Context, destination string) (Summary, error) {
	if destination == "" {
		destination = g.cfg.DigestChannelID
	}

	groups, err := g.store.GetPendingGroupedByAccount(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load pending items: %w", err)
	}

	var summary Summary

	for _, group := range groups {
		summary.Accounts++
		summary.Signals += len(group.Items)
	}

	observability.PendingItems.Set(float64(summary.Signals))

	if summary.Signals == 0 {
		if err := g.poster.PostMessage(ctx, destination, emptyDigestText(g.now().In(g.loc))); err != nil {
			observability.DigestsPosted.WithLabelValues(observability.StatusError).Inc()

			return summary, fmt.Errorf("post digest: %w", err)
		}

		observability.DigestsPosted.WithLabelValues(observability.StatusOK).Inc()

		return summary, nil
	}

	sections := make([]accountSection, 0, len(groups))
	for _, group := range groups {
		shown, hidden := g.buildTopics(ctx, group)
		sections = append(sections, accountSection{
			AccountName: group.AccountName,
			Topics:      shown,
			Hidden:      hidden,
			Total:       len(group.Items),
		})
	}

	text := render(g.now().In(g.loc), sections, g.cfg.MaxSignalsPerTopic)

	if err := g.poster.PostMessage(ctx, destination, text); err != nil {
		observability.DigestsPosted.WithLabelValues(observability.StatusError).Inc()

		return summary, fmt.Errorf("post digest: %w", err)
	}

	observability.DigestsPosted.WithLabelValues(observability.StatusOK).Inc()

	return summary, nil
}
