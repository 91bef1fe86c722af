// Package poller runs the periodic extraction pipeline: per monitored
// channel it fetches new messages, filters and dedupes them, sends survivors
// through the relevance classifier and persists qualifying results as
// pending intelligence items.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/leadsignal/intel-bot/internal/config"
	"github.com/leadsignal/intel-bot/internal/core/domain"
	"github.com/leadsignal/intel-bot/internal/core/errors"
	"github.com/leadsignal/intel-bot/internal/llm"
	"github.com/leadsignal/intel-bot/internal/observability"
	"github.com/leadsignal/intel-bot/internal/platform/worker"
)

// Store is the slice of the database the poller needs.
type Store interface {
	ListChannels(ctx context.Context) ([]domain.MonitoredChannel, error)
	GetChannel(ctx context.Context, channelID string) (*domain.MonitoredChannel, error)
	UpdateLastPolled(ctx context.Context, channelID string, polledAt time.Time) error
	HasItem(ctx context.Context, channelID, messageTS string) (bool, error)
	CreateItem(ctx context.Context, item *domain.Item) (bool, error)
	GetDailyCount(ctx context.Context, channelID string, day time.Time) (int, error)
	IncrementDailyCount(ctx context.Context, channelID string, day time.Time) (int, error)
}

// ChatPlatform is the message-history side of the chat platform.
type ChatPlatform interface {
	FetchHistory(ctx context.Context, channelID string, oldest time.Time, limit int) ([]domain.Message, error)
	FetchThreadParent(ctx context.Context, channelID, threadTS string) (*domain.Message, error)
	ResolveUserName(ctx context.Context, userID string) (string, error)
}

// Stats aggregates the outcome of one poll cycle.
type Stats struct {
	ChannelsPolled int `json:"channels_polled"`
	ChannelsFailed int `json:"channels_failed"`
	MessagesSeen   int `json:"messages_seen"`
	ItemsCreated   int `json:"items_created"`
}

// Poller is the polling scheduler. Channels are processed one at a time, in
// registry order, so the per-channel daily counters stay honest and the
// external-call volume per cycle stays bounded.
type Poller struct {
	cfg        *config.Config
	store      Store
	platform   ChatPlatform
	classifier llm.Client
	loc        *time.Location
	logger     *zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Poller. loc is the single configured timezone governing the
// calendar-day boundary of the daily cap.
func New(cfg *config.Config, store Store, platform ChatPlatform, classifier llm.Client, loc *time.Location, logger *zerolog.Logger) *Poller {
	return &Poller{
		cfg:        cfg,
		store:      store,
		platform:   platform,
		classifier: classifier,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}
}

// Run drives RunOnce on the configured interval until the context is
// canceled. Returns immediately when monitoring is disabled.
func (p *Poller) Run(ctx context.Context) error {
	if !p.cfg.MonitoringEnabled {
		p.logger.Info().Msg("monitoring disabled, poller not started")

		return errors.ErrMonitoringDisabled
	}

	return worker.TickerLoop(ctx, worker.TickerConfig{
		Name:       "poller",
		Interval:   time.Duration(p.cfg.PollIntervalHours) * time.Hour,
		RunOnStart: true,
		Logger:     p.logger,
		OnTick: func(ctx context.Context) {
			defer worker.RecoverPanic(p.logger, "poll cycle")

			stats, err := p.RunOnce(ctx)
			if err != nil {
				p.logger.Error().Err(err).Msg("poll cycle failed")

				return
			}

			p.logger.Info().
				Int("channels", stats.ChannelsPolled).
				Int("failed", stats.ChannelsFailed).
				Int("messages", stats.MessagesSeen).
				Int("items", stats.ItemsCreated).
				Msg("poll cycle complete")
		},
	})
}

// RunOnce executes one poll cycle over all monitored channels. A fetch
// failure skips only that channel and leaves its checkpoint untouched so the
// same window is retried next cycle.
func (p *Poller) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	if !p.cfg.MonitoringEnabled {
		return stats, errors.ErrMonitoringDisabled
	}

	started := p.now()
	defer func() {
		observability.PollCycleDuration.Observe(time.Since(started).Seconds())
	}()

	channels, err := p.store.ListChannels(ctx)
	if err != nil {
		return stats, fmt.Errorf("list channels: %w", err)
	}

	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("poll cycle: %w", err)
		}

		stats.ChannelsPolled++
		cycleStart := p.now()

		seen, created, err := p.pollChannel(ctx, ch)
		stats.MessagesSeen += seen
		stats.ItemsCreated += created

		if err != nil {
			stats.ChannelsFailed++
			observability.ChannelsFailed.Inc()
			p.logger.Warn().Err(err).Str("channel_id", ch.ChannelID).Msg("channel skipped this cycle")

			continue
		}

		// The checkpoint advances once per completed cycle for the channel,
		// whether or not items were produced.
		if err := p.store.UpdateLastPolled(ctx, ch.ChannelID, cycleStart); err != nil {
			p.logger.Error().Err(err).Str("channel_id", ch.ChannelID).Msg("failed to update poll checkpoint")
		}
	}

	return stats, nil
}

func (p *Poller) pollChannel(ctx context.Context, ch domain.MonitoredChannel) (seen, created int, err error) {
	oldest := ch.LastPolledAt
	if oldest.IsZero() {
		oldest = p.now().Add(-time.Duration(p.cfg.InitialLookbackHours) * time.Hour)
	}

	messages, err := p.platform.FetchHistory(ctx, ch.ChannelID, oldest, p.cfg.FetchLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch history: %w", err)
	}

	for _, msg := range messages {
		seen++

		observability.MessagesFetched.WithLabelValues(ch.ChannelID).Inc()

		if !p.passesFilter(msg) {
			continue
		}

		exists, err := p.store.HasItem(ctx, ch.ChannelID, msg.Timestamp)
		if err != nil {
			p.logger.Error().Err(err).Str("message_ts", msg.Timestamp).Msg("dedup lookup failed, skipping message")

			continue
		}

		if exists {
			continue
		}

		capped, err := p.dailyCapReached(ctx, ch.ChannelID)
		if err != nil {
			p.logger.Error().Err(err).Str("channel_id", ch.ChannelID).Msg("daily counter lookup failed, skipping message")

			continue
		}

		if capped {
			observability.DailyCapHits.Inc()
			p.logger.Info().Str("channel_id", ch.ChannelID).Msg("daily item cap reached, stopping channel for this cycle")

			break
		}

		text, err := p.withThreadContext(ctx, msg)
		if err != nil {
			return seen, created, fmt.Errorf("resolve thread context: %w", err)
		}

		ok, err := p.classifyAndStore(ctx, ch, msg, text, true)
		if err != nil {
			return seen, created, err
		}

		if ok {
			created++
		}
	}

	return seen, created, nil
}

// ProcessRealtime handles a single immediate-trigger message. It performs
// only dedup, rate limiting, classification and persistence, and honors the
// same rules as the batch path. Returns true when an item was created.
func (p *Poller) ProcessRealtime(ctx context.Context, channelID, messageTS, text, authorID string) (bool, error) {
	ch, err := p.store.GetChannel(ctx, channelID)
	if err != nil {
		return false, fmt.Errorf("realtime: %w", err)
	}

	exists, err := p.store.HasItem(ctx, channelID, messageTS)
	if err != nil {
		return false, fmt.Errorf("realtime dedup: %w", err)
	}

	if exists {
		observability.RealtimeEvents.WithLabelValues(observability.StatusSkip).Inc()

		return false, nil
	}

	capped, err := p.dailyCapReached(ctx, channelID)
	if err != nil {
		return false, fmt.Errorf("realtime counter: %w", err)
	}

	if capped {
		observability.RealtimeEvents.WithLabelValues(observability.StatusDenied).Inc()

		return false, errors.ErrDailyCapReached
	}

	observability.RealtimeEvents.WithLabelValues(observability.StatusOK).Inc()

	msg := domain.Message{
		ChannelID: channelID,
		Timestamp: messageTS,
		AuthorID:  authorID,
		Text:      text,
	}

	return p.classifyAndStore(ctx, *ch, msg, text, false)
}

// passesFilter drops automated messages and messages below the minimum length.
func (p *Poller) passesFilter(msg domain.Message) bool {
	if msg.IsBot || msg.Subtype != "" {
		return false
	}

	return len([]rune(msg.Text)) >= p.cfg.MinMessageLength
}

func (p *Poller) dailyCapReached(ctx context.Context, channelID string) (bool, error) {
	count, err := p.store.GetDailyCount(ctx, channelID, p.today())
	if err != nil {
		return false, err
	}

	return count >= p.cfg.DailyItemCap, nil
}

// withThreadContext prepends a short excerpt of the thread parent when the
// message is a threaded reply.
func (p *Poller) withThreadContext(ctx context.Context, msg domain.Message) (string, error) {
	if !msg.IsReply() {
		return msg.Text, nil
	}

	parent, err := p.platform.FetchThreadParent(ctx, msg.ChannelID, msg.ThreadTS)
	if err != nil {
		return "", err
	}

	if parent == nil || parent.Text == "" {
		return msg.Text, nil
	}

	return fmt.Sprintf("In reply to: %q\n%s", excerpt(parent.Text, p.cfg.ThreadContextMax), msg.Text), nil
}

// classifyAndStore runs the classification boundary and persists the item on
// a qualifying verdict. Classifier failures are skips, never fatal and never
// retried within the cycle. strictAuthor propagates author-lookup failures
// (batch path); the realtime path degrades to the raw author id.
func (p *Poller) classifyAndStore(ctx context.Context, ch domain.MonitoredChannel, msg domain.Message, text string, strictAuthor bool) (bool, error) {
	verdict, err := p.classifier.ClassifyMessage(ctx, msg.AuthorID, text)
	if err != nil {
		observability.ClassifierCalls.WithLabelValues(observability.StatusError).Inc()
		p.logger.Warn().Err(err).Str("message_ts", msg.Timestamp).Msg("classification failed, skipping message")

		return false, nil
	}

	if !verdict.Relevant || verdict.Confidence < p.cfg.ConfidenceThreshold {
		observability.ClassifierCalls.WithLabelValues(observability.StatusSkip).Inc()

		return false, nil
	}

	observability.ClassifierCalls.WithLabelValues(observability.StatusOK).Inc()

	authorName, err := p.platform.ResolveUserName(ctx, msg.AuthorID)
	if err != nil {
		if strictAuthor {
			return false, fmt.Errorf("resolve author: %w", err)
		}

		authorName = msg.AuthorID
	}

	item := &domain.Item{
		ChannelID:   ch.ChannelID,
		AccountID:   ch.AccountID,
		AccountName: ch.AccountName,
		MessageTS:   msg.Timestamp,
		AuthorID:    msg.AuthorID,
		AuthorName:  authorName,
		Text:        msg.Text,
		Category:    verdict.Category,
		Summary:     verdict.Summary,
		Confidence:  verdict.Confidence,
		Status:      domain.StatusPending,
	}

	created, err := p.store.CreateItem(ctx, item)
	if err != nil {
		p.logger.Error().Err(err).Str("message_ts", msg.Timestamp).Msg("failed to store item")

		return false, nil
	}

	if !created {
		// Lost the race on the dedup key; the other writer's item stands.
		return false, nil
	}

	if _, err := p.store.IncrementDailyCount(ctx, ch.ChannelID, p.today()); err != nil {
		p.logger.Error().Err(err).Str("channel_id", ch.ChannelID).Msg("failed to bump daily counter")
	}

	observability.ItemsCreated.WithLabelValues(string(verdict.Category)).Inc()

	return true, nil
}

func (p *Poller) today() time.Time {
	return p.now().In(p.loc)
}

func excerpt(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	return string(runes[:max]) + "..."
}
