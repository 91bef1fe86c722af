// Package registry maintains the set of channels under monitoring and their
// best-known CRM account linkage.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/leadsignal/intel-bot/internal/config"
	"github.com/leadsignal/intel-bot/internal/core/domain"
)

// Store is the slice of the database the registry needs.
type Store interface {
	UpsertChannel(ctx context.Context, ch *domain.MonitoredChannel) error
	GetChannel(ctx context.Context, channelID string) (*domain.MonitoredChannel, error)
	ListChannels(ctx context.Context) ([]domain.MonitoredChannel, error)
	SetChannelAccount(ctx context.Context, channelID, accountID, accountName string) error
	UpdateChannelName(ctx context.Context, channelID, channelName string) error
	UpdateLastPolled(ctx context.Context, channelID string, polledAt time.Time) error
	DeleteChannel(ctx context.Context, channelID string) error
}

// AccountDirectory lists the CRM account directory for fuzzy matching.
type AccountDirectory interface {
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// Notifier posts the registration welcome message into the channel.
type Notifier interface {
	PostMessage(ctx context.Context, channelID, text string) error
}

// Registry maps chat channels to CRM accounts and persists poll checkpoints.
type Registry struct {
	cfg       *config.Config
	store     Store
	directory AccountDirectory
	notifier  Notifier
	logger    *zerolog.Logger
}

// New creates a Registry. The notifier may be nil when no chat surface is wired.
func New(cfg *config.Config, store Store, directory AccountDirectory, notifier Notifier, logger *zerolog.Logger) *Registry {
	return &Registry{
		cfg:       cfg,
		store:     store,
		directory: directory,
		notifier:  notifier,
		logger:    logger,
	}
}

// Register puts a channel under monitoring. A candidate account name is
// derived from the channel name and fuzzy-matched against the CRM directory;
// a failed or low-confidence match leaves the channel unmapped, never errors.
func (r *Registry) Register(ctx context.Context, channelID, channelName string) (*domain.MonitoredChannel, error) {
	candidate := DeriveCandidate(channelName)

	ch := &domain.MonitoredChannel{
		ChannelID:   channelID,
		ChannelName: channelName,
		AccountName: candidate,
	}

	if match := r.matchAccount(ctx, candidate); match != nil {
		ch.AccountID = match.AccountID
		ch.AccountName = match.AccountName
	}

	if err := r.store.UpsertChannel(ctx, ch); err != nil {
		return nil, fmt.Errorf("register channel: %w", err)
	}

	r.logger.Info().
		Str("channel_id", channelID).
		Str("channel_name", channelName).
		Str("account_name", ch.AccountName).
		Bool("linked", ch.Linked()).
		Msg("channel registered")

	r.postWelcome(ctx, ch)

	return ch, nil
}

// SetAccount is the explicit manual override; it always wins over fuzzy
// matching. The account id is resolved from the directory when the name
// matches an account exactly (case-insensitive), otherwise only the name is
// recorded.
func (r *Registry) SetAccount(ctx context.Context, channelID, accountName string) error {
	accountID := ""

	if r.directory != nil {
		accounts, err := r.directory.ListAccounts(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("account directory lookup failed, storing name only")
		} else {
			for _, a := range accounts {
				if strings.EqualFold(a.Name, accountName) {
					accountID = a.ID
					accountName = a.Name

					break
				}
			}
		}
	}

	if err := r.store.SetChannelAccount(ctx, channelID, accountID, accountName); err != nil {
		return fmt.Errorf("set account: %w", err)
	}

	return nil
}

// OnRename records the new channel name. If the channel has no account
// mapping yet, derivation and matching are re-attempted with the new name; an
// existing mapping is never overridden.
func (r *Registry) OnRename(ctx context.Context, channelID, newName string) error {
	ch, err := r.store.GetChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("on rename: %w", err)
	}

	if err := r.store.UpdateChannelName(ctx, channelID, newName); err != nil {
		return fmt.Errorf("on rename: %w", err)
	}

	if ch.Linked() {
		return nil
	}

	candidate := DeriveCandidate(newName)
	if match := r.matchAccount(ctx, candidate); match != nil {
		if err := r.store.SetChannelAccount(ctx, channelID, match.AccountID, match.AccountName); err != nil {
			return fmt.Errorf("on rename: %w", err)
		}

		r.logger.Info().
			Str("channel_id", channelID).
			Str("account_name", match.AccountName).
			Msg("channel matched after rename")
	}

	return nil
}

// Unregister removes the channel from monitoring.
func (r *Registry) Unregister(ctx context.Context, channelID string) error {
	if err := r.store.DeleteChannel(ctx, channelID); err != nil {
		return fmt.Errorf("unregister channel: %w", err)
	}

	return nil
}

// List returns all monitored channels in registration order.
func (r *Registry) List(ctx context.Context) ([]domain.MonitoredChannel, error) {
	return r.store.ListChannels(ctx)
}

// matchAccount degrades every failure to "no match": a channel may be stored
// unmapped but never in an inconsistent state.
func (r *Registry) matchAccount(ctx context.Context, candidate string) *domain.AccountMatch {
	if r.directory == nil || candidate == "" {
		return nil
	}

	accounts, err := r.directory.ListAccounts(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Str("candidate", candidate).Msg("account matching failed")

		return nil
	}

	match := BestMatch(candidate, accounts, r.cfg.MatchThreshold)
	if match == nil {
		r.logger.Debug().Str("candidate", candidate).Msg("no account match above threshold")
	}

	return match
}

func (r *Registry) postWelcome(ctx context.Context, ch *domain.MonitoredChannel) {
	if r.notifier == nil {
		return
	}

	text := fmt.Sprintf("Now monitoring this channel for account intelligence (account: %s).", ch.AccountName)
	if !ch.Linked() {
		text = fmt.Sprintf("Now monitoring this channel. No CRM account matched %q yet; set one to enable sync.", ch.AccountName)
	}

	if err := r.notifier.PostMessage(ctx, ch.ChannelID, text); err != nil {
		r.logger.Warn().Err(err).Str("channel_id", ch.ChannelID).Msg("failed to post welcome message")
	}
}
