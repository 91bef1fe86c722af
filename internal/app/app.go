// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Poller mode: Scheduled channel polling, classification, and item capture
//   - Digest mode: Scheduled daily digest generation and posting
//   - Admin mode: HTTP control surface for operators (channels, reviews, triggers)
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/leadsignal/intel-bot/internal/admin"
	"github.com/leadsignal/intel-bot/internal/approval"
	"github.com/leadsignal/intel-bot/internal/chat"
	"github.com/leadsignal/intel-bot/internal/config"
	"github.com/leadsignal/intel-bot/internal/crm"
	"github.com/leadsignal/intel-bot/internal/digest"
	"github.com/leadsignal/intel-bot/internal/llm"
	"github.com/leadsignal/intel-bot/internal/observability"
	"github.com/leadsignal/intel-bot/internal/poller"
	"github.com/leadsignal/intel-bot/internal/registry"
	db "github.com/leadsignal/intel-bot/internal/storage"
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	server := observability.NewServer(a.database, a.cfg.HealthPort, a.logger)

	return server.Start(ctx)
}

// RunPoller runs the scheduled polling pipeline until the context is canceled.
func (a *App) RunPoller(ctx context.Context, once bool) error {
	a.logger.Info().Bool("once", once).Msg("Starting poller mode")

	p, err := a.newPoller()
	if err != nil {
		return err
	}

	if once {
		stats, err := p.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("poll run once: %w", err)
		}

		a.logger.Info().
			Int("channels_polled", stats.ChannelsPolled).
			Int("items_created", stats.ItemsCreated).
			Msg("poll cycle complete")

		return nil
	}

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("poller run: %w", err)
	}

	return nil
}

// RunDigest runs the scheduled digest generator until the context is canceled.
func (a *App) RunDigest(ctx context.Context, once bool) error {
	a.logger.Info().Bool("once", once).Msg("Starting digest mode")

	g, err := a.newGenerator()
	if err != nil {
		return err
	}

	if once {
		summary, err := g.RunOnce(ctx, "")
		if err != nil {
			return fmt.Errorf("digest run once: %w", err)
		}

		a.logger.Info().
			Int("accounts", summary.Accounts).
			Int("signals", summary.Signals).
			Msg("digest complete")

		return nil
	}

	if err := g.Run(ctx); err != nil {
		return fmt.Errorf("digest run: %w", err)
	}

	return nil
}

// RunAdmin runs the operator HTTP control surface until the context is canceled.
func (a *App) RunAdmin(ctx context.Context) error {
	a.logger.Info().Int("port", a.cfg.AdminPort).Msg("Starting admin mode")

	loc, err := a.cfg.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone: %w", err)
	}

	chatClient := chat.New(a.cfg, a.logger)
	crmClient := crm.New(a.cfg, a.logger)

	p, err := a.newPoller()
	if err != nil {
		return err
	}

	g, err := a.newGenerator()
	if err != nil {
		return err
	}

	reg := registry.New(a.cfg, a.database, crmClient, chatClient, a.logger)
	reviews := approval.New(a.cfg, a.database, crmClient, loc, a.logger)

	server := admin.NewServer(a.cfg.AdminPort, p, g, reg, reviews, a.logger)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("admin server: %w", err)
	}

	return nil
}

func (a *App) newPoller() (*poller.Poller, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	chatClient := chat.New(a.cfg, a.logger)
	llmClient := llm.New(a.cfg, a.logger)

	return poller.New(a.cfg, a.database, chatClient, llmClient, loc, a.logger), nil
}

func (a *App) newGenerator() (*digest.Generator, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	chatClient := chat.New(a.cfg, a.logger)
	llmClient := llm.New(a.cfg, a.logger)

	return digest.New(a.cfg, a.database, chatClient, llmClient, loc, a.logger), nil
}
