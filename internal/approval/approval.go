// Package approval processes human review decisions. Approval performs an
// idempotence-guarded read-modify-write against the CRM account record and
// flips the item's status only after the write succeeds; rejection flips
// status and never touches the CRM.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/leadsignal/intel-bot/internal/config"
	"github.com/leadsignal/intel-bot/internal/core/domain"
	"github.com/leadsignal/intel-bot/internal/core/errors"
	"github.com/leadsignal/intel-bot/internal/observability"
)

const noteExcerptMax = 150

// Store is the slice of the database the handler needs.
type Store interface {
	GetItemByID(ctx context.Context, id string) (*domain.Item, error)
	UpdateItemStatus(ctx context.Context, id string, status domain.Status, reviewedBy string) (bool, error)
	BatchUpdateItemStatus(ctx context.Context, ids []string, status domain.Status, reviewedBy string) ([]string, error)
}

// CRM reads and writes the free-text intelligence field of an account record.
type CRM interface {
	ReadIntelligence(ctx context.Context, accountID string) (string, error)
	WriteIntelligence(ctx context.Context, accountID, value string) error
}

// Result reports the outcome of one item's decision within a bulk operation.
type Result struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handler applies review decisions to items.
type Handler struct {
	cfg    *config.Config
	store  Store
	crm    CRM
	loc    *time.Location
	logger *zerolog.Logger

	now func() time.Time
}

func New(cfg *config.Config, store Store, crm CRM, loc *time.Location, logger *zerolog.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		store:  store,
		crm:    crm,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// ApproveAndSync approves one item and appends its note to the account's
// intelligence field. New entries are prepended; existing history is never
// truncated. On any failure before or during the CRM write the item stays
// pending and the error describes the cause.
func (h *Handler) ApproveAndSync(ctx context.Context, id, reviewedBy string) error {
	item, err := h.store.GetItemByID(ctx, id)
	if err != nil {
		return fmt.Errorf("approve %s: %w", id, err)
	}

	if item.Status != domain.StatusPending {
		return fmt.Errorf("approve %s: %w", id, errors.ErrNotPending)
	}

	if item.AccountID == "" {
		return fmt.Errorf("approve %s: %w", id, errors.ErrNoLinkedAccount)
	}

	crmCtx, cancel := context.WithTimeout(ctx, h.cfg.CRMTimeout)
	defer cancel()

	existing, err := h.crm.ReadIntelligence(crmCtx, item.AccountID)
	if err != nil {
		observability.SyncWrites.WithLabelValues(observability.StatusError).Inc()

		return fmt.Errorf("read crm field: %w", err)
	}

	updated := BuildNote(item, h.now().In(h.loc))
	if existing != "" {
		updated = updated + "\n\n" + existing
	}

	if err := h.crm.WriteIntelligence(crmCtx, item.AccountID, updated); err != nil {
		observability.SyncWrites.WithLabelValues(observability.StatusError).Inc()

		return fmt.Errorf("write crm field: %w", err)
	}

	observability.SyncWrites.WithLabelValues(observability.StatusOK).Inc()

	ok, err := h.store.UpdateItemStatus(ctx, id, domain.StatusApproved, reviewedBy)
	if err != nil {
		return fmt.Errorf("approve %s: %w", id, err)
	}

	if !ok {
		return fmt.Errorf("approve %s: %w", id, errors.ErrNotPending)
	}

	observability.Reviews.WithLabelValues(string(domain.StatusApproved)).Inc()
	h.logger.Info().Str("item_id", id).Str("reviewed_by", reviewedBy).Msg("item approved and synced")

	return nil
}

// Reject flips one item to rejected. No CRM write, ever.
func (h *Handler) Reject(ctx context.Context, id, reviewedBy string) error {
	ok, err := h.store.UpdateItemStatus(ctx, id, domain.StatusRejected, reviewedBy)
	if err != nil {
		return fmt.Errorf("reject %s: %w", id, err)
	}

	if !ok {
		return fmt.Errorf("reject %s: %w", id, errors.ErrNotPending)
	}

	observability.Reviews.WithLabelValues(string(domain.StatusRejected)).Inc()
	h.logger.Info().Str("item_id", id).Str("reviewed_by", reviewedBy).Msg("item rejected")

	return nil
}

// ApproveAll approves each id independently; one item's failure never blocks
// the others.
func (h *Handler) ApproveAll(ctx context.Context, ids []string, reviewedBy string) []Result {
	return h.applyAll(ids, func(id string) error {
		return h.ApproveAndSync(ctx, id, reviewedBy)
	})
}

// RejectAll rejects the ids in one guarded batch. Rejection needs no CRM
// work, so the per-item loop of ApproveAll is unnecessary here.
func (h *Handler) RejectAll(ctx context.Context, ids []string, reviewedBy string) []Result {
	updated, err := h.store.BatchUpdateItemStatus(ctx, ids, domain.StatusRejected, reviewedBy)
	if err != nil {
		h.logger.Error().Err(err).Msg("bulk reject failed")
	}

	transitioned := make(map[string]bool, len(updated))
	for _, id := range updated {
		transitioned[id] = true
	}

	observability.Reviews.WithLabelValues(string(domain.StatusRejected)).Add(float64(len(updated)))

	results := make([]Result, 0, len(ids))

	for _, id := range ids {
		result := Result{ID: id, OK: transitioned[id]}

		if !result.OK {
			result.Error = errors.ErrNotPending.Error()
			if err != nil {
				result.Error = err.Error()
			}
		}

		results = append(results, result)
	}

	return results
}

func (h *Handler) applyAll(ids []string, apply func(id string) error) []Result {
	results := make([]Result, 0, len(ids))

	for _, id := range ids {
		result := Result{ID: id, OK: true}
		if err := apply(id); err != nil {
			result.OK = false
			result.Error = err.Error()
		}

		results = append(results, result)
	}

	return results
}

// BuildNote renders the CRM note for an approved item: a short date, the
// category label in brackets and the summary (or a truncated excerpt of the
// raw text), followed by a source line naming the channel and author.
func BuildNote(item *domain.Item, at time.Time) string {
	body := item.Summary
	if body == "" {
		body = excerpt(item.Text, noteExcerptMax)
	}

	return fmt.Sprintf("%s [%s] %s\n  — #%s, %s",
		at.Format("01/02"), item.Category.Label(), body, item.ChannelID, item.AuthorName)
}

func excerpt(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	return string(runes[:max]) + "..."
}
