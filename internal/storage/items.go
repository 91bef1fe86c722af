package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/leadsignal/intel-bot/internal/core/domain"
	coreerrors "github.com/leadsignal/intel-bot/internal/core/errors"
)

// AccountGroup holds one account's pending items, ordered by message timestamp.
type AccountGroup struct {
	AccountName string
	Items       []domain.Item
}

// CreateItem inserts a new pending item. The insert is idempotent on the
// (channel_id, message_ts) dedup key: a duplicate create is a no-op and
// returns false. The unique constraint makes this safe against the batch and
// realtime paths racing on the same message.
func (db *DB) CreateItem(ctx context.Context, item *domain.Item) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO intelligence_items
			(id, channel_id, account_id, account_name, message_ts, author_id, author_name,
			 text, category, summary, confidence, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (channel_id, message_ts) DO NOTHING
	`, item.ID, item.ChannelID, toText(item.AccountID), item.AccountName, item.MessageTS,
		item.AuthorID, item.AuthorName, item.Text, string(item.Category), item.Summary,
		item.Confidence, string(domain.StatusPending))
	if err != nil {
		return false, fmt.Errorf("create item: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// HasItem reports whether an item already exists for the dedup key.
func (db *DB) HasItem(ctx context.Context, channelID, messageTS string) (bool, error) {
	var exists bool

	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM intelligence_items WHERE channel_id = $1 AND message_ts = $2
		)
	`, channelID, messageTS).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has item: %w", err)
	}

	return exists, nil
}

// GetItemByID returns one item by id.
func (db *DB) GetItemByID(ctx context.Context, id string) (*domain.Item, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, channel_id, account_id, account_name, message_ts, author_id, author_name,
		       text, category, summary, confidence, status, reviewed_by, reviewed_at, created_at
		FROM intelligence_items
		WHERE id = $1
	`, id)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrItemNotFound
		}

		return nil, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

// GetPendingGroupedByAccount returns all pending items grouped by account
// name. Groups come back in account-name order, items within a group in
// message-timestamp order. Items from unmapped channels group under their
// candidate account name.
func (db *DB) GetPendingGroupedByAccount(ctx context.Context) ([]AccountGroup, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, channel_id, account_id, account_name, message_ts, author_id, author_name,
		       text, category, summary, confidence, status, reviewed_by, reviewed_at, created_at
		FROM intelligence_items
		WHERE status = $1
		ORDER BY account_name, message_ts
	`, string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("get pending items: %w", err)
	}
	defer rows.Close()

	var groups []AccountGroup

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}

		if len(groups) == 0 || groups[len(groups)-1].AccountName != item.AccountName {
			groups = append(groups, AccountGroup{AccountName: item.AccountName})
		}

		last := &groups[len(groups)-1]
		last.Items = append(last.Items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get pending items: %w", err)
	}

	return groups, nil
}

// UpdateItemStatus flips a pending item to approved or rejected. The guard on
// the current status makes the transition monotonic: an already-reviewed item
// is not updated and false is returned.
func (db *DB) UpdateItemStatus(ctx context.Context, id string, status domain.Status, reviewedBy string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE intelligence_items
		SET status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1 AND status = $5
	`, id, string(status), toText(reviewedBy), toTimestamptz(time.Now()), string(domain.StatusPending))
	if err != nil {
		return false, fmt.Errorf("update item status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// BatchUpdateItemStatus applies UpdateItemStatus to each id independently and
// returns the ids that actually transitioned.
func (db *DB) BatchUpdateItemStatus(ctx context.Context, ids []string, status domain.Status, reviewedBy string) ([]string, error) {
	updated := make([]string, 0, len(ids))

	for _, id := range ids {
		ok, err := db.UpdateItemStatus(ctx, id, status, reviewedBy)
		if err != nil {
			return updated, err
		}

		if ok {
			updated = append(updated, id)
		}
	}

	return updated, nil
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var (
		item       domain.Item
		accountID  pgtype.Text
		reviewedBy pgtype.Text
		reviewedAt pgtype.Timestamptz
		category   string
		status     string
	)

	err := row.Scan(&item.ID, &item.ChannelID, &accountID, &item.AccountName, &item.MessageTS,
		&item.AuthorID, &item.AuthorName, &item.Text, &category, &item.Summary,
		&item.Confidence, &status, &reviewedBy, &reviewedAt, &item.CreatedAt)
	if err != nil {
		return nil, err
	}

	item.AccountID = accountID.String
	item.ReviewedBy = reviewedBy.String
	item.ReviewedAt = reviewedAt.Time
	item.Category = domain.Category(category)
	item.Status = domain.Status(status)

	return &item, nil
}
