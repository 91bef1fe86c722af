package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/leadsignal/intel-bot/internal/core/domain"
	coreerrors "github.com/leadsignal/intel-bot/internal/core/errors"
)

// UpsertChannel registers a channel for monitoring or refreshes its name if it
// is already registered. The account mapping is left untouched on conflict.
func (db *DB) UpsertChannel(ctx context.Context, ch *domain.MonitoredChannel) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO monitored_channels (channel_id, channel_name, account_id, account_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (channel_id) DO UPDATE SET channel_name = EXCLUDED.channel_name
	`, ch.ChannelID, ch.ChannelName, toText(ch.AccountID), ch.AccountName)
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}

	return nil
}

// GetChannel returns one monitored channel by id.
func (db *DB) GetChannel(ctx context.Context, channelID string) (*domain.MonitoredChannel, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT channel_id, channel_name, account_id, account_name, last_polled_at, created_at
		FROM monitored_channels
		WHERE channel_id = $1
	`, channelID)

	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrChannelNotFound
		}

		return nil, fmt.Errorf("get channel: %w", err)
	}

	return ch, nil
}

// ListChannels returns all monitored channels in registration order. The poll
// cycle visits channels in exactly this order.
func (db *DB) ListChannels(ctx context.Context) ([]domain.MonitoredChannel, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT channel_id, channel_name, account_id, account_name, last_polled_at, created_at
		FROM monitored_channels
		ORDER BY created_at, channel_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []domain.MonitoredChannel

	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}

		channels = append(channels, *ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	return channels, nil
}

// SetChannelAccount updates a channel's account mapping.
func (db *DB) SetChannelAccount(ctx context.Context, channelID, accountID, accountName string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE monitored_channels SET account_id = $2, account_name = $3 WHERE channel_id = $1
	`, channelID, toText(accountID), accountName)
	if err != nil {
		return fmt.Errorf("set channel account: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return coreerrors.ErrChannelNotFound
	}

	return nil
}

// UpdateChannelName renames a channel without touching its account mapping.
func (db *DB) UpdateChannelName(ctx context.Context, channelID, channelName string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE monitored_channels SET channel_name = $2 WHERE channel_id = $1
	`, channelID, channelName)
	if err != nil {
		return fmt.Errorf("update channel name: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return coreerrors.ErrChannelNotFound
	}

	return nil
}

// UpdateLastPolled records the completion of a poll cycle for a channel.
// Called once per completed cycle regardless of whether items were produced.
func (db *DB) UpdateLastPolled(ctx context.Context, channelID string, polledAt time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE monitored_channels SET last_polled_at = $2 WHERE channel_id = $1
	`, channelID, toTimestamptz(polledAt))
	if err != nil {
		return fmt.Errorf("update last polled: %w", err)
	}

	return nil
}

// DeleteChannel removes a channel from monitoring. Existing items are kept.
func (db *DB) DeleteChannel(ctx context.Context, channelID string) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM monitored_channels WHERE channel_id = $1
	`, channelID)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return coreerrors.ErrChannelNotFound
	}

	return nil
}

func scanChannel(row pgx.Row) (*domain.MonitoredChannel, error) {
	var (
		ch         domain.MonitoredChannel
		accountID  pgtype.Text
		lastPolled pgtype.Timestamptz
	)

	if err := row.Scan(&ch.ChannelID, &ch.ChannelName, &accountID, &ch.AccountName, &lastPolled, &ch.CreatedAt); err != nil {
		return nil, err
	}

	ch.AccountID = accountID.String
	ch.LastPolledAt = lastPolled.Time

	return &ch, nil
}
