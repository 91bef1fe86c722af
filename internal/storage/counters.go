package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Daily counters are durable and keyed by (channel_id, calendar day) so the
// per-channel cap survives restarts and holds across multiple instances. The
// calendar day is computed by the caller in the single configured timezone.

// GetDailyCount returns the number of items stored for a channel on the given
// day. A missing row counts as zero.
func (db *DB) GetDailyCount(ctx context.Context, channelID string, day time.Time) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		SELECT item_count FROM channel_daily_counts WHERE channel_id = $1 AND day = $2
	`, channelID, dateOnly(day)).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}

		return 0, fmt.Errorf("get daily count: %w", err)
	}

	return count, nil
}

// IncrementDailyCount atomically bumps the counter for (channel, day) and
// returns the new value.
func (db *DB) IncrementDailyCount(ctx context.Context, channelID string, day time.Time) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO channel_daily_counts (channel_id, day, item_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (channel_id, day) DO UPDATE SET item_count = channel_daily_counts.item_count + 1
		RETURNING item_count
	`, channelID, dateOnly(day)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment daily count: %w", err)
	}

	return count, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
