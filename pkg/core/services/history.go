package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/model"
	"github.com/jakechorley/shift-calendar/pkg/db"
)

// MaxHistoryLimit caps how many audit entries a feed read returns
const MaxHistoryLimit = 100

// ListHistory returns the most recent audit entries, newest first. A limit
// outside 1..MaxHistoryLimit is treated as MaxHistoryLimit.
func ListHistory(ctx context.Context, store db.HistoryStore, logger *zap.Logger, limit int) ([]db.HistoryEntry, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	entries, err := store.ListHistory(ctx, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list history", Err: err}
	}

	logger.Debug("Listed history", zap.Int("limit", limit), zap.Int("count", len(entries)))
	return entries, nil
}

// DateHistory returns every audit entry for one date, oldest first
func DateHistory(ctx context.Context, store db.HistoryStore, logger *zap.Logger, date string) ([]db.HistoryEntry, error) {
	if _, err := model.ParseDate(date); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	entries, err := store.ListHistoryForDate(ctx, date)
	if err != nil {
		return nil, &PersistenceError{Op: "list history for date", Err: err}
	}

	logger.Debug("Listed history for date", zap.String("date", date), zap.Int("count", len(entries)))
	return entries, nil
}
