package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/entity"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append adds a transition attempt to the history. Rows are never updated
// or deleted.
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.TransitionHistoryEntry) error {
	errs, err := marshalStrings(entry.Errors)
	if err != nil {
		return err
	}
	warnings, err := marshalStrings(entry.Warnings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transition_history (
			id, instance_id, from_state, to_state, allowed,
			errors, warnings, actor_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = pick(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.InstanceID,
		entry.FromState,
		entry.ToState,
		entry.Allowed,
		errs,
		warnings,
		entry.ActorID,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append history entry", zap.Error(err))
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// ListByInstanceID returns the instance's transition attempts in
// chronological order
func (r *HistoryRepository) ListByInstanceID(ctx context.Context, instanceID string) ([]*entity.TransitionHistoryEntry, error) {
	query := `
		SELECT id, instance_id, from_state, to_state, allowed,
			errors, warnings, actor_id, timestamp
		FROM transition_history
		WHERE instance_id = ?
		ORDER BY timestamp
	`
	rows, err := pick(ctx, r.db).QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.TransitionHistoryEntry
	for rows.Next() {
		var (
			entry    entity.TransitionHistoryEntry
			errs     string
			warnings string
		)
		err := rows.Scan(
			&entry.ID,
			&entry.InstanceID,
			&entry.FromState,
			&entry.ToState,
			&entry.Allowed,
			&errs,
			&warnings,
			&entry.ActorID,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		if entry.Errors, err = unmarshalStrings(errs); err != nil {
			return nil, err
		}
		if entry.Warnings, err = unmarshalStrings(warnings); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
