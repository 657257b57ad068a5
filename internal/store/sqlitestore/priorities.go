package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"pressline/internal/jobs"
	"pressline/internal/priority"
)

// QueuedSlots returns the queued jobs of press ordered by priority, ties
// broken by insertion order.
func (s *Store) QueuedSlots(ctx context.Context, press string) ([]priority.Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, priority FROM jobs WHERE press = ? AND status = ? ORDER BY priority ASC, rowid ASC`,
		press, string(jobs.StatusQueued),
	)
	if err != nil {
		return nil, fmt.Errorf("queued slots: %w", err)
	}
	defer rows.Close()

	var slots []priority.Slot
	for rows.Next() {
		var slot priority.Slot
		if err := rows.Scan(&slot.JobID, &slot.Priority); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return slots, nil
}

// ApplyPriorities writes slots in one transaction. Jobs that left the queue
// or the press since they were read are skipped.
func (s *Store) ApplyPriorities(ctx context.Context, press string, slots []priority.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`UPDATE jobs SET priority = ?, revision = revision + 1 WHERE id = ? AND press = ? AND status = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, slot := range slots {
			if _, err := stmt.ExecContext(ctx, slot.Priority, slot.JobID, press, string(jobs.StatusQueued)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply priorities for press %q: %w", press, err)
	}
	return nil
}

// QueuedPresses returns the distinct presses holding at least one queued job.
func (s *Store) QueuedPresses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT press FROM jobs WHERE status = ? AND press <> '' ORDER BY press`,
		string(jobs.StatusQueued),
	)
	if err != nil {
		return nil, fmt.Errorf("queued presses: %w", err)
	}
	defer rows.Close()

	var presses []string
	for rows.Next() {
		var press string
		if err := rows.Scan(&press); err != nil {
			return nil, fmt.Errorf("scan press: %w", err)
		}
		presses = append(presses, press)
	}
	return presses, rows.Err()
}
