package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pressline/internal/jobs"
	"pressline/internal/store"
	"pressline/internal/timeline"
)

const jobColumns = "id, ot, client, job_type, quantity_planned, comments, operator_comments, machine_speed, pantone, barniz, is_4x0, is_4x4, status, press, priority, setup_count, total_setup_time, pause_count, total_pause_time, created_by, started_by_user_id, created_at, updated_at, revision"

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*jobs.Job, error) {
	var (
		job              jobs.Job
		comments         sql.NullString
		operatorComments sql.NullString
		machineSpeed     sql.NullString
		pantone          int
		barniz           int
		is4x0            int
		is4x4            int
		statusStr        string
		createdBy        sql.NullString
		startedBy        sql.NullString
		createdRaw       string
		updatedRaw       string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.OT,
		&job.Client,
		&job.JobType,
		&job.QuantityPlanned,
		&comments,
		&operatorComments,
		&machineSpeed,
		&pantone,
		&barniz,
		&is4x0,
		&is4x4,
		&statusStr,
		&job.Press,
		&job.Priority,
		&job.SetupCount,
		&job.TotalSetupTime,
		&job.PauseCount,
		&job.TotalPauseTime,
		&createdBy,
		&startedBy,
		&createdRaw,
		&updatedRaw,
		&job.Revision,
	); err != nil {
		return nil, err
	}
	job.Comments = comments.String
	job.OperatorComments = operatorComments.String
	job.MachineSpeed = machineSpeed.String
	job.Pantone = pantone != 0
	job.Barniz = barniz != 0
	job.Is4x0 = is4x0 != 0
	job.Is4x4 = is4x4 != 0
	job.Status = jobs.Status(statusStr)
	job.CreatedBy = createdBy.String
	job.StartedByUserID = startedBy.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return &job, nil
}

// GetJob fetches a job and its timeline. It returns nil, nil when no job
// matches.
func (s *Store) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if err := attachTimelines(ctx, s.db, []*jobs.Job{job}); err != nil {
		return nil, err
	}
	return job, nil
}

// FindJobs returns jobs matching filter ordered by priority, then insertion.
func (s *Store) FindJobs(ctx context.Context, filter jobs.Filter) ([]*jobs.Job, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Press != "" {
		clauses = append(clauses, "press = ?")
		args = append(args, filter.Press)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY priority ASC, rowid ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find jobs: %w", err)
	}
	defer rows.Close()

	var found []*jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		found = append(found, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	if err := attachTimelines(ctx, s.db, found); err != nil {
		return nil, err
	}
	return found, nil
}

// InsertJob stores a new job with its initial timeline.
func (s *Store) InsertJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (`+jobColumns+`) VALUES (`+makePlaceholders(24)+`)`,
			job.ID,
			job.OT,
			job.Client,
			job.JobType,
			job.QuantityPlanned,
			nullableString(job.Comments),
			nullableString(job.OperatorComments),
			nullableString(job.MachineSpeed),
			boolToInt(job.Pantone),
			boolToInt(job.Barniz),
			boolToInt(job.Is4x0),
			boolToInt(job.Is4x4),
			string(job.Status),
			job.Press,
			job.Priority,
			job.SetupCount,
			job.TotalSetupTime,
			job.PauseCount,
			job.TotalPauseTime,
			nullableString(job.CreatedBy),
			nullableString(job.StartedByUserID),
			formatTime(job.CreatedAt),
			formatTime(job.UpdatedAt),
			job.Revision,
		)
		if err != nil {
			return err
		}
		return appendEvents(ctx, tx, job.ID, 0, job.Timeline)
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("insert job %q: %w", job.OT, store.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob persists the scalar attributes of job and appends the given
// events, provided no other writer touched the job since it was read.
func (s *Store) UpdateJob(ctx context.Context, job *jobs.Job, appended []timeline.Event) error {
	if job == nil {
		return errors.New("job is nil")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET
                ot = ?, client = ?, job_type = ?, quantity_planned = ?, comments = ?,
                operator_comments = ?, machine_speed = ?, pantone = ?, barniz = ?,
                is_4x0 = ?, is_4x4 = ?, status = ?, press = ?, priority = ?,
                setup_count = ?, total_setup_time = ?, pause_count = ?, total_pause_time = ?,
                started_by_user_id = ?, updated_at = ?, revision = revision + 1
            WHERE id = ? AND revision = ?`,
			job.OT,
			job.Client,
			job.JobType,
			job.QuantityPlanned,
			nullableString(job.Comments),
			nullableString(job.OperatorComments),
			nullableString(job.MachineSpeed),
			boolToInt(job.Pantone),
			boolToInt(job.Barniz),
			boolToInt(job.Is4x0),
			boolToInt(job.Is4x4),
			string(job.Status),
			job.Press,
			job.Priority,
			job.SetupCount,
			job.TotalSetupTime,
			job.PauseCount,
			job.TotalPauseTime,
			nullableString(job.StartedByUserID),
			formatTime(job.UpdatedAt),
			job.ID,
			job.Revision,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE id = ?`, job.ID).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return store.ErrNotFound
			}
			return store.ErrStale
		}

		var stored int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM timeline_events WHERE job_id = ?`, job.ID,
		).Scan(&stored); err != nil {
			return err
		}
		return appendEvents(ctx, tx, job.ID, stored, appended)
	})
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("update job %q: %w", job.OT, store.ErrDuplicateKey)
	default:
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
}

// DeleteJob removes a job and its timeline. It reports whether a job existed.
func (s *Store) DeleteJob(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM timeline_events WHERE job_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = affected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	return removed, nil
}

// MaxQueuedPriority returns the highest priority among queued jobs on press,
// or zero when the press has none.
func (s *Store) MaxQueuedPriority(ctx context.Context, press string) (int, error) {
	var highest int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(priority), 0) FROM jobs WHERE press = ? AND status = ?`,
		press, string(jobs.StatusQueued),
	).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("max queued priority: %w", err)
	}
	return highest, nil
}

func appendEvents(ctx context.Context, tx *sql.Tx, jobID string, offset int, events []timeline.Event) error {
	for i, evt := range events {
		details, err := encodeDetails(evt.Details)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO timeline_events (job_id, seq, user_id, ts, type, details_json) VALUES (?, ?, ?, ?, ?, ?)`,
			jobID,
			offset+i+1,
			nullableString(evt.UserID),
			formatTime(evt.Timestamp),
			string(evt.Type),
			details,
		); err != nil {
			return fmt.Errorf("append timeline event: %w", err)
		}
	}
	return nil
}

func attachTimelines(ctx context.Context, q querier, found []*jobs.Job) error {
	if len(found) == 0 {
		return nil
	}
	byID := make(map[string]*jobs.Job, len(found))
	ids := make([]string, 0, len(found))
	for _, job := range found {
		byID[job.ID] = job
		job.Timeline = []timeline.Event{}
		ids = append(ids, job.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT job_id, user_id, ts, type, details_json FROM timeline_events
         WHERE job_id IN (`+makePlaceholders(len(ids))+`) ORDER BY job_id, seq`,
		stringArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("load timelines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			jobID   string
			userID  sql.NullString
			tsRaw   string
			typeStr string
			details sql.NullString
		)
		if err := rows.Scan(&jobID, &userID, &tsRaw, &typeStr, &details); err != nil {
			return fmt.Errorf("scan timeline event: %w", err)
		}
		evt := timeline.Event{UserID: userID.String, Type: timeline.EventType(typeStr)}
		if ts, err := parseTimeString(tsRaw); err == nil {
			evt.Timestamp = ts
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &evt.Details); err != nil {
				return fmt.Errorf("decode details for job %s: %w", jobID, err)
			}
		}
		if job := byID[jobID]; job != nil {
			job.Timeline = append(job.Timeline, evt)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate timeline events: %w", err)
	}
	return nil
}

func encodeDetails(details map[string]any) (any, error) {
	if len(details) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode event details: %w", err)
	}
	return string(data), nil
}
