package storage

import (
	"listingexport/internal/etl"

	"github.com/google/uuid"
)

// RunStore implements persistence for export run logs.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// ── Run Logs ───────────────────────────────────────────────

// CreateRunLog stores a run log, assigning it an ID if it has none.
func (s *RunStore) CreateRunLog(log *etl.RunLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO export_runs (id, job_name, source, output, started_at, finished_at,
		 status, rows_read, rows_written, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobName, log.Source, log.Output, log.StartedAt.UTC(), log.FinishedAt.UTC(),
		log.Status, log.RowsRead, log.RowsWritten, log.Error,
	)
	return err
}

// ListRunLogs returns the newest run logs for jobName, or for every job
// when jobName is empty.
func (s *RunStore) ListRunLogs(jobName string, limit int) ([]etl.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.conn.Query(
		`SELECT id, job_name, source, output, started_at, finished_at, status,
		 rows_read, rows_written, error
		 FROM export_runs WHERE (? = '' OR job_name = ?)
		 ORDER BY started_at DESC LIMIT ?`,
		jobName, jobName, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []etl.RunLog
	for rows.Next() {
		var l etl.RunLog
		if err := rows.Scan(
			&l.ID, &l.JobName, &l.Source, &l.Output, &l.StartedAt, &l.FinishedAt, &l.Status,
			&l.RowsRead, &l.RowsWritten, &l.Error,
		); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
