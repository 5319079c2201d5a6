package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Import statuses. An import is IN_PROGRESS from StartImport until
// FinishImport records its outcome.
const (
	ImportStatusInProgress = "IN_PROGRESS"
	ImportStatusSuccess    = "SUCCESS"
	ImportStatusPartial    = "PARTIAL"
	ImportStatusFailed     = "FAILED"
)

// ImportOutcomeStatus derives the final status from row counts.
func ImportOutcomeStatus(success, failed int) string {
	switch {
	case failed == 0 && success > 0:
		return ImportStatusSuccess
	case success > 0:
		return ImportStatusPartial
	default:
		return ImportStatusFailed
	}
}

// NewImport records the outcome of one validated upload.
type NewImport struct {
	FileName         string
	FileSize         int64
	UploadedBy       string
	Status           string
	RecordsProcessed int
	RecordsSuccess   int
	RecordsFailed    int
	Errors           []string
	StartedAt        time.Time
	CompletedAt      time.Time
}

// Import is a stored upload history entry.
type Import struct {
	ID               int64     `json:"id"`
	FileName         string    `json:"fileName"`
	FileSize         int64     `json:"fileSize"`
	UploadedBy       string    `json:"uploadedBy"`
	Status           string    `json:"status"`
	RecordsProcessed int       `json:"recordsProcessed"`
	RecordsSuccess   int       `json:"recordsSuccess"`
	RecordsFailed    int       `json:"recordsFailed"`
	Errors           []string  `json:"errors"`
	StartedAt        time.Time `json:"startedAt"`
	Duration         string    `json:"duration"`
}

// RecordImport stores an import history entry and returns its id.
func (s *Store) RecordImport(ctx context.Context, imp NewImport) (int64, error) {
	var details sql.NullString
	if len(imp.Errors) > 0 {
		raw, err := json.Marshal(imp.Errors)
		if err != nil {
			return 0, fmt.Errorf("marshal import errors: %w", err)
		}
		details = nullString(string(raw))
	}

	started := imp.StartedAt
	if started.IsZero() {
		started = s.now()
	}
	var completed sql.NullString
	if !imp.CompletedAt.IsZero() {
		completed = nullString(imp.CompletedAt.UTC().Format(timestampLayout))
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO import_history (
			file_name, file_size, uploaded_by, status,
			records_processed, records_success, records_failed,
			error_details_json, started_at, completed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		imp.FileName, imp.FileSize, imp.UploadedBy, imp.Status,
		imp.RecordsProcessed, imp.RecordsSuccess, imp.RecordsFailed,
		details, started.UTC().Format(timestampLayout), completed, s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert import history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read import history id: %w", err)
	}
	return id, nil
}

// StartImport records an upload that is about to be processed and returns
// its id. The entry stays IN_PROGRESS until FinishImport is called.
func (s *Store) StartImport(ctx context.Context, fileName string, fileSize int64, uploadedBy string) (int64, error) {
	return s.RecordImport(ctx, NewImport{
		FileName:   fileName,
		FileSize:   fileSize,
		UploadedBy: uploadedBy,
		Status:     ImportStatusInProgress,
	})
}

// ImportOutcome is the final state of a started import.
type ImportOutcome struct {
	Status           string
	RecordsProcessed int
	RecordsSuccess   int
	RecordsFailed    int
	Errors           []string
}

// FinishImport stores the outcome of an IN_PROGRESS import and stamps its
// completion time. It returns ErrNotFound when no such import is pending.
func (s *Store) FinishImport(ctx context.Context, id int64, out ImportOutcome) error {
	switch out.Status {
	case ImportStatusSuccess, ImportStatusPartial, ImportStatusFailed:
	default:
		return invalid(fmt.Sprintf("import cannot finish with status %q", out.Status))
	}

	var details sql.NullString
	if len(out.Errors) > 0 {
		raw, err := json.Marshal(out.Errors)
		if err != nil {
			return fmt.Errorf("marshal import errors: %w", err)
		}
		details = nullString(string(raw))
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE import_history
		SET status = ?, records_processed = ?, records_success = ?, records_failed = ?,
			error_details_json = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`,
		out.Status, out.RecordsProcessed, out.RecordsSuccess, out.RecordsFailed,
		details, s.timestamp(), id, ImportStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("update import history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read updated import count: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListImports returns recent uploads, newest first.
func (s *Store) ListImports(ctx context.Context, limit int) ([]Import, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id, file_name, file_size, uploaded_by, status,
			records_processed, records_success, records_failed,
			error_details_json, started_at, completed_at
		FROM import_history
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query import history: %w", err)
	}
	defer rows.Close()

	imports := make([]Import, 0)
	for rows.Next() {
		var (
			imp                Import
			details, completed sql.NullString
			started            string
		)
		if err := rows.Scan(
			&imp.ID, &imp.FileName, &imp.FileSize, &imp.UploadedBy, &imp.Status,
			&imp.RecordsProcessed, &imp.RecordsSuccess, &imp.RecordsFailed,
			&details, &started, &completed,
		); err != nil {
			return nil, fmt.Errorf("scan import history: %w", err)
		}

		if imp.StartedAt, err = parseTimestamp(started); err != nil {
			return nil, err
		}
		imp.Duration = "-"
		if completed.Valid {
			end, err := parseTimestamp(completed.String)
			if err != nil {
				return nil, err
			}
			imp.Duration = formatDuration(end.Sub(imp.StartedAt))
		}

		imp.Errors = []string{}
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &imp.Errors); err != nil {
				return nil, fmt.Errorf("decode import errors: %w", err)
			}
		}
		imports = append(imports, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import history: %w", err)
	}

	return imports, nil
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
