package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"intakeflow/api/internal/workflow"
)

type PostgresStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec Record) (string, error) {
	data, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", fmt.Errorf("marshal record fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO client_intakes (id, organization_name, data, workflow_state, reviewer_comments, user_id, last_modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, rec.ID, rec.ClientName, data, string(rec.Status), rec.ReviewerComments, rec.CreatedBy)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return rec.ID, nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (Record, error) {
	var (
		rec  Record
		data []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_name, data, workflow_state, reviewer_comments,
		       user_id, last_modified_by, created_at, updated_at, submitted_at, reviewed_at
		FROM client_intakes
		WHERE id=$1
	`, id).Scan(&rec.ID, &rec.ClientName, &data, &rec.Status, &rec.ReviewerComments,
		&rec.CreatedBy, &rec.LastModifiedBy, &rec.CreatedAt, &rec.UpdatedAt, &rec.SubmittedAt, &rec.ReviewedAt)
	if err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal(data, &rec.Fields); err != nil {
		return Record{}, fmt.Errorf("unmarshal record fields: %w", err)
	}
	history, err := s.ListStatusHistory(ctx, id)
	if err != nil {
		return Record{}, err
	}
	rec.StatusHistory = history
	return rec, nil
}

// ListRecords returns records matching the filter, newest submission
// first (falling back to creation time). Status history is not loaded.
func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	builder := s.sb.
		Select("id", "organization_name", "data", "workflow_state", "reviewer_comments",
			"user_id", "last_modified_by", "created_at", "updated_at", "submitted_at", "reviewed_at").
		From("client_intakes").
		OrderBy("COALESCE(submitted_at, created_at) DESC")

	if filter.CreatedBy != "" {
		builder = builder.Where(sq.Eq{"user_id": filter.CreatedBy})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		builder = builder.Where(sq.Eq{"workflow_state": statuses})
	}
	if query := strings.TrimSpace(filter.Query); query != "" {
		like := "%" + query + "%"
		builder = builder.Where(sq.Or{
			sq.ILike{"organization_name": like},
			sq.ILike{"data->>'contactEmail'": like},
			sq.ILike{"user_id": like},
		})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0)
	for rows.Next() {
		var (
			rec  Record
			data []byte
		)
		if err := rows.Scan(&rec.ID, &rec.ClientName, &data, &rec.Status, &rec.ReviewerComments,
			&rec.CreatedBy, &rec.LastModifiedBy, &rec.CreatedAt, &rec.UpdatedAt, &rec.SubmittedAt, &rec.ReviewedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal(data, &rec.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal record fields: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return items, nil
}

// UpdateRecordFields shallow-merges the partial field set into the
// stored sub-document and stamps updated_at/last_modified_by. Callers
// validate before calling; this layer does not.
func (s *PostgresStore) UpdateRecordFields(ctx context.Context, id string, partial map[string]any, actorID string) error {
	data, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("marshal partial fields: %w", err)
	}

	query := `
		UPDATE client_intakes
		SET data = data || $2::jsonb,
		    organization_name = COALESCE(NULLIF($3, ''), organization_name),
		    updated_at = NOW(),
		    last_modified_by = $4
		WHERE id = $1
	`
	clientName, _ := partial["clientName"].(string)
	result, err := s.db.ExecContext(ctx, query, id, data, strings.TrimSpace(clientName), actorID)
	if err != nil {
		return fmt.Errorf("update record fields: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM client_intakes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetWorkflowState moves a record to a new resting state and stamps the
// transition metadata in one statement.
func (s *PostgresStore) SetWorkflowState(ctx context.Context, id string, status workflow.State, actorID, reviewerComments string, stampSubmitted, stampReviewed bool) error {
	query := `
		UPDATE client_intakes
		SET workflow_state = $2,
		    reviewer_comments = CASE WHEN $3 <> '' THEN $3 ELSE reviewer_comments END,
		    submitted_at = CASE WHEN $4 AND submitted_at IS NULL THEN NOW() ELSE submitted_at END,
		    reviewed_at = CASE WHEN $5 THEN NOW() ELSE reviewed_at END,
		    updated_at = NOW(),
		    last_modified_by = $6
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, string(status), reviewerComments, stampSubmitted, stampReviewed, actorID)
	if err != nil {
		return fmt.Errorf("set workflow state: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) AppendStatusHistory(ctx context.Context, entry StatusHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_history (id, intake_id, status, user_id, user_name, comments)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.RecordID, string(entry.Status), entry.UserID, entry.UserName, entry.Comments)
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListStatusHistory(ctx context.Context, recordID string) ([]StatusHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intake_id, status, created_at, user_id, user_name, comments
		FROM status_history
		WHERE intake_id=$1
		ORDER BY created_at ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	entries := make([]StatusHistoryEntry, 0)
	for rows.Next() {
		var entry StatusHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.RecordID, &entry.Status, &entry.Timestamp, &entry.UserID, &entry.UserName, &entry.Comments); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}
	return entries, nil
}

// ClientNameExists reports whether another record carries the same
// client name, case-insensitively. createdBy narrows the check to one
// user's records; empty means all records.
func (s *PostgresStore) ClientNameExists(ctx context.Context, name, excludeID, createdBy string) (bool, error) {
	builder := s.sb.
		Select("1").
		From("client_intakes").
		Where(sq.Expr("LOWER(organization_name) = LOWER(?)", strings.TrimSpace(name)))
	if excludeID != "" {
		builder = builder.Where(sq.NotEq{"id": excludeID})
	}
	if createdBy != "" {
		builder = builder.Where(sq.Eq{"user_id": createdBy})
	}

	query, args, err := builder.Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build duplicate query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check duplicate client name: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) CountRecordsByStatus(ctx context.Context, createdBy string) (map[workflow.State]int, error) {
	builder := s.sb.
		Select("workflow_state", "COUNT(*)").
		From("client_intakes").
		GroupBy("workflow_state")
	if createdBy != "" {
		builder = builder.Where(sq.Eq{"user_id": createdBy})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[workflow.State]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[workflow.State(state)] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) InsertAuditLog(ctx context.Context, entry AuditLogEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intake_audit_log (intake_id, user_id, action, section, changes)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.RecordID, entry.UserID, entry.Action, entry.Section, changes)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditLog(ctx context.Context, recordID string) ([]AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intake_id, user_id, action, section, changes, created_at
		FROM intake_audit_log
		WHERE intake_id=$1
		ORDER BY created_at DESC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditLogEntry, 0)
	for rows.Next() {
		var (
			entry   AuditLogEntry
			changes []byte
		)
		if err := rows.Scan(&entry.ID, &entry.RecordID, &entry.UserID, &entry.Action, &entry.Section, &changes, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &entry.Changes); err != nil {
				return nil, fmt.Errorf("unmarshal audit changes: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
