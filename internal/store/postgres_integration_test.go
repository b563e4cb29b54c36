package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"intakeflow/api/internal/workflow"
)

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	if dsn := strings.TrimSpace(os.Getenv("INTAKEFLOW_TEST_DATABASE_URL")); dsn != "" {
		return dsn
	}
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		t.Skip("INTAKEFLOW_TEST_DATABASE_URL is not set")
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getenv("POSTGRES_USER", "postgres"),
		getenv("POSTGRES_PASSWORD", "postgres"),
		host,
		getenv("POSTGRES_PORT", "5432"),
		getenv("POSTGRES_DB", "intakeflow_test"),
	)
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// newIntegrationStore connects to the test database, migrates it, and
// starts each test from empty intake tables with two seeded users.
func newIntegrationStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := getTestDatabaseURL(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE client_intakes, status_history, intake_audit_log, users CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	for _, id := range []string{"user-itest", "billing-desk"} {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO users (id, display_name, email, password_hash)
			VALUES ($1, $1, $1 || '@example.com', 'x')
		`, id); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}

	return NewPostgresStore(db), ctx
}

func seedIntake(t *testing.T, s *PostgresStore, ctx context.Context, id, clientName, createdBy string, fields map[string]any) {
	t.Helper()
	if fields == nil {
		fields = map[string]any{"clientName": clientName}
	}
	_, err := s.CreateRecord(ctx, Record{
		ID:         id,
		ClientName: clientName,
		Fields:     fields,
		Status:     workflow.StateDraft,
		CreatedBy:  createdBy,
	})
	if err != nil {
		t.Fatalf("seed intake %s: %v", id, err)
	}
}

func backdateCreation(t *testing.T, s *PostgresStore, ctx context.Context, id string, hours int) {
	t.Helper()
	_, err := s.DB().ExecContext(ctx, `
		UPDATE client_intakes SET created_at = NOW() - make_interval(hours => $2) WHERE id = $1
	`, id, hours)
	if err != nil {
		t.Fatalf("backdate %s: %v", id, err)
	}
}

func recordIDs(recs []Record) []string {
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	return ids
}

func TestListRecordsOrdersBySubmissionThenCreation(t *testing.T) {
	s, ctx := newIntegrationStore(t)

	seedIntake(t, s, ctx, "rec-old", "Oldest Draft", "user-itest", nil)
	seedIntake(t, s, ctx, "rec-new", "Newest Draft", "user-itest", nil)
	seedIntake(t, s, ctx, "rec-sub", "Submitted Early", "user-itest", nil)
	backdateCreation(t, s, ctx, "rec-old", 3)
	backdateCreation(t, s, ctx, "rec-new", 1)
	backdateCreation(t, s, ctx, "rec-sub", 2)

	// Submission time outranks the older creation time.
	if err := s.SetWorkflowState(ctx, "rec-sub", workflow.StateSubmitted, "user-itest", "", true, false); err != nil {
		t.Fatalf("submit rec-sub: %v", err)
	}

	recs, err := s.ListRecords(ctx, RecordFilter{})
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	got := recordIDs(recs)
	want := []string{"rec-sub", "rec-new", "rec-old"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got order %v, want %v", got, want)
		}
	}
}

func TestUpdateRecordFieldsShallowMerge(t *testing.T) {
	s, ctx := newIntegrationStore(t)

	seedIntake(t, s, ctx, "rec-merge", "Lakeside Clinic", "user-itest", map[string]any{
		"clientName":   "Lakeside Clinic",
		"contactEmail": "reception@lakeside.example",
	})

	partial := map[string]any{
		"contactEmail": "billing@lakeside.example",
		"contactPhone": "+15551234567",
	}
	if err := s.UpdateRecordFields(ctx, "rec-merge", partial, "billing-desk"); err != nil {
		t.Fatalf("update fields: %v", err)
	}

	rec, err := s.GetRecord(ctx, "rec-merge")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Fields["clientName"] != "Lakeside Clinic" {
		t.Errorf("untouched key lost: %v", rec.Fields["clientName"])
	}
	if rec.Fields["contactEmail"] != "billing@lakeside.example" {
		t.Errorf("contactEmail not overwritten: %v", rec.Fields["contactEmail"])
	}
	if rec.Fields["contactPhone"] != "+15551234567" {
		t.Errorf("contactPhone not merged: %v", rec.Fields["contactPhone"])
	}
	if rec.ClientName != "Lakeside Clinic" {
		t.Errorf("organization name changed without a clientName in the partial: %q", rec.ClientName)
	}
	if rec.LastModifiedBy != "billing-desk" {
		t.Errorf("last modified by = %q", rec.LastModifiedBy)
	}

	// A clientName in the partial updates the denormalized column too.
	if err := s.UpdateRecordFields(ctx, "rec-merge", map[string]any{"clientName": "Harbor Health"}, "user-itest"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	rec, err = s.GetRecord(ctx, "rec-merge")
	if err != nil {
		t.Fatalf("get record after rename: %v", err)
	}
	if rec.ClientName != "Harbor Health" {
		t.Errorf("organization name = %q, want Harbor Health", rec.ClientName)
	}

	if err := s.UpdateRecordFields(ctx, "rec-missing", partial, "user-itest"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing record: got %v, want sql.ErrNoRows", err)
	}
}

func TestSetWorkflowStateStampsSubmittedOnce(t *testing.T) {
	s, ctx := newIntegrationStore(t)

	seedIntake(t, s, ctx, "rec-stamp", "Lakeside Clinic", "user-itest", nil)

	if err := s.SetWorkflowState(ctx, "rec-stamp", workflow.StateSubmitted, "user-itest", "", true, false); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	rec, err := s.GetRecord(ctx, "rec-stamp")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.SubmittedAt == nil {
		t.Fatal("submitted_at not stamped on first submit")
	}
	first := *rec.SubmittedAt

	// Reject back to draft, then resubmit after a measurable gap.
	if err := s.SetWorkflowState(ctx, "rec-stamp", workflow.StateDraft, "billing-desk", "needs work", false, true); err != nil {
		t.Fatalf("reject: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := s.SetWorkflowState(ctx, "rec-stamp", workflow.StateSubmitted, "user-itest", "", true, false); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	rec, err = s.GetRecord(ctx, "rec-stamp")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.SubmittedAt == nil || !rec.SubmittedAt.Equal(first) {
		t.Errorf("submitted_at restamped: first %v, now %v", first, rec.SubmittedAt)
	}
	if rec.ReviewedAt == nil {
		t.Error("reviewed_at not stamped on review")
	}
	if rec.ReviewerComments != "needs work" {
		t.Errorf("reviewer comments = %q", rec.ReviewerComments)
	}
}

func TestListRecordsSearch(t *testing.T) {
	s, ctx := newIntegrationStore(t)

	seedIntake(t, s, ctx, "rec-a", "Lakeside Clinic", "user-itest", map[string]any{
		"contactEmail": "reception@lakeside.example",
	})
	seedIntake(t, s, ctx, "rec-b", "Harbor Health", "user-itest", map[string]any{
		"contactEmail": "accounts@northwind.example",
	})
	seedIntake(t, s, ctx, "rec-c", "Cedar Counseling", "billing-desk", map[string]any{
		"contactEmail": "cedar@example.com",
	})

	tests := []struct {
		query string
		want  []string
	}{
		{"LAKESIDE", []string{"rec-a"}},
		{"northwind", []string{"rec-b"}},
		{"billing-desk", []string{"rec-c"}},
		{"no-such-client", nil},
	}
	for _, tt := range tests {
		recs, err := s.ListRecords(ctx, RecordFilter{Query: tt.query})
		if err != nil {
			t.Fatalf("search %q: %v", tt.query, err)
		}
		got := recordIDs(recs)
		if len(got) != len(tt.want) {
			t.Errorf("search %q: got %v, want %v", tt.query, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("search %q: got %v, want %v", tt.query, got, tt.want)
			}
		}
	}
}

func TestClientNameExistsCaseInsensitive(t *testing.T) {
	s, ctx := newIntegrationStore(t)

	seedIntake(t, s, ctx, "rec-a", "Lakeside Clinic", "user-itest", nil)

	tests := []struct {
		name      string
		query     string
		excludeID string
		createdBy string
		want      bool
	}{
		{"different case", "lakeside clinic", "", "", true},
		{"surrounding whitespace", "  Lakeside Clinic  ", "", "", true},
		{"excluding the record itself", "Lakeside Clinic", "rec-a", "", false},
		{"scoped to another user", "Lakeside Clinic", "", "billing-desk", false},
		{"partial name", "Lakeside", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ClientNameExists(ctx, tt.query, tt.excludeID, tt.createdBy)
			if err != nil {
				t.Fatalf("ClientNameExists: %v", err)
			}
			if got != tt.want {
				t.Errorf("ClientNameExists(%q, %q, %q) = %v, want %v", tt.query, tt.excludeID, tt.createdBy, got, tt.want)
			}
		})
	}
}
