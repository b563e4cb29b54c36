// Package app holds the application service and HTTP surface for the
// client intake workflow.
package app

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"intakeflow/api/internal/auth"
	"intakeflow/api/internal/authpw"
	"intakeflow/api/internal/config"
	"intakeflow/api/internal/email"
	"intakeflow/api/internal/intake"
	"intakeflow/api/internal/notify"
	"intakeflow/api/internal/rbac"
	"intakeflow/api/internal/store"
	"intakeflow/api/internal/util"
	"intakeflow/api/internal/workflow"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// SectionStatus tracks the save coordinator state for one record section.
type SectionStatus string

const (
	SectionEditing SectionStatus = "editing"
	SectionSaved   SectionStatus = "saved"
)

type dataStore interface {
	Ping(ctx context.Context) error

	CreateRecord(ctx context.Context, rec store.Record) (string, error)
	GetRecord(ctx context.Context, id string) (store.Record, error)
	ListRecords(ctx context.Context, filter store.RecordFilter) ([]store.Record, error)
	UpdateRecordFields(ctx context.Context, id string, partial map[string]any, actorID string) error
	DeleteRecord(ctx context.Context, id string) error
	SetWorkflowState(ctx context.Context, id string, status workflow.State, actorID, reviewerComments string, stampSubmitted, stampReviewed bool) error
	AppendStatusHistory(ctx context.Context, entry store.StatusHistoryEntry) error
	ListStatusHistory(ctx context.Context, recordID string) ([]store.StatusHistoryEntry, error)
	ClientNameExists(ctx context.Context, name, excludeID, createdBy string) (bool, error)
	CountRecordsByStatus(ctx context.Context, createdBy string) (map[workflow.State]int, error)
	InsertAuditLog(ctx context.Context, entry store.AuditLogEntry) error
	ListAuditLog(ctx context.Context, recordID string) ([]store.AuditLogEntry, error)

	GetUserByID(ctx context.Context, id string) (store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	UpdateUserRole(ctx context.Context, userID, role string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	ListDropdownOptions(ctx context.Context, category string) ([]store.DropdownOption, error)
	UpsertDropdownOption(ctx context.Context, opt store.DropdownOption) error
	DeleteDropdownOption(ctx context.Context, category, value string) error
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// SessionStore persists refresh sessions. Redis in production, with a
// Postgres fallback when no Redis URL is configured.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type notifier interface {
	Dispatch(input notify.EventInput)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions SessionStore
	authpw   *authpw.Service
	mailer   *email.Service
	notifier notifier
	logger   *zap.Logger

	// sectionMu guards sectionStates, the in-memory save coordinator.
	// Postgres keeps the field data; this map only tracks which sections
	// are open for editing, so it resets harmlessly on restart.
	sectionMu     sync.Mutex
	sectionStates map[string]SectionStatus
}

func New(cfg config.Config, dataStore dataStore, sessions SessionStore, authPW *authpw.Service, mailer *email.Service, n notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:           cfg,
		store:         dataStore,
		sessions:      sessions,
		authpw:        authPW,
		mailer:        mailer,
		notifier:      n,
		logger:        logger,
		sectionStates: make(map[string]SectionStatus),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

// Sessions

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Re-read the user so role changes take effect on rotation.
	if fresh, err := s.store.GetUserByID(ctx, user.ID); err == nil {
		user = fresh
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Has(role string, required ...rbac.Role) bool {
	return rbac.Has(rbac.Normalize(role), required...)
}

// Records

// canSeeRecord applies the visibility rule: intake users see only their
// own records, reviewers and administrators see everything.
func (s *Service) canSeeRecord(session Session, rec store.Record) bool {
	if s.Has(session.Role, rbac.RoleReviewerManager) {
		return true
	}
	return rec.CreatedBy == session.UserID
}

// visibilityScope returns the CreatedBy filter for list queries.
func (s *Service) visibilityScope(session Session) string {
	if s.Has(session.Role, rbac.RoleReviewerManager) {
		return ""
	}
	return session.UserID
}

func (s *Service) CreateRecord(ctx context.Context, session Session, fieldValues map[string]any) (map[string]any, error) {
	if fieldValues == nil {
		fieldValues = map[string]any{}
	}
	if err := checkKnownFields(fieldValues); err != nil {
		return nil, err
	}

	clientName, _ := fieldValues["clientName"].(string)
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return nil, validationError("Validation failed",
			[]intake.FieldError{{Field: "clientName", Message: "Client Name is required"}})
	}

	rec := store.Record{
		ID:         util.NewRecordID(),
		ClientName: clientName,
		Fields:     fieldValues,
		Status:     workflow.StateDraft,
		CreatedBy:  session.UserID,
	}
	if _, err := s.store.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.store.AppendStatusHistory(ctx, store.StatusHistoryEntry{
		ID:       util.NewID("sh"),
		RecordID: rec.ID,
		Status:   workflow.StateDraft,
		UserID:   session.UserID,
		UserName: session.UserName,
	}); err != nil {
		return nil, err
	}

	return s.GetRecord(ctx, session, rec.ID)
}

func (s *Service) GetRecord(ctx context.Context, session Session, id string) (map[string]any, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canSeeRecord(session, rec) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Record not found", nil)
	}
	return s.recordPayload(rec), nil
}

func (s *Service) ListRecords(ctx context.Context, session Session, statuses []string, query string) ([]map[string]any, error) {
	filter := store.RecordFilter{
		CreatedBy: s.visibilityScope(session),
		Query:     query,
	}
	for _, raw := range statuses {
		if !workflow.Valid(raw) {
			return nil, validationError("Unknown status filter: "+raw, nil)
		}
		filter.Statuses = append(filter.Statuses, workflow.State(raw))
	}

	records, err := s.store.ListRecords(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		items = append(items, s.recordSummary(rec))
	}
	return items, nil
}

func (s *Service) UpdateRecord(ctx context.Context, session Session, id string, fieldValues map[string]any) (map[string]any, error) {
	rec, err := s.loadEditableRecord(ctx, session, id)
	if err != nil {
		return nil, err
	}

	// Draft edits persist as-is; validation happens on finalize and submit.
	if err := checkKnownFields(fieldValues); err != nil {
		return nil, err
	}

	if err := s.store.UpdateRecordFields(ctx, rec.ID, fieldValues, session.UserID); err != nil {
		return nil, err
	}
	return s.GetRecord(ctx, session, id)
}

func (s *Service) DeleteRecord(ctx context.Context, session Session, id string) error {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if !s.canSeeRecord(session, rec) {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Record not found", nil)
	}

	// Owners may discard their own drafts; anything further along is an
	// administrator call.
	ownDraft := rec.CreatedBy == session.UserID && rec.Status == workflow.StateDraft
	if !ownDraft && !s.Has(session.Role, rbac.RoleAdministrator) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only administrators can delete non-draft records", nil)
	}

	if err := s.store.DeleteRecord(ctx, id); err != nil {
		return err
	}
	s.clearSectionStates(id)
	return nil
}

// Section saves

func sectionKey(recordID string, section intake.Section) string {
	return recordID + "/" + string(section)
}

func (s *Service) sectionState(recordID string, section intake.Section) SectionStatus {
	s.sectionMu.Lock()
	defer s.sectionMu.Unlock()
	if state, ok := s.sectionStates[sectionKey(recordID, section)]; ok {
		return state
	}
	return SectionEditing
}

func (s *Service) setSectionState(recordID string, section intake.Section, state SectionStatus) {
	s.sectionMu.Lock()
	defer s.sectionMu.Unlock()
	s.sectionStates[sectionKey(recordID, section)] = state
}

func (s *Service) clearSectionStates(recordID string) {
	s.sectionMu.Lock()
	defer s.sectionMu.Unlock()
	for _, section := range intake.Sections() {
		delete(s.sectionStates, sectionKey(recordID, section))
	}
}

func (s *Service) sectionStatesFor(recordID string) map[string]string {
	states := make(map[string]string, len(intake.Sections()))
	for _, section := range intake.Sections() {
		states[string(section)] = string(s.sectionState(recordID, section))
	}
	return states
}

// SaveSection persists a partial section edit without finalizing it.
// Draft saves skip value validation, so partial or invalid data is fine.
// Concurrent saves shallow-merge last-write-wins at the field level.
func (s *Service) SaveSection(ctx context.Context, session Session, recordID, sectionName string, values map[string]any) (map[string]any, error) {
	section, rec, err := s.loadSection(ctx, session, recordID, sectionName)
	if err != nil {
		return nil, err
	}

	partial, err := s.sectionPartial(section, values)
	if err != nil {
		return nil, err
	}

	if len(partial) > 0 {
		if err := s.store.UpdateRecordFields(ctx, rec.ID, partial, session.UserID); err != nil {
			return nil, err
		}
	}
	s.setSectionState(rec.ID, section, SectionEditing)

	return s.GetRecord(ctx, session, recordID)
}

// FinalizeSection validates every field in the section, persists the
// values, marks the section saved, and appends an audit log entry.
func (s *Service) FinalizeSection(ctx context.Context, session Session, recordID, sectionName string, values map[string]any) (map[string]any, error) {
	section, rec, err := s.loadSection(ctx, session, recordID, sectionName)
	if err != nil {
		return nil, err
	}

	partial, err := s.sectionPartial(section, values)
	if err != nil {
		return nil, err
	}

	// Validate the whole section against the merged view, so fields left
	// untouched in this request still count.
	merged := make(map[string]any, len(rec.Fields)+len(partial))
	for name, value := range rec.Fields {
		merged[name] = value
	}
	for name, value := range partial {
		merged[name] = value
	}
	fieldErrs, err := intake.ValidateFields(merged, intake.SectionFields(section))
	if err != nil {
		return nil, unknownFieldError(err)
	}
	if len(fieldErrs) > 0 {
		return nil, validationError("Validation failed", fieldErrs)
	}

	if len(partial) > 0 {
		if err := s.store.UpdateRecordFields(ctx, rec.ID, partial, session.UserID); err != nil {
			return nil, err
		}
	}
	s.setSectionState(rec.ID, section, SectionSaved)

	if err := s.store.InsertAuditLog(ctx, store.AuditLogEntry{
		RecordID: rec.ID,
		UserID:   session.UserID,
		Action:   "section_finalized",
		Section:  string(section),
		Changes:  partial,
	}); err != nil {
		s.logger.Warn("audit log insert failed", zap.String("record_id", rec.ID), zap.Error(err))
	}

	return s.GetRecord(ctx, session, recordID)
}

// EditSection reopens a finalized section for editing.
func (s *Service) EditSection(ctx context.Context, session Session, recordID, sectionName string) (map[string]any, error) {
	section, rec, err := s.loadSection(ctx, session, recordID, sectionName)
	if err != nil {
		return nil, err
	}
	s.setSectionState(rec.ID, section, SectionEditing)
	return s.GetRecord(ctx, session, recordID)
}

func (s *Service) loadSection(ctx context.Context, session Session, recordID, sectionName string) (intake.Section, store.Record, error) {
	if !intake.ValidSection(sectionName) {
		return "", store.Record{}, validationError("Unknown section: "+sectionName, nil)
	}
	rec, err := s.loadEditableRecord(ctx, session, recordID)
	if err != nil {
		return "", store.Record{}, err
	}
	return intake.Section(sectionName), rec, nil
}

// sectionPartial checks that every submitted field belongs to the
// section. Value validation is the caller's concern.
func (s *Service) sectionPartial(section intake.Section, values map[string]any) (map[string]any, error) {
	partial := make(map[string]any, len(values))
	for name, value := range values {
		owner, ok := intake.FieldSection(name)
		if !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "UNKNOWN_FIELD",
				"Unknown field: "+name, nil)
		}
		if owner != section {
			return nil, validationError("Field "+name+" does not belong to section "+string(section), nil)
		}
		partial[name] = value
	}
	return partial, nil
}

func (s *Service) loadEditableRecord(ctx context.Context, session Session, id string) (store.Record, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return store.Record{}, err
	}
	if !s.canSeeRecord(session, rec) {
		return store.Record{}, domainError(http.StatusNotFound, "NOT_FOUND", "Record not found", nil)
	}
	if rec.CreatedBy != session.UserID && !s.Has(session.Role, rbac.RoleAdministrator) {
		return store.Record{}, domainError(http.StatusForbidden, "FORBIDDEN", "Only the record owner can edit it", nil)
	}
	if !workflow.Editable(rec.Status) {
		return store.Record{}, domainError(http.StatusConflict, "INVALID_TRANSITION",
			"Record is not editable in state "+string(rec.Status), nil)
	}
	return rec, nil
}

// AttachDocument appends an uploaded object key to one of the record's
// document list fields. Uploads are allowed in any workflow state, so
// this bypasses the editability gate.
func (s *Service) AttachDocument(ctx context.Context, session Session, recordID, fieldName, key string) error {
	field, ok := intake.Lookup(fieldName)
	if !ok || field.Kind != intake.KindStringList {
		return validationError("Field "+fieldName+" does not hold documents", nil)
	}

	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if !s.canSeeRecord(session, rec) {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Record not found", nil)
	}

	list, _ := rec.Fields[fieldName].([]any)
	list = append(list, key)
	return s.store.UpdateRecordFields(ctx, recordID, map[string]any{fieldName: list}, session.UserID)
}

// Workflow transitions

// Submit moves a draft to submitted after full-record validation and the
// duplicate client name check.
func (s *Service) Submit(ctx context.Context, session Session, id string) (map[string]any, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canSeeRecord(session, rec) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Record not found", nil)
	}
	if rec.CreatedBy != session.UserID && !s.Has(session.Role, rbac.RoleAdministrator) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the record owner can submit it", nil)
	}
	if !workflow.CanTransition(rec.Status, workflow.StateSubmitted) {
		return nil, domainError(http.StatusConflict, "INVALID_TRANSITION",
			"Cannot submit a record in state "+string(rec.Status), nil)
	}

	if fieldErrs := intake.ValidateRecord(rec.Fields); len(fieldErrs) > 0 {
		return nil, validationError("Validation failed", fieldErrs)
	}

	duplicate, err := s.store.ClientNameExists(ctx, rec.ClientName, rec.ID, s.visibilityScope(session))
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, domainError(http.StatusConflict, "DUPLICATE_CLIENT_NAME",
			"A record with this client name already exists", nil)
	}

	return s.applyTransition(ctx, session, rec, workflow.StateSubmitted, "")
}

// Transition moves a record through the review flow. Reviewer and
// administrator roles drive everything past submit.
func (s *Service) Transition(ctx context.Context, session Session, id string, target string, comments string) (map[string]any, error) {
	if !workflow.Valid(target) {
		return nil, validationError("Unknown workflow state: "+target, nil)
	}
	to := workflow.State(target)
	if to == workflow.StateSubmitted {
		return s.Submit(ctx, session, id)
	}

	if !s.Has(session.Role, rbac.RoleReviewerManager) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Reviewer role required", nil)
	}

	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanTransition(rec.Status, to) {
		return nil, domainError(http.StatusConflict, "INVALID_TRANSITION",
			"Cannot move a record from "+string(rec.Status)+" to "+string(to), nil)
	}
	if to == workflow.StateRejected && strings.TrimSpace(comments) == "" {
		return nil, validationError("Rejection requires a comment",
			[]intake.FieldError{{Field: "comments", Message: "Comments are required when rejecting"}})
	}

	return s.applyTransition(ctx, session, rec, to, strings.TrimSpace(comments))
}

// applyTransition persists the resting state, appends the history entry
// for the transition target, and fires the notification exactly once.
func (s *Service) applyTransition(ctx context.Context, session Session, rec store.Record, to workflow.State, comments string) (map[string]any, error) {
	resting := workflow.RestingState(to)
	stampSubmitted := to == workflow.StateSubmitted
	stampReviewed := to == workflow.StateApproved || to == workflow.StateRejected

	if err := s.store.SetWorkflowState(ctx, rec.ID, resting, session.UserID, comments, stampSubmitted, stampReviewed); err != nil {
		return nil, err
	}

	// History records the transition target, not the resting state: a
	// rejection shows up as "rejected" even though the record rests at
	// draft.
	if err := s.store.AppendStatusHistory(ctx, store.StatusHistoryEntry{
		ID:       util.NewID("sh"),
		RecordID: rec.ID,
		Status:   to,
		UserID:   session.UserID,
		UserName: session.UserName,
		Comments: comments,
	}); err != nil {
		return nil, err
	}

	if resting == workflow.StateDraft {
		// Back in the owner's hands; sections reopen for editing.
		s.clearSectionStates(rec.ID)
	}

	updated, err := s.store.GetRecord(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	if event, ok := workflow.EventFor(to); ok && s.notifier != nil {
		actor, _ := s.store.GetUserByID(ctx, session.UserID)
		input := notify.EventInput{
			Event:    event,
			Record:   updated,
			Actor:    actor,
			Comments: comments,
			EmailTo:  s.notificationRecipients(ctx, event, updated),
		}
		// The record's visible status on a rejection is the event status,
		// not the resting draft.
		if to == workflow.StateRejected {
			input.Record.Status = workflow.StateRejected
		}
		go s.notifier.Dispatch(input)
	}

	return s.recordPayload(updated), nil
}

// notificationRecipients picks email targets per event: submissions go
// to the reviewer inbox, review outcomes go back to the record owner.
func (s *Service) notificationRecipients(ctx context.Context, event workflow.Event, rec store.Record) []string {
	switch event {
	case workflow.EventSubmitted:
		if s.cfg.ReviewerInbox != "" {
			return []string{s.cfg.ReviewerInbox}
		}
	case workflow.EventApproved, workflow.EventRejected:
		if owner, err := s.store.GetUserByID(ctx, rec.CreatedBy); err == nil && owner.Email != "" {
			return []string{owner.Email}
		}
	}
	return nil
}

// Review queue

// ReviewQueue lists records awaiting review. With no status filter it
// covers submitted and in_review.
func (s *Service) ReviewQueue(ctx context.Context, session Session, statuses []string, query string) ([]map[string]any, error) {
	if !s.Has(session.Role, rbac.RoleReviewerManager) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Reviewer role required", nil)
	}
	if len(statuses) == 0 {
		statuses = []string{string(workflow.StateSubmitted), string(workflow.StateInReview)}
	}
	return s.ListRecords(ctx, session, statuses, query)
}

func (s *Service) Dashboard(ctx context.Context, session Session) (map[string]any, error) {
	counts, err := s.store.CountRecordsByStatus(ctx, s.visibilityScope(session))
	if err != nil {
		return nil, err
	}

	byStatus := make(map[string]int, len(counts))
	total := 0
	for _, state := range workflow.States() {
		byStatus[string(state)] = counts[state]
		total += counts[state]
	}
	return map[string]any{
		"total":         total,
		"byStatus":      byStatus,
		"pendingReview": counts[workflow.StateSubmitted] + counts[workflow.StateInReview],
	}, nil
}

// ExportRecords resolves the actor-visible records for export.
func (s *Service) ExportRecords(ctx context.Context, session Session, statuses []string, query string) ([]store.Record, error) {
	filter := store.RecordFilter{
		CreatedBy: s.visibilityScope(session),
		Query:     query,
	}
	for _, raw := range statuses {
		if !workflow.Valid(raw) {
			return nil, validationError("Unknown status filter: "+raw, nil)
		}
		filter.Statuses = append(filter.Statuses, workflow.State(raw))
	}
	return s.store.ListRecords(ctx, filter)
}

// Audit log

func (s *Service) AuditLog(ctx context.Context, session Session, recordID string) ([]map[string]any, error) {
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !s.canSeeRecord(session, rec) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Record not found", nil)
	}

	entries, err := s.store.ListAuditLog(ctx, recordID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"id":        entry.ID,
			"userId":    entry.UserID,
			"action":    entry.Action,
			"section":   entry.Section,
			"changes":   entry.Changes,
			"createdAt": entry.CreatedAt,
		})
	}
	return items, nil
}

// Admin

func (s *Service) ListUsers(ctx context.Context, session Session) ([]map[string]any, error) {
	if !s.Has(session.Role, rbac.RoleAdministrator) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Administrator role required", nil)
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, map[string]any{
			"id":          user.ID,
			"displayName": user.DisplayName,
			"email":       user.Email,
			"role":        user.Role,
			"verified":    user.IsEmailVerified,
		})
	}
	return items, nil
}

func (s *Service) UpdateUserRole(ctx context.Context, session Session, userID, role string) error {
	if !s.Has(session.Role, rbac.RoleAdministrator) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Administrator role required", nil)
	}
	if !rbac.Valid(role) {
		return validationError("Unknown role: "+role, nil)
	}
	return s.store.UpdateUserRole(ctx, userID, role)
}

func (s *Service) ListDropdownOptions(ctx context.Context, category string) ([]map[string]any, error) {
	options, err := s.store.ListDropdownOptions(ctx, category)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(options))
	for _, opt := range options {
		items = append(items, map[string]any{
			"category":  opt.Category,
			"value":     opt.Value,
			"label":     opt.Label,
			"sortOrder": opt.SortOrder,
		})
	}
	return items, nil
}

func (s *Service) UpsertDropdownOption(ctx context.Context, session Session, opt store.DropdownOption) error {
	if !s.Has(session.Role, rbac.RoleAdministrator) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Administrator role required", nil)
	}
	if strings.TrimSpace(opt.Category) == "" || strings.TrimSpace(opt.Value) == "" {
		return validationError("Category and value are required", nil)
	}
	if opt.Label == "" {
		opt.Label = opt.Value
	}
	return s.store.UpsertDropdownOption(ctx, opt)
}

func (s *Service) DeleteDropdownOption(ctx context.Context, session Session, category, value string) error {
	if !s.Has(session.Role, rbac.RoleAdministrator) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Administrator role required", nil)
	}
	return s.store.DeleteDropdownOption(ctx, category, value)
}

func (s *Service) GetWebhookURL(ctx context.Context, session Session) (string, error) {
	if !s.Has(session.Role, rbac.RoleAdministrator) {
		return "", domainError(http.StatusForbidden, "FORBIDDEN", "Administrator role required", nil)
	}
	return s.store.GetSetting(ctx, notify.SettingWebhookURL)
}

func (s *Service) SetWebhookURL(ctx context.Context, session Session, url string) error {
	if !s.Has(session.Role, rbac.RoleAdministrator) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Administrator role required", nil)
	}
	url = strings.TrimSpace(url)
	if url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return validationError("Webhook URL must be http or https", nil)
	}
	return s.store.SetSetting(ctx, notify.SettingWebhookURL, url)
}

// Payload shaping

func (s *Service) recordSummary(rec store.Record) map[string]any {
	return map[string]any{
		"id":               rec.ID,
		"clientName":       rec.ClientName,
		"status":           string(rec.Status),
		"statusLabel":      workflow.Label(rec.Status),
		"reviewerComments": rec.ReviewerComments,
		"createdBy":        rec.CreatedBy,
		"lastModifiedBy":   rec.LastModifiedBy,
		"createdAt":        rec.CreatedAt,
		"updatedAt":        rec.UpdatedAt,
		"submittedAt":      rec.SubmittedAt,
		"reviewedAt":       rec.ReviewedAt,
	}
}

func (s *Service) recordPayload(rec store.Record) map[string]any {
	payload := s.recordSummary(rec)
	payload["fields"] = rec.Fields
	payload["sectionStates"] = s.sectionStatesFor(rec.ID)

	history := make([]map[string]any, 0, len(rec.StatusHistory))
	for _, entry := range rec.StatusHistory {
		history = append(history, map[string]any{
			"id":        entry.ID,
			"status":    string(entry.Status),
			"timestamp": entry.Timestamp,
			"userId":    entry.UserID,
			"userName":  entry.UserName,
			"comments":  entry.Comments,
		})
	}
	payload["statusHistory"] = history
	return payload
}

func checkKnownFields(values map[string]any) error {
	for name := range values {
		if _, ok := intake.Lookup(name); !ok {
			return domainError(http.StatusUnprocessableEntity, "UNKNOWN_FIELD", "Unknown field: "+name, nil)
		}
	}
	return nil
}

func unknownFieldError(err error) error {
	return domainError(http.StatusUnprocessableEntity, "UNKNOWN_FIELD", err.Error(), nil)
}
