package store

import (
	"database/sql"
	"fmt"
)

// SaveSessionState persists the last-known session status on change, so
// a restart restores `needs-input` tombstones correctly (spec.md §4.7).
// An event whose LastEventAt predates the stored LastKnownWorkAt is
// rejected without overwriting (spec.md §8 edge cases).
func (s *Store) SaveSessionState(st SessionState) error {
	existing, err := s.GetSessionState(st.SessionID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("save session state: load existing: %w", err)
	}
	if existing != nil && existing.LastKnownWorkAt != nil && st.LastEventAt.Before(*existing.LastKnownWorkAt) {
		return nil
	}

	lastKnownWorkAt := st.LastEventAt
	_, err = s.db.Exec(`
		INSERT INTO session_state (
			session_id, tenant_id, user_id, workspace_id, worktree_id, directory_id, conversation_id,
			status, attention_reason, controller_id, controller_type, controller_label, claimed_at,
			started_at, exited_at, last_event_at, last_known_work_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			attention_reason = excluded.attention_reason,
			controller_id = excluded.controller_id,
			controller_type = excluded.controller_type,
			controller_label = excluded.controller_label,
			claimed_at = excluded.claimed_at,
			exited_at = excluded.exited_at,
			last_event_at = excluded.last_event_at,
			last_known_work_at = excluded.last_known_work_at
	`, st.SessionID, st.TenantID, st.UserID, st.WorkspaceID, st.WorktreeID, nullIfEmpty(st.DirectoryID), nullIfEmpty(st.ConversationID),
		st.Status, nullIfEmpty(st.AttentionReason), nullIfEmpty(st.ControllerID), nullIfEmpty(st.ControllerType), nullIfEmpty(st.ControllerLabel),
		formatTimePtr(st.ClaimedAt), formatTime(st.StartedAt), formatTimePtr(st.ExitedAt), formatTime(st.LastEventAt), formatTime(lastKnownWorkAt))
	if err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func (s *Store) GetSessionState(sessionID string) (*SessionState, error) {
	row := s.db.QueryRow(`
		SELECT session_id, tenant_id, user_id, workspace_id, worktree_id, directory_id, conversation_id,
			status, attention_reason, controller_id, controller_type, controller_label, claimed_at,
			started_at, exited_at, last_event_at, last_known_work_at
		FROM session_state WHERE session_id = ?`, sessionID)
	return scanSessionState(row)
}

// ListNeedsInput returns all persisted sessions whose status is
// needs-input, used to restore tombstones on daemon restart.
func (s *Store) ListNeedsInput(scope Scope) ([]SessionState, error) {
	rows, err := s.db.Query(`
		SELECT session_id, tenant_id, user_id, workspace_id, worktree_id, directory_id, conversation_id,
			status, attention_reason, controller_id, controller_type, controller_label, claimed_at,
			started_at, exited_at, last_event_at, last_known_work_at
		FROM session_state WHERE tenant_id = ? AND user_id = ? AND workspace_id = ? AND status = 'needs-input'`,
		scope.TenantID, scope.UserID, scope.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("list needs-input sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionState
	for rows.Next() {
		st, err := scanSessionStateRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// ListAllNeedsInput returns every persisted needs-input session across
// all tenants, used at daemon startup to log which tombstoned sessions
// still await a response (spec.md §8 scenario 4).
func (s *Store) ListAllNeedsInput() ([]SessionState, error) {
	rows, err := s.db.Query(`
		SELECT session_id, tenant_id, user_id, workspace_id, worktree_id, directory_id, conversation_id,
			status, attention_reason, controller_id, controller_type, controller_label, claimed_at,
			started_at, exited_at, last_event_at, last_known_work_at
		FROM session_state WHERE status = 'needs-input'`)
	if err != nil {
		return nil, fmt.Errorf("list needs-input sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionState
	for rows.Next() {
		st, err := scanSessionStateRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSessionState(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM session_state WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

func nullIfEmpty(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func scanSessionState(row *sql.Row) (*SessionState, error) {
	return scanSessionStateGeneric(row)
}

func scanSessionStateRows(rows *sql.Rows) (*SessionState, error) {
	return scanSessionStateGeneric(rows)
}

func scanSessionStateGeneric(s rowScanner) (*SessionState, error) {
	var st SessionState
	var directoryID, conversationID, attentionReason, controllerID, controllerType, controllerLabel sql.NullString
	var claimedAt, exitedAt, lastKnownWorkAt sql.NullString
	var startedAt, lastEventAt string
	err := s.Scan(&st.SessionID, &st.TenantID, &st.UserID, &st.WorkspaceID, &st.WorktreeID, &directoryID, &conversationID,
		&st.Status, &attentionReason, &controllerID, &controllerType, &controllerLabel, &claimedAt,
		&startedAt, &exitedAt, &lastEventAt, &lastKnownWorkAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan session state: %w", err)
	}
	st.DirectoryID = directoryID.String
	st.ConversationID = conversationID.String
	st.AttentionReason = attentionReason.String
	st.ControllerID = controllerID.String
	st.ControllerType = controllerType.String
	st.ControllerLabel = controllerLabel.String
	st.ClaimedAt = parseTimePtr(claimedAt)
	st.StartedAt = parseTime(startedAt)
	st.ExitedAt = parseTimePtr(exitedAt)
	st.LastEventAt = parseTime(lastEventAt)
	st.LastKnownWorkAt = parseTimePtr(lastKnownWorkAt)
	return &st, nil
}
