package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UpsertConversation inserts or, on conflict, shallow-merges
// AdapterState per top-level key into the stored JSON blob (spec.md §3
// "conversation adapterState is opaque JSON merged (shallow per
// top-level key) on update").
func (s *Store) UpsertConversation(c Conversation) error {
	now := c.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	existing, err := s.GetConversation(c.ID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("upsert conversation: load existing: %w", err)
	}
	merged := c.AdapterState
	if existing != nil {
		merged = mergeShallow(existing.AdapterState, c.AdapterState)
	}
	stateJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("upsert conversation: marshal adapter state: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO conversations (id, tenant_id, user_id, workspace_id, directory_id, title, adapter_state, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			directory_id = excluded.directory_id,
			title = excluded.title,
			adapter_state = excluded.adapter_state,
			updated_at = excluded.updated_at,
			archived_at = excluded.archived_at
	`, c.ID, c.TenantID, c.UserID, c.WorkspaceID, nullIfEmpty(c.DirectoryID), c.Title, string(stateJSON),
		formatTime(createdAt), formatTime(now), formatTimePtr(c.ArchivedAt))
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

func mergeShallow(base, overlay map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func (s *Store) GetConversation(id string) (*Conversation, error) {
	row := s.db.QueryRow(`
		SELECT id, tenant_id, user_id, workspace_id, directory_id, title, adapter_state, created_at, updated_at, archived_at
		FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

func (s *Store) ListConversations(f ListFilter) ([]Conversation, error) {
	query := `
		SELECT id, tenant_id, user_id, workspace_id, directory_id, title, adapter_state, created_at, updated_at, archived_at
		FROM conversations WHERE tenant_id = ? AND user_id = ? AND workspace_id = ?`
	args := []any{f.TenantID, f.UserID, f.WorkspaceID}
	if !f.IncludeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) ArchiveConversation(id string) error {
	_, err := s.db.Exec(`UPDATE conversations SET archived_at = ? WHERE id = ?`, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("archive conversation: %w", err)
	}
	return nil
}

func (s *Store) DeleteConversation(id string) error {
	_, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func scanConversation(row *sql.Row) (*Conversation, error) {
	return scanConversationGeneric(row)
}

func scanConversationRows(rows *sql.Rows) (*Conversation, error) {
	return scanConversationGeneric(rows)
}

func scanConversationGeneric(s rowScanner) (*Conversation, error) {
	var c Conversation
	var directoryID sql.NullString
	var stateJSON string
	var createdAt, updatedAt string
	var archivedAt sql.NullString
	err := s.Scan(&c.ID, &c.TenantID, &c.UserID, &c.WorkspaceID, &directoryID, &c.Title, &stateJSON,
		&createdAt, &updatedAt, &archivedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.DirectoryID = directoryID.String
	if err := json.Unmarshal([]byte(stateJSON), &c.AdapterState); err != nil {
		c.AdapterState = map[string]any{}
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	c.ArchivedAt = parseTimePtr(archivedAt)
	return &c, nil
}
