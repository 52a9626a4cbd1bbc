package store

import (
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) UpsertTask(tk Task) error {
	now := tk.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	createdAt := tk.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if tk.Status == "" {
		tk.Status = TaskDraft
	}
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, tenant_id, user_id, workspace_id, conversation_id, title, status, order_index, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			title = excluded.title,
			status = excluded.status,
			order_index = excluded.order_index,
			updated_at = excluded.updated_at,
			archived_at = excluded.archived_at
	`, tk.ID, tk.TenantID, tk.UserID, tk.WorkspaceID, tk.ConversationID, tk.Title, string(tk.Status), tk.OrderIndex,
		formatTime(createdAt), formatTime(now), formatTimePtr(tk.ArchivedAt))
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(id string) (*Task, error) {
	row := s.db.QueryRow(`
		SELECT id, tenant_id, user_id, workspace_id, conversation_id, title, status, order_index, created_at, updated_at, archived_at
		FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (s *Store) ListTasks(f ListFilter) ([]Task, error) {
	query := `
		SELECT id, tenant_id, user_id, workspace_id, conversation_id, title, status, order_index, created_at, updated_at, archived_at
		FROM tasks WHERE tenant_id = ? AND user_id = ? AND workspace_id = ?`
	args := []any{f.TenantID, f.UserID, f.WorkspaceID}
	if !f.IncludeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY order_index ASC, created_at ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		tk, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tk)
	}
	return out, rows.Err()
}

// Reorder sets OrderIndex for each task id in the given order, 0-based.
func (s *Store) ReorderTasks(ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("reorder tasks: begin: %w", err)
	}
	for i, id := range ids {
		if _, err := tx.Exec(`UPDATE tasks SET order_index = ?, updated_at = ? WHERE id = ?`, i, formatTime(time.Now().UTC()), id); err != nil {
			tx.Rollback()
			return fmt.Errorf("reorder tasks: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reorder tasks: commit: %w", err)
	}
	return nil
}

func (s *Store) ArchiveTask(id string) error {
	_, err := s.db.Exec(`UPDATE tasks SET archived_at = ? WHERE id = ?`, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("archive task: %w", err)
	}
	return nil
}

func (s *Store) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func scanTask(row *sql.Row) (*Task, error) {
	return scanTaskGeneric(row)
}

func scanTaskRows(rows *sql.Rows) (*Task, error) {
	return scanTaskGeneric(rows)
}

func scanTaskGeneric(s rowScanner) (*Task, error) {
	var tk Task
	var conversationID sql.NullString
	var status string
	var createdAt, updatedAt string
	var archivedAt sql.NullString
	err := s.Scan(&tk.ID, &tk.TenantID, &tk.UserID, &tk.WorkspaceID, &conversationID, &tk.Title, &status, &tk.OrderIndex,
		&createdAt, &updatedAt, &archivedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	tk.ConversationID = conversationID.String
	tk.Status = TaskStatus(status)
	tk.CreatedAt = parseTime(createdAt)
	tk.UpdatedAt = parseTime(updatedAt)
	tk.ArchivedAt = parseTimePtr(archivedAt)
	return &tk, nil
}
