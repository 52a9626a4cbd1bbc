package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertDirectory inserts or updates a directory by id.
func (s *Store) UpsertDirectory(d Directory) error {
	now := d.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO directories (id, tenant_id, user_id, workspace_id, worktree_id, path, name, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			name = excluded.name,
			worktree_id = excluded.worktree_id,
			updated_at = excluded.updated_at,
			archived_at = excluded.archived_at
	`, d.ID, d.TenantID, d.UserID, d.WorkspaceID, d.WorktreeID, d.Path, d.Name,
		formatTime(createdAt), formatTime(now), formatTimePtr(d.ArchivedAt))
	if err != nil {
		return fmt.Errorf("upsert directory: %w", err)
	}
	return nil
}

func (s *Store) GetDirectory(id string) (*Directory, error) {
	row := s.db.QueryRow(`
		SELECT id, tenant_id, user_id, workspace_id, worktree_id, path, name, created_at, updated_at, archived_at
		FROM directories WHERE id = ?`, id)
	return scanDirectory(row)
}

func (s *Store) ListDirectories(f ListFilter) ([]Directory, error) {
	query := `
		SELECT id, tenant_id, user_id, workspace_id, worktree_id, path, name, created_at, updated_at, archived_at
		FROM directories WHERE tenant_id = ? AND user_id = ? AND workspace_id = ?`
	args := []any{f.TenantID, f.UserID, f.WorkspaceID}
	if f.WorktreeID != "" {
		query += " AND worktree_id = ?"
		args = append(args, f.WorktreeID)
	}
	if !f.IncludeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list directories: %w", err)
	}
	defer rows.Close()

	var out []Directory
	for rows.Next() {
		d, err := scanDirectoryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Store) ArchiveDirectory(id string) error {
	_, err := s.db.Exec(`UPDATE directories SET archived_at = ? WHERE id = ?`, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("archive directory: %w", err)
	}
	return nil
}

func (s *Store) DeleteDirectory(id string) error {
	_, err := s.db.Exec(`DELETE FROM directories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete directory: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDirectory(row *sql.Row) (*Directory, error) {
	return scanDirectoryGeneric(row)
}

func scanDirectoryRows(rows *sql.Rows) (*Directory, error) {
	return scanDirectoryGeneric(rows)
}

func scanDirectoryGeneric(s rowScanner) (*Directory, error) {
	var d Directory
	var createdAt, updatedAt string
	var archivedAt sql.NullString
	err := s.Scan(&d.ID, &d.TenantID, &d.UserID, &d.WorkspaceID, &d.WorktreeID, &d.Path, &d.Name,
		&createdAt, &updatedAt, &archivedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	d.ArchivedAt = parseTimePtr(archivedAt)
	return &d, nil
}
