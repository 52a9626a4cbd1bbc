package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

func (s *Store) UpsertRepository(r Repository) error {
	now := r.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	metaJSON, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("upsert repository: marshal metadata: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO repositories (id, tenant_id, user_id, workspace_id, remote_url, home_priority, metadata, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_url = excluded.remote_url,
			home_priority = excluded.home_priority,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at,
			archived_at = excluded.archived_at
	`, r.ID, r.TenantID, r.UserID, r.WorkspaceID, r.RemoteURL, r.HomePriority, string(metaJSON),
		formatTime(createdAt), formatTime(now), formatTimePtr(r.ArchivedAt))
	if err != nil {
		return fmt.Errorf("upsert repository: %w", err)
	}
	return nil
}

func (s *Store) GetRepository(id string) (*Repository, error) {
	row := s.db.QueryRow(`
		SELECT id, tenant_id, user_id, workspace_id, remote_url, home_priority, metadata, created_at, updated_at, archived_at
		FROM repositories WHERE id = ?`, id)
	return scanRepository(row)
}

func (s *Store) ListRepositories(f ListFilter) ([]Repository, error) {
	query := `
		SELECT id, tenant_id, user_id, workspace_id, remote_url, home_priority, metadata, created_at, updated_at, archived_at
		FROM repositories WHERE tenant_id = ? AND user_id = ? AND workspace_id = ?`
	args := []any{f.TenantID, f.UserID, f.WorkspaceID}
	if !f.IncludeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY home_priority DESC, created_at ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var out []Repository
	for rows.Next() {
		r, err := scanRepositoryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) ArchiveRepository(id string) error {
	_, err := s.db.Exec(`UPDATE repositories SET archived_at = ? WHERE id = ?`, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("archive repository: %w", err)
	}
	return nil
}

func (s *Store) DeleteRepository(id string) error {
	_, err := s.db.Exec(`DELETE FROM repositories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	return nil
}

func scanRepository(row *sql.Row) (*Repository, error) {
	return scanRepositoryGeneric(row)
}

func scanRepositoryRows(rows *sql.Rows) (*Repository, error) {
	return scanRepositoryGeneric(rows)
}

func scanRepositoryGeneric(s rowScanner) (*Repository, error) {
	var r Repository
	var metaJSON string
	var createdAt, updatedAt string
	var archivedAt sql.NullString
	err := s.Scan(&r.ID, &r.TenantID, &r.UserID, &r.WorkspaceID, &r.RemoteURL, &r.HomePriority, &metaJSON,
		&createdAt, &updatedAt, &archivedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan repository: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
		r.Metadata = map[string]any{}
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	r.ArchivedAt = parseTimePtr(archivedAt)
	return &r, nil
}
