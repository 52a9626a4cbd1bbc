package store

import "time"

// Scope narrows nearly every store query (spec.md §3 "Persistent
// records").
type Scope struct {
	TenantID    string `json:"tenantId"`
	UserID      string `json:"userId"`
	WorkspaceID string `json:"workspaceId"`
}

// ListFilter narrows a List* query beyond scope.
type ListFilter struct {
	Scope
	WorktreeID      string `json:"worktreeId,omitempty"` // "" matches any
	IncludeArchived bool   `json:"includeArchived,omitempty"`
}

type Directory struct {
	ID string `json:"id"`
	Scope
	WorktreeID string     `json:"worktreeId,omitempty"`
	Path       string     `json:"path"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

type Conversation struct {
	ID string `json:"id"`
	Scope
	DirectoryID  string         `json:"directoryId"`
	Title        string         `json:"title"`
	AdapterState map[string]any `json:"adapterState,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	ArchivedAt   *time.Time     `json:"archivedAt,omitempty"`
}

type Repository struct {
	ID string `json:"id"`
	Scope
	RemoteURL    string         `json:"remoteUrl"`
	HomePriority int            `json:"homePriority"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	ArchivedAt   *time.Time     `json:"archivedAt,omitempty"`
}

type TaskStatus string

const (
	TaskDraft      TaskStatus = "draft"
	TaskReady      TaskStatus = "ready"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

type Task struct {
	ID string `json:"id"`
	Scope
	ConversationID string     `json:"conversationId"`
	Title          string     `json:"title"`
	Status         TaskStatus `json:"status"`
	OrderIndex     int        `json:"orderIndex"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ArchivedAt     *time.Time `json:"archivedAt,omitempty"`
}

// SessionState is the durable projection of a session's last-known
// status, used to restore needs-input tombstones across restarts
// (spec.md §4.7).
type SessionState struct {
	SessionID string `json:"sessionId"`
	Scope
	WorktreeID      string     `json:"worktreeId,omitempty"`
	DirectoryID     string     `json:"directoryId"`
	ConversationID  string     `json:"conversationId"`
	Status          string     `json:"status"`
	AttentionReason string     `json:"attentionReason,omitempty"`
	ControllerID    string     `json:"controllerId,omitempty"`
	ControllerType  string     `json:"controllerType,omitempty"`
	ControllerLabel string     `json:"controllerLabel,omitempty"`
	ClaimedAt       *time.Time `json:"claimedAt,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	ExitedAt        *time.Time `json:"exitedAt,omitempty"`
	LastEventAt     time.Time  `json:"lastEventAt"`
	LastKnownWorkAt *time.Time `json:"lastKnownWorkAt,omitempty"`
}
