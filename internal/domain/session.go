package domain

import (
	"time"
)

// UserMode controls how the effective user of a launched session is resolved
type UserMode string

const (
	UserModeIndividual UserMode = "individual"
	UserModeAnonymous  UserMode = "anonymous"
	UserModeShared     UserMode = "shared"
)

// SessionStatus is the lifecycle state of a platform session
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusInactive SessionStatus = "inactive"
	SessionStatusExpired  SessionStatus = "expired"
)

// Valid reports whether s is a known status
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusInactive, SessionStatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether a record in status s may move to next.
// Only active records change status; re-asserting the current status is a no-op.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s == next {
		return true
	}
	return s == SessionStatusActive && (next == SessionStatusInactive || next == SessionStatusExpired)
}

// AppSession is a platform-level session wrapping one conversation session
type AppSession struct {
	SessionID    string         `json:"sessionId"`
	AppName      string         `json:"appName"`
	UserID       string         `json:"userId"`
	UserMode     UserMode       `json:"userMode"`
	Status       SessionStatus  `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	ExpiresAt    *time.Time     `json:"expiresAt,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IsPersistent bool           `json:"isPersistent"`
}

// Clone returns a deep enough copy for callers to hold outside the registry
func (s *AppSession) Clone() *AppSession {
	c := *s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// SessionConfig is the optional session configuration of a launch request
type SessionConfig struct {
	Timeout    *int           `json:"timeout,omitempty" validate:"omitempty,min=0"`
	Persistent bool           `json:"persistent,omitempty"`
	State      map[string]any `json:"state,omitempty"`
}

// LaunchRequest is the input for launching an application session
type LaunchRequest struct {
	UserID        string         `json:"user_id,omitempty" validate:"omitempty,max=255"`
	UserMode      UserMode       `json:"user_mode,omitempty" validate:"omitempty,oneof=individual anonymous shared"`
	SessionConfig *SessionConfig `json:"session_config,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// LaunchResult is returned to the caller after a successful launch
type LaunchResult struct {
	Session      *AppSession  `json:"sessionInfo"`
	App          *Application `json:"appInfo"`
	WebsocketURL string       `json:"websocketUrl,omitempty"`
	SSEURL       string       `json:"sseUrl,omitempty"`
}

// SessionUpdate is a partial update; nil fields are left untouched
type SessionUpdate struct {
	Status    *SessionStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive expired"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// SessionFilter selects and paginates platform sessions
type SessionFilter struct {
	AppName  string         `validate:"omitempty,max=255"`
	UserID   string         `validate:"omitempty,max=255"`
	Status   *SessionStatus `validate:"omitempty,oneof=active inactive expired"`
	Page     *int           `validate:"omitempty,min=1"`
	PageSize *int           `validate:"omitempty,min=1"`
}

// SessionList is the result of listing platform sessions
type SessionList struct {
	Sessions    []*AppSession `json:"sessions"`
	TotalCount  int           `json:"totalCount"`
	ActiveCount int           `json:"activeCount"`
	Page        *int          `json:"page,omitempty"`
	PageSize    *int          `json:"pageSize,omitempty"`
}
