package domain

import "time"

// Session is the durable per-user record of protocol progress.
// It is always written as a full replacement, never patched, so
// concurrent writers degrade to last-writer-wins without partial
// merges.
type Session struct {
	UserID         string    `json:"userId"`
	Stage          Stage     `json:"stage"`
	IdentityID     *string   `json:"identityId,omitempty"`
	IdentityHandle *string   `json:"identityHandle,omitempty"`
	IdentityToken  *string   `json:"identityToken,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewSession creates a fresh session at the initial stage.
func NewSession(userID string, now time.Time) *Session {
	return &Session{
		UserID:    userID,
		Stage:     InitialStage(),
		Timestamp: now,
	}
}

// Authenticated reports whether an identity has been linked.
func (s *Session) Authenticated() bool {
	return s.IdentityID != nil && s.IdentityToken != nil
}

// CompletionStatus is a derived view used only to drive UI
// affordances. Session.Stage is the single source of truth when the
// two disagree.
type CompletionStatus struct {
	UserID      string `json:"userId"`
	Followed    bool   `json:"followed"`
	Liked       bool   `json:"liked"`
	Reposted    bool   `json:"reposted"`
	CurrentStep int    `json:"currentStep"`
}
