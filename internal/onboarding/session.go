// Package onboarding drives the multi-step credential-verification dialogue
// that turns user-supplied credentials into a durable, vault-protected
// account.
package onboarding

import "github.com/cretee/creteebot/internal/automation"

// State identifies where a session is in the dialogue.
type State int

const (
	// StateAwaitingCredentials waits for "api_id api_hash +phone".
	StateAwaitingCredentials State = iota
	// StateAwaitingCode waits for the one-time login code. A live client
	// handle is held.
	StateAwaitingCode
	// StateAwaitingSecondFactor waits for the additional secret. The client
	// handle from the code step is retained.
	StateAwaitingSecondFactor
)

// Session is the transient, in-memory state of one user's dialogue. It is
// never persisted and does not survive a restart.
type Session struct {
	UserID int64
	State  State

	creds  automation.Credentials
	client automation.Client
}

// releaseClient disconnects and drops the live handle. Safe to call on any
// path leaving the code or second-factor states; the handle is released at
// most once.
func (s *Session) releaseClient() {
	if s == nil || s.client == nil {
		return
	}
	s.client.Disconnect()
	s.client = nil
}
