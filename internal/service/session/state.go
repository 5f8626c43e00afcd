// Package session manages live transcription sessions, one per connection.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateCreated - Channels allocated, backend call being opened.
	StateCreated State = iota
	// StateStreaming - Backend accepted the call; audio in, results out.
	StateStreaming
	// StateStopping - Cancellation signalled; results drain, no new audio.
	StateStopping
	// StateClosed - Terminal. Resources released.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateStreaming:
		return "STREAMING"
	case StateStopping:
		return "STOPPING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is CLOSED.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// Errors for invalid state transitions.
var (
	ErrSessionClosed   = errors.New("session is closed")
	ErrSessionStopping = errors.New("session is stopping")
)

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	CREATED → STREAMING → STOPPING → CLOSED
//	   │          │                     ▲
//	   └──────────┴── backend error ────┘
//
// Rules:
//   - CREATED and STREAMING accept audio
//   - STOPPING accepts no audio; results already received still drain
//   - CLOSED: all operations are no-ops or return errors
type Lifecycle struct {
	mu        sync.RWMutex
	sessionId string
	state     State
}

// NewLifecycle creates a new session lifecycle in CREATED state.
func NewLifecycle(sessionId string) *Lifecycle {
	return &Lifecycle{
		sessionId: sessionId,
		state:     StateCreated,
	}
}

// SessionId returns the session ID.
func (l *Lifecycle) SessionId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Accepting returns true if audio may still be fed.
func (l *Lifecycle) Accepting() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateCreated || l.state == StateStreaming
}

// MarkStreaming records that the backend accepted the call.
func (l *Lifecycle) MarkStreaming() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateCreated:
		l.state = StateStreaming
		return nil
	case StateStreaming:
		return nil
	case StateStopping:
		return ErrSessionStopping
	case StateClosed:
		return ErrSessionClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// BeginStop transitions to STOPPING.
// Returns true if the session was live, false if already stopping or closed.
func (l *Lifecycle) BeginStop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateStopping || l.state.IsTerminal() {
		return false
	}
	l.state = StateStopping
	return true
}

// Close transitions to CLOSED. Can be called from any state. Idempotent.
// Returns the state the session was in.
func (l *Lifecycle) Close() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.state
	l.state = StateClosed
	return prev
}
