package session

import (
	"sync"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("sess-1")

	if lc.State() != StateCreated {
		t.Errorf("expected StateCreated, got %v", lc.State())
	}
	if lc.SessionId() != "sess-1" {
		t.Errorf("expected sess-1, got %v", lc.SessionId())
	}
	if !lc.Accepting() {
		t.Error("expected a created session to accept audio")
	}
}

func TestLifecycle_MarkStreaming(t *testing.T) {
	lc := NewLifecycle("sess-1")

	if err := lc.MarkStreaming(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.State() != StateStreaming {
		t.Errorf("expected StateStreaming, got %v", lc.State())
	}
	// Idempotent
	if err := lc.MarkStreaming(); err != nil {
		t.Errorf("expected idempotent MarkStreaming, got %v", err)
	}
	if !lc.Accepting() {
		t.Error("expected a streaming session to accept audio")
	}
}

func TestLifecycle_BeginStop(t *testing.T) {
	lc := NewLifecycle("sess-1")
	lc.MarkStreaming()

	if !lc.BeginStop() {
		t.Error("expected first BeginStop to succeed")
	}
	if lc.BeginStop() {
		t.Error("expected second BeginStop to report already stopping")
	}
	if lc.Accepting() {
		t.Error("expected a stopping session to reject audio")
	}
	if err := lc.MarkStreaming(); err != ErrSessionStopping {
		t.Errorf("expected ErrSessionStopping, got %v", err)
	}
}

func TestLifecycle_StopBeforeStreaming(t *testing.T) {
	lc := NewLifecycle("sess-1")

	if !lc.BeginStop() {
		t.Error("expected BeginStop from CREATED to succeed")
	}
	if lc.State() != StateStopping {
		t.Errorf("expected StateStopping, got %v", lc.State())
	}
}

func TestLifecycle_Close(t *testing.T) {
	lc := NewLifecycle("sess-1")
	lc.MarkStreaming()

	if prev := lc.Close(); prev != StateStreaming {
		t.Errorf("expected previous state STREAMING, got %v", prev)
	}
	if prev := lc.Close(); prev != StateClosed {
		t.Errorf("expected idempotent close, got previous %v", prev)
	}
	if lc.BeginStop() {
		t.Error("expected BeginStop on closed session to fail")
	}
	if err := lc.MarkStreaming(); err != ErrSessionClosed {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if lc.Accepting() {
		t.Error("expected closed session to reject audio")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateCreated, "CREATED"},
		{StateStreaming, "STREAMING"},
		{StateStopping, "STOPPING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	for _, s := range []State{StateCreated, StateStreaming, StateStopping} {
		if s.IsTerminal() {
			t.Errorf("expected %v to be non-terminal", s)
		}
	}
	if !StateClosed.IsTerminal() {
		t.Error("expected CLOSED to be terminal")
	}
}

func TestLifecycle_ConcurrentStop(t *testing.T) {
	lc := NewLifecycle("sess-1")
	lc.MarkStreaming()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lc.BeginStop() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one successful BeginStop, got %d", wins)
	}
}
