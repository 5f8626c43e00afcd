package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRegistry_StopWithoutSession_ReturnsNotFound(t *testing.T) {
	r := newTestRegistry(newFakeAdapter(), &recordingSink{})

	for _, id := range []string{"conn-1", "", "conn-unknown"} {
		if got := r.Stop(id); got != StatusNotFound {
			t.Errorf("Stop(%q) = %s, want %s", id, got, StatusNotFound)
		}
		if got := r.Disconnect(id); got != StatusNotFound {
			t.Errorf("Disconnect(%q) = %s, want %s", id, got, StatusNotFound)
		}
	}
}

func TestRegistry_StopTwice(t *testing.T) {
	a := newFakeAdapter()
	r := newTestRegistry(a, &recordingSink{})

	r.Start("conn-1", "en-US")
	a.next(t)

	if got := r.Stop("conn-1"); got != StatusStopped {
		t.Errorf("first Stop = %s, want %s", got, StatusStopped)
	}
	if got := r.Stop("conn-1"); got != StatusNotFound {
		t.Errorf("second Stop = %s, want %s", got, StatusNotFound)
	}
}

func TestRegistry_StartReturnsBeforeBackendOpens(t *testing.T) {
	a := newFakeAdapter()
	a.gate = make(chan struct{})
	defer close(a.gate)
	r := newTestRegistry(a, &recordingSink{})

	done := make(chan Handle, 1)
	go func() { done <- r.Start("conn-1", "") }()

	select {
	case h := <-done:
		if h.ID == "" || h.ConnectionID != "conn-1" {
			t.Errorf("unexpected handle %+v", h)
		}
		if h.LanguageCode != "ko-KR" {
			t.Errorf("expected default language ko-KR, got %s", h.LanguageCode)
		}
	case <-time.After(time.Second):
		t.Fatal("Start blocked on backend handshake")
	}
}

func TestRegistry_SecondStartSupersedesFirst(t *testing.T) {
	a := newFakeAdapter()
	sink := &recordingSink{}
	r := newTestRegistry(a, sink)

	h1 := r.Start("conn-1", "en-US")
	first := a.next(t)

	h2 := r.Start("conn-1", "ko-KR")
	second := a.next(t)

	if !first.cancelled() {
		t.Error("expected first backend call to be cancelled")
	}
	if second.cancelled() {
		t.Error("expected second backend call to stay open")
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 session, got %d", r.Count())
	}
	info, ok := r.Active("conn-1")
	if !ok || info.ID != h2.ID {
		t.Errorf("expected active session %s, got %+v", h2.ID, info)
	}
	if h2.Superseded != h1.ID {
		t.Errorf("expected handle to name superseded session %s, got %q", h1.ID, h2.Superseded)
	}
	if second.cfg.LanguageCode != "ko-KR" {
		t.Errorf("expected second call in ko-KR, got %s", second.cfg.LanguageCode)
	}

	// Superseding is a caller stop: no error, no ended notification.
	time.Sleep(20 * time.Millisecond)
	if _, errs, ended := sink.counts(); errs != 0 || ended != 0 {
		t.Errorf("expected no error or ended events, got errs=%d ended=%d", errs, ended)
	}
}

func TestRegistry_ConcurrentStartsLeaveOneSession(t *testing.T) {
	a := newFakeAdapter()
	r := newTestRegistry(a, &recordingSink{})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Start("conn-1", "en-US")
		}()
	}
	wg.Wait()

	if r.Count() != 1 {
		t.Fatalf("expected exactly 1 session, got %d", r.Count())
	}

	live := 0
	for i := 0; i < n; i++ {
		s := a.next(t)
		if !s.cancelled() {
			live++
		}
	}
	if live != 1 {
		t.Errorf("expected exactly 1 live backend call, got %d", live)
	}
}

func TestRegistry_FeedAfterStopIsDropped(t *testing.T) {
	a := newFakeAdapter()
	r := newTestRegistry(a, &recordingSink{})

	r.Start("conn-1", "en-US")
	s := a.next(t)

	if !r.Feed("conn-1", []byte("before")) {
		t.Fatal("expected chunk before stop to be accepted")
	}
	eventually(t, func() bool { return s.sentCount() == 1 }, "first chunk reaches backend")

	r.Stop("conn-1")

	for i := 0; i < 10; i++ {
		if r.Feed("conn-1", []byte("after")) {
			t.Fatal("expected chunk after stop to be dropped")
		}
	}
	time.Sleep(20 * time.Millisecond)
	if got := s.sentCount(); got != 1 {
		t.Errorf("expected backend to receive 1 chunk, got %d", got)
	}
}

func TestRegistry_FeedUnknownConnection(t *testing.T) {
	r := newTestRegistry(newFakeAdapter(), &recordingSink{})

	if r.Feed("nobody", []byte("audio")) {
		t.Error("expected chunk for unknown connection to be dropped")
	}
}

func TestRegistry_FeedEmptyChunk(t *testing.T) {
	a := newFakeAdapter()
	r := newTestRegistry(a, &recordingSink{})
	r.Start("conn-1", "en-US")
	s := a.next(t)

	if r.Feed("conn-1", nil) {
		t.Error("expected empty chunk to be dropped")
	}
	time.Sleep(10 * time.Millisecond)
	if s.sentCount() != 0 {
		t.Error("expected empty chunk not to reach backend")
	}
}

func TestRegistry_ConnectionsAreIndependent(t *testing.T) {
	a := newFakeAdapter()
	r := newTestRegistry(a, &recordingSink{})

	r.Start("conn-1", "en-US")
	s1 := a.next(t)
	r.Start("conn-2", "en-US")
	s2 := a.next(t)

	r.Stop("conn-1")

	if !s1.cancelled() || s2.cancelled() {
		t.Errorf("expected only conn-1 call cancelled, got conn-1=%v conn-2=%v", s1.cancelled(), s2.cancelled())
	}
	if _, ok := r.Active("conn-2"); !ok {
		t.Error("expected conn-2 session to remain")
	}
}

func TestRegistry_Shutdown(t *testing.T) {
	a := newFakeAdapter()
	r := newTestRegistry(a, &recordingSink{})

	var streams []*fakeStream
	for _, id := range []string{"a", "b", "c"} {
		r.Start(id, "en-US")
		streams = append(streams, a.next(t))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if r.Count() != 0 {
		t.Errorf("expected no sessions after shutdown, got %d", r.Count())
	}
	for i, s := range streams {
		if !s.cancelled() {
			t.Errorf("expected stream %d to be cancelled", i)
		}
	}
}
