package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"voice-room-service/internal/models"
	"voice-room-service/internal/observability/metrics"
	"voice-room-service/internal/service/stt"
	"voice-room-service/internal/service/transcript"
)

type recvItem struct {
	result models.TranscriptResult
	err    error
}

// fakeStream is a backend call driven by the test through results.
type fakeStream struct {
	ctx     context.Context
	cfg     stt.StreamConfig
	results chan recvItem

	mu         sync.Mutex
	sent       [][]byte
	closedSend bool
}

func (f *fakeStream) Send(audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, audio)
	return nil
}

func (f *fakeStream) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedSend = true
	return nil
}

func (f *fakeStream) Recv() (models.TranscriptResult, error) {
	select {
	case <-f.ctx.Done():
		return models.TranscriptResult{}, f.ctx.Err()
	case it := <-f.results:
		return it.result, it.err
	}
}

func (f *fakeStream) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeStream) cancelled() bool {
	select {
	case <-f.ctx.Done():
		return true
	default:
		return false
	}
}

func (f *fakeStream) push(r models.TranscriptResult) {
	f.results <- recvItem{result: r}
}

func (f *fakeStream) fail(err error) {
	f.results <- recvItem{err: err}
}

// fakeAdapter hands out fakeStreams and publishes each on opened.
type fakeAdapter struct {
	openErr error
	gate    chan struct{} // when set, Open blocks until closed
	opened  chan *fakeStream
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{opened: make(chan *fakeStream, 64)}
}

func (a *fakeAdapter) Open(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	if a.gate != nil {
		<-a.gate
	}
	if a.openErr != nil {
		return nil, a.openErr
	}
	s := &fakeStream{ctx: ctx, cfg: cfg, results: make(chan recvItem, 16)}
	a.opened <- s
	return s, nil
}

func (a *fakeAdapter) next(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-a.opened:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for backend call to open")
		return nil
	}
}

// recordingSink records every Sink call.
type recordingSink struct {
	mu      sync.Mutex
	results []models.TranscriptResult
	errors  []*transcript.StageError
	ended   []models.SessionInfo
}

func (s *recordingSink) HandleResult(_ context.Context, _ models.SessionInfo, r models.TranscriptResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *recordingSink) HandleError(_ context.Context, _ models.SessionInfo, err *transcript.StageError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
}

func (s *recordingSink) HandleEnded(_ context.Context, info models.SessionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, info)
}

func (s *recordingSink) counts() (results, errs, ended int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results), len(s.errors), len(s.ended)
}

func (s *recordingSink) snapshot() []models.TranscriptResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TranscriptResult(nil), s.results...)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	return opts
}

func newTestRegistry(a stt.Adapter, sink Sink) *Registry {
	return NewRegistry(context.Background(), a, sink, testOptions())
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
