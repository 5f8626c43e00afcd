package transcript

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"voice-room-service/internal/models"
	"voice-room-service/internal/observability/metrics"
)

type sentEvent struct {
	connID  string
	event   string
	payload any
}

type member struct {
	userID string
	roomID string
}

// fakeDirectory records every event sent to a connection.
type fakeDirectory struct {
	mu      sync.Mutex
	members map[string]member
	sent    []sentEvent
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{members: make(map[string]member)}
}

func (d *fakeDirectory) join(connID, userID, roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[connID] = member{userID: userID, roomID: roomID}
}

func (d *fakeDirectory) Identity(connID string) (string, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.members[connID]
	return m.userID, m.roomID
}

func (d *fakeDirectory) Send(connID, event string, payload any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentEvent{connID: connID, event: event, payload: payload})
	return true
}

func (d *fakeDirectory) events(name string) []sentEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []sentEvent
	for _, e := range d.sent {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

var errStoreDown = errors.New("store unavailable")

// fakePoster stores posted messages and stands in for a room broadcast by
// recording each message it accepted. failures makes the next n posts fail.
type fakePoster struct {
	mu        sync.Mutex
	nextID    uint64
	posted    []models.Message
	broadcast []models.Message
	failures  int
	failAfter int // fail every post once this many have succeeded; 0 disables
}

func (p *fakePoster) Post(_ context.Context, msg *models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errStoreDown
	}
	if p.failAfter > 0 && len(p.posted) >= p.failAfter {
		return errStoreDown
	}
	p.nextID++
	msg.ID = p.nextID
	p.posted = append(p.posted, *msg)
	p.broadcast = append(p.broadcast, *msg)
	return nil
}

func (p *fakePoster) messages() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Message(nil), p.posted...)
}

func (p *fakePoster) broadcasts() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Message(nil), p.broadcast...)
}

type published struct {
	key   string
	event any
}

type fakePublisher struct {
	mu       sync.Mutex
	partials []published
	finals   []published
	err      error
}

func (p *fakePublisher) PublishPartial(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.partials = append(p.partials, published{key, event})
	return p.err
}

func (p *fakePublisher) PublishFinal(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finals = append(p.finals, published{key, event})
	return p.err
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}
