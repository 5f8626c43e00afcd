// Package mock provides a mock STT backend for running without cloud credentials.
// It simulates progressive partial transcripts, exactly one final transcript
// per utterance, and a batch transcriber over the same script.
package mock

import (
	"context"
	"io"
	"sync"
	"time"

	"voice-room-service/internal/models"
	"voice-room-service/internal/service/stt"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string // Progressive partial transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"Let's start", "Let's start the meeting", "Let's start the meeting with"},
		Final:      "Let's start the meeting with the roadmap",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"Can everyone", "Can everyone hear me"},
		Final:      "Can everyone hear me clearly",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"The login page", "The login page needs a", "The login page needs a new"},
		Final:      "The login page needs a new design",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"I'll share", "I'll share my screen"},
		Final:      "I'll share my screen now",
		Confidence: 0.89,
	},
	{
		Partials:   []string{"Thanks"},
		Final:      "Thanks everyone",
		Confidence: 0.98,
	},
}

// Options tunes the simulation.
type Options struct {
	Utterances    []SimulatedUtterance
	FramesPerStep int           // audio frames per emitted partial/final
	Latency       time.Duration // delay before each result is returned
	SegmentLength time.Duration // batch: audio covered by one segment
}

// DefaultOptions returns options suitable for local development.
func DefaultOptions() Options {
	return Options{
		Utterances:    DefaultUtterances,
		FramesPerStep: 5,
		Latency:       50 * time.Millisecond,
		SegmentLength: 3 * time.Second,
	}
}

// Adapter implements stt.Adapter and stt.BatchTranscriber with scripted output.
type Adapter struct {
	opts Options

	mu   sync.Mutex
	next int // utterance the next stream starts with
}

// New creates a mock adapter with DefaultOptions.
func New() *Adapter {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates a mock adapter with custom options.
func NewWithOptions(opts Options) *Adapter {
	if len(opts.Utterances) == 0 {
		opts.Utterances = DefaultUtterances
	}
	if opts.FramesPerStep <= 0 {
		opts.FramesPerStep = 1
	}
	if opts.SegmentLength <= 0 {
		opts.SegmentLength = 3 * time.Second
	}
	return &Adapter{opts: opts}
}

// Open starts a simulated recognition call. Successive streams cycle
// through the utterance script.
func (a *Adapter) Open(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	start := a.next % len(a.opts.Utterances)
	a.next++
	a.mu.Unlock()

	return &stream{
		ctx:     ctx,
		opts:    a.opts,
		interim: cfg.InterimResults,
		current: start,
		notify:  make(chan struct{}, 1),
	}, nil
}

// Transcribe returns one segment per SegmentLength of 16-bit mono audio,
// each carrying the next scripted final.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, cfg stt.BatchConfig) ([]models.Segment, error) {
	if len(audio) == 0 {
		return nil, nil
	}

	rate := cfg.SampleRateHz
	if rate <= 0 {
		rate = 16000
	}
	total := time.Duration(len(audio)) * time.Second / time.Duration(rate*2)

	n := int((total + a.opts.SegmentLength - 1) / a.opts.SegmentLength)
	if n < 1 {
		n = 1
	}
	if n > len(a.opts.Utterances) {
		n = len(a.opts.Utterances)
	}

	if a.opts.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.opts.Latency):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segments := make([]models.Segment, 0, n)
	step := total / time.Duration(n)
	var prev time.Duration
	for i := 0; i < n; i++ {
		end := prev + step
		if i == n-1 {
			end = total
		}
		segments = append(segments, models.Segment{
			Text:  a.opts.Utterances[i].Final,
			Start: prev,
			End:   end,
		})
		prev = end
	}
	return segments, nil
}

type stream struct {
	ctx     context.Context
	opts    Options
	interim bool

	mu         sync.Mutex
	current    int // index into opts.Utterances
	partialIdx int
	frames     int
	inProgress bool
	pending    []models.TranscriptResult
	closed     bool
	notify     chan struct{}
}

// Send advances the script by one step every FramesPerStep frames.
func (s *stream) Send(audio []byte) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return stt.ErrStreamClosed
	}
	if len(audio) == 0 {
		return nil
	}

	s.frames++
	if s.frames%s.opts.FramesPerStep != 0 {
		return nil
	}

	utt := s.opts.Utterances[s.current]
	s.inProgress = true
	if s.partialIdx < len(utt.Partials) {
		text := utt.Partials[s.partialIdx]
		s.partialIdx++
		if s.interim {
			s.push(models.TranscriptResult{Text: text, IsPartial: true})
		}
		return nil
	}

	s.finishUtterance()
	return nil
}

// CloseSend flushes the final of an utterance that was cut short.
func (s *stream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if s.inProgress {
		s.finishUtterance()
	}
	s.closed = true
	s.signal()
	return nil
}

func (s *stream) Recv() (models.TranscriptResult, error) {
	for {
		if err := s.ctx.Err(); err != nil {
			return models.TranscriptResult{}, err
		}

		s.mu.Lock()
		if len(s.pending) > 0 {
			r := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return s.delay(r)
		}
		done := s.closed
		s.mu.Unlock()

		if done {
			return models.TranscriptResult{}, io.EOF
		}

		select {
		case <-s.ctx.Done():
		case <-s.notify:
		}
	}
}

func (s *stream) delay(r models.TranscriptResult) (models.TranscriptResult, error) {
	if s.opts.Latency <= 0 {
		return r, nil
	}
	t := time.NewTimer(s.opts.Latency)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return models.TranscriptResult{}, s.ctx.Err()
	case <-t.C:
		return r, nil
	}
}

// finishUtterance must be called with s.mu held.
func (s *stream) finishUtterance() {
	utt := s.opts.Utterances[s.current]
	s.push(models.TranscriptResult{Text: utt.Final, Confidence: utt.Confidence})
	s.current = (s.current + 1) % len(s.opts.Utterances)
	s.partialIdx = 0
	s.inProgress = false
}

func (s *stream) push(r models.TranscriptResult) {
	s.pending = append(s.pending, r)
	s.signal()
}

func (s *stream) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
