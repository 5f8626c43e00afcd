// Package google provides Google Cloud Speech-to-Text streaming and batch
// recognition.
package google

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/status"

	"voice-room-service/internal/models"
	"voice-room-service/internal/service/stt"
	"voice-room-service/internal/storage"
)

// inlineAudioLimit is the largest recording sent inline; larger recordings
// are staged in Cloud Storage first.
const inlineAudioLimit = 10 * 1024 * 1024

// Config holds Google STT configuration. Per-call values override it.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string // LINEAR16, MULAW, FLAC, etc.
	PollInterval   time.Duration
}

// DefaultConfig returns default Google STT configuration.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "ko-KR",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		PollInterval:   2 * time.Second,
	}
}

// Stager uploads recordings that are too large to send inline.
type Stager interface {
	Upload(ctx context.Context, objectName, contentType string, r io.Reader) (storage.Object, error)
	Delete(ctx context.Context, objectName string) error
}

// Adapter implements stt.Adapter and stt.BatchTranscriber using Google
// Cloud Speech-to-Text. Requires GOOGLE_APPLICATION_CREDENTIALS.
type Adapter struct {
	client *speech.Client
	cfg    Config
	stager Stager
}

// New creates a new Google STT adapter. stager may be nil, in which case
// batch recordings are always sent inline.
func New(ctx context.Context, cfg Config, stager Stager) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Adapter{client: c, cfg: cfg, stager: stager}, nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// Open starts a StreamingRecognize call and sends the streaming config as
// the first message.
func (a *Adapter) Open(ctx context.Context, sc stt.StreamConfig) (stt.Stream, error) {
	rc := a.recognitionConfig(sc.LanguageCode, sc.SampleRateHz, sc.Encoding)

	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("streaming recognize: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         rc,
				InterimResults: sc.InterimResults,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	log.Debug().
		Str("languageCode", rc.LanguageCode).
		Int32("sampleRateHz", rc.SampleRateHertz).
		Str("encoding", rc.Encoding.String()).
		Msg("Google streaming recognition opened")

	return &recognizeStream{stream: stream}, nil
}

// Transcribe runs LongRunningRecognize over a complete recording and
// polls until the job finishes.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, bc stt.BatchConfig) ([]models.Segment, error) {
	rc := a.recognitionConfig(bc.LanguageCode, bc.SampleRateHz, bc.Encoding)

	src := &speechpb.RecognitionAudio{
		AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
	}
	if a.stager != nil && len(audio) > inlineAudioLimit {
		obj, err := a.stager.Upload(ctx, storage.ObjectName("recordings", "recording.raw"), "application/octet-stream", bytes.NewReader(audio))
		if err != nil {
			return nil, fmt.Errorf("stage recording: %w", err)
		}
		defer func() {
			if err := a.stager.Delete(context.Background(), obj.Name); err != nil {
				log.Warn().Err(err).Str("object", obj.Name).Msg("Failed to delete staged recording")
			}
		}()
		src = &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: obj.URI()},
		}
	}

	op, err := a.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: rc,
		Audio:  src,
	})
	if err != nil {
		return nil, fmt.Errorf("long running recognize: %w", err)
	}

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		resp, err := op.Poll(ctx)
		if err != nil {
			return nil, fmt.Errorf("poll %s: %w", op.Name(), err)
		}
		if op.Done() {
			return segmentsFromResults(resp.GetResults()), nil
		}

		log.Debug().Str("operation", op.Name()).Msg("Batch recognition in progress")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Adapter) recognitionConfig(languageCode string, sampleRateHz int, encoding string) *speechpb.RecognitionConfig {
	if languageCode == "" {
		languageCode = a.cfg.LanguageCode
	}
	if sampleRateHz <= 0 {
		sampleRateHz = a.cfg.SampleRateHz
	}
	if encoding == "" {
		encoding = a.cfg.AudioEncoding
	}
	return &speechpb.RecognitionConfig{
		Encoding:                   parseAudioEncoding(encoding),
		SampleRateHertz:            int32(sampleRateHz),
		LanguageCode:               languageCode,
		EnableAutomaticPunctuation: true,
	}
}

// recognizeStream adapts the gRPC stream to stt.Stream. pending holds the
// rest of a multi-result response and is only touched by Recv.
type recognizeStream struct {
	stream  speechpb.Speech_StreamingRecognizeClient
	pending []models.TranscriptResult
}

func (s *recognizeStream) Send(audio []byte) error {
	return s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

func (s *recognizeStream) CloseSend() error {
	return s.stream.CloseSend()
}

func (s *recognizeStream) Recv() (models.TranscriptResult, error) {
	for len(s.pending) == 0 {
		resp, err := s.stream.Recv()
		if err != nil {
			return models.TranscriptResult{}, err
		}
		if e := resp.GetError(); e != nil {
			return models.TranscriptResult{}, status.ErrorProto(e)
		}
		s.pending = append(s.pending, resultsFromResponse(resp)...)
	}

	r := s.pending[0]
	s.pending = s.pending[1:]
	return r, nil
}

// resultsFromResponse maps the top alternative of each result. Empty
// transcripts are skipped.
func resultsFromResponse(resp *speechpb.StreamingRecognizeResponse) []models.TranscriptResult {
	var out []models.TranscriptResult
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		if alt.GetTranscript() == "" {
			continue
		}
		out = append(out, models.TranscriptResult{
			Text:       alt.GetTranscript(),
			IsPartial:  !r.GetIsFinal(),
			Confidence: float64(alt.GetConfidence()),
		})
	}
	return out
}

// segmentsFromResults turns batch results into contiguous segments: each
// segment starts where the previous result ended.
func segmentsFromResults(results []*speechpb.SpeechRecognitionResult) []models.Segment {
	var (
		out  []models.Segment
		prev time.Duration
	)
	for _, r := range results {
		end := r.GetResultEndTime().AsDuration()
		if len(r.GetAlternatives()) == 0 {
			prev = end
			continue
		}
		text := strings.TrimSpace(r.GetAlternatives()[0].GetTranscript())
		if text != "" {
			out = append(out, models.Segment{Text: text, Start: prev, End: end})
		}
		prev = end
	}
	return out
}

// parseAudioEncoding converts a string encoding name to the protobuf enum.
// Unknown names fall back to LINEAR16.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
