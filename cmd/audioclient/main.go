// Command audioclient streams a PCM WAV file to a running voice room
// service over its realtime websocket and prints transcription results.
package main

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voice-room-service/internal/hub"
	"voice-room-service/internal/models"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// 100ms of 16kHz 16-bit mono
const chunkSize = 3200
const chunkInterval = 100 * time.Millisecond

type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

func readWAVHeader(r io.Reader) (wavFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return wavFormat{}, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, errors.New("not a WAV file")
	}
	f := wavFormat{
		AudioFormat:   binary.LittleEndian.Uint16(header[20:22]),
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if f.AudioFormat != 1 {
		return f, errors.New("only PCM WAV files are supported")
	}
	return f, nil
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16-bit mono PCM)")
	serverURL := flag.String("server", "ws://localhost:3000/ws", "Realtime websocket URL")
	userID := flag.String("user", "audioclient", "User ID to announce")
	roomID := flag.String("room", "", "Room to join; transcripts are persisted there")
	language := flag.String("lang", "ko-KR", "Language code")
	drain := flag.Duration("drain", 3*time.Second, "How long to wait for trailing results after stopping")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audio file")
	}
	defer f.Close()

	format, err := readWAVHeader(f)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid audio file")
	}
	log.Info().
		Uint16("channels", format.Channels).
		Uint32("sampleRate", format.SampleRate).
		Uint16("bitsPerSample", format.BitsPerSample).
		Msg("WAV file loaded")

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverURL).Msg("Failed to connect")
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		readResults(conn)
	}()

	send := func(event string, data any) {
		if err := conn.WriteJSON(hub.Frame{Event: event, Data: data}); err != nil {
			log.Fatal().Err(err).Str("event", event).Msg("Failed to send event")
		}
	}

	send(models.EventSetUser, *userID)
	if *roomID != "" {
		send(models.EventJoinRoom, *roomID)
	}
	send(models.EventStartTranscribe, map[string]string{"languageCode": *language})

	buf := make([]byte, chunkSize)
	var total int64
	var chunks int
	start := time.Now()
	for {
		n, err := f.Read(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read audio")
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); err != nil {
			log.Fatal().Err(err).Msg("Failed to send audio")
		}
		chunks++
		total += int64(n)
		if chunks%10 == 0 {
			log.Debug().Int("chunks", chunks).Int64("bytes", total).Msg("Streaming")
		}
		time.Sleep(chunkInterval)
	}
	log.Info().
		Int("chunks", chunks).
		Int64("bytes", total).
		Dur("elapsed", time.Since(start)).
		Msg("Finished streaming, stopping session")

	send(models.EventStopTranscribe, nil)

	// trailing finals arrive after the stop acknowledgement
	select {
	case <-done:
	case <-time.After(*drain):
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readResults logs server events until the connection closes.
func readResults(conn *websocket.Conn) {
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("Connection closed")
			}
			return
		}

		switch frame.Event {
		case models.EventTranscribeResult:
			var r models.TranscribeResult
			if err := json.Unmarshal(frame.Data, &r); err != nil {
				log.Warn().Err(err).Msg("Bad transcribe-result payload")
				continue
			}
			ev := log.Info()
			if r.IsPartial {
				ev = log.Debug()
			}
			ev.Bool("partial", r.IsPartial).Float64("confidence", r.Confidence).Msg(r.Transcript)
		case models.EventTranscribeStopped:
			log.Info().RawJSON("data", frame.Data).Msg("Transcription stopped")
		case models.EventTranscribeError, models.EventError:
			log.Error().RawJSON("data", frame.Data).Msg("Server reported an error")
		default:
			log.Debug().Str("event", frame.Event).RawJSON("data", frame.Data).Msg("Event")
		}
	}
}
