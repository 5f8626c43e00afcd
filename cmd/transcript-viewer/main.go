// Command transcript-viewer tails the transcript and message topics and
// relays them to browsers connected on /ws.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-room-service/internal/models"
)

// viewerEvent is the flattened form pushed to browsers.
type viewerEvent struct {
	EventType  string  `json:"eventType"`
	RoomID     string  `json:"roomId,omitempty"`
	UserID     string  `json:"userId,omitempty"`
	SessionID  string  `json:"sessionId,omitempty"`
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// decode maps a record from any of the three topics onto a viewerEvent.
func decode(value []byte) (viewerEvent, error) {
	var head struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(value, &head); err != nil {
		return viewerEvent{}, err
	}

	switch head.EventType {
	case models.EventTranscriptPartial:
		var e models.TranscriptPartial
		if err := json.Unmarshal(value, &e); err != nil {
			return viewerEvent{}, err
		}
		return viewerEvent{
			EventType: e.EventType,
			RoomID:    e.RoomID,
			SessionID: e.SessionID,
			Text:      e.Text,
			Timestamp: e.Timestamp,
		}, nil
	case models.EventTranscriptFinal:
		var e models.TranscriptFinal
		if err := json.Unmarshal(value, &e); err != nil {
			return viewerEvent{}, err
		}
		return viewerEvent{
			EventType:  e.EventType,
			RoomID:     e.RoomID,
			UserID:     e.UserID,
			SessionID:  e.SessionID,
			Text:       e.Text,
			Final:      true,
			Confidence: e.Confidence,
			Timestamp:  e.Timestamp,
		}, nil
	case models.EventMessageCreated:
		var e models.MessageCreated
		if err := json.Unmarshal(value, &e); err != nil {
			return viewerEvent{}, err
		}
		return viewerEvent{
			EventType: e.EventType,
			RoomID:    e.Message.RoomID,
			UserID:    e.Message.UserID,
			Text:      e.Message.Body,
			Final:     true,
			Timestamp: e.Timestamp,
		}, nil
	default:
		return viewerEvent{}, errors.New("unknown event type " + head.EventType)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// fanout delivers events to every connected browser. Slow browsers miss
// events rather than stalling the consumers.
type fanout struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan viewerEvent
}

func newFanout() *fanout {
	return &fanout{clients: make(map[*websocket.Conn]chan viewerEvent)}
}

func (f *fanout) add(conn *websocket.Conn) <-chan viewerEvent {
	ch := make(chan viewerEvent, 64)
	f.mu.Lock()
	f.clients[conn] = ch
	n := len(f.clients)
	f.mu.Unlock()
	log.Info().Int("clients", n).Msg("Viewer connected")
	return ch
}

func (f *fanout) remove(conn *websocket.Conn) {
	f.mu.Lock()
	if ch, ok := f.clients[conn]; ok {
		delete(f.clients, conn)
		close(ch)
	}
	n := len(f.clients)
	f.mu.Unlock()
	log.Info().Int("clients", n).Msg("Viewer disconnected")
}

func (f *fanout) publish(ev viewerEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	// local tool
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsHandler(f *fanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		events := f.add(conn)

		go func() {
			defer f.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			defer conn.Close()
			for ev := range events {
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			}
		}()
	}
}

func consume(ctx context.Context, f *fanout, brokers []string, topic string, since time.Duration) {
	logger := log.With().Str("topic", topic).Logger()

	// partition reader without a consumer group so every viewer sees everything
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		logger.Warn().Err(err).Msg("Could not seek, reading from the start")
	}
	logger.Info().Dur("since", since).Msg("Consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("Kafka read failed")
			time.Sleep(time.Second)
			continue
		}

		ev, err := decode(msg.Value)
		if err != nil {
			logger.Warn().Err(err).Msg("Skipping undecodable record")
			continue
		}

		logger.Info().
			Str("eventType", ev.EventType).
			Str("roomId", ev.RoomID).
			Str("key", string(msg.Key)).
			Msg(truncate(ev.Text, 60))
		f.publish(ev)
	}
}

func main() {
	addr := flag.String("addr", ":8081", "HTTP listen address for browser viewers")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicPartial := flag.String("topic-partial", "room.transcript.partial", "Partial transcript topic")
	topicFinal := flag.String("topic-final", "room.transcript.final", "Final transcript topic")
	topicMessages := flag.String("topic-messages", "room.message.created", "Chat message topic")
	since := flag.Duration("since", time.Hour, "How far back to start reading")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := newFanout()
	brokerList := strings.Split(*brokers, ",")
	var wg sync.WaitGroup
	for _, topic := range []string{*topicPartial, *topicFinal, *topicMessages} {
		if topic == "" {
			continue
		}
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			consume(ctx, f, brokerList, topic, *since)
		}(topic)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(f))
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", *addr).Strs("brokers", brokerList).Msg("Transcript viewer listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
}
