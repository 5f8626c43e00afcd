package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	grpcapi "voice-room-service/internal/api/grpc"
	"voice-room-service/internal/api/ws"
	"voice-room-service/internal/app"
	"voice-room-service/internal/config"
	"voice-room-service/internal/events"
	apihttp "voice-room-service/internal/http"
	"voice-room-service/internal/hub"
	"voice-room-service/internal/observability"
	"voice-room-service/internal/observability/metrics"
	"voice-room-service/internal/service/chat"
	"voice-room-service/internal/service/session"
	"voice-room-service/internal/service/stt"
	"voice-room-service/internal/service/stt/google"
	"voice-room-service/internal/service/stt/mock"
	"voice-room-service/internal/service/transcript"
	"voice-room-service/internal/storage"
	"voice-room-service/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	application := app.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, application); err != nil {
		log.Error().Err(err).Msg("Voice room service failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.Application) error {
	cfg := application.Cfg
	m := metrics.DefaultMetrics

	metricsSrv := observability.NewServer(cfg.Service.MetricsAddr, prometheus.DefaultGatherer, application.Ready)
	metricsSrv.Start()

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	h := hub.New(m)
	if cfg.Redis.Addr != "" {
		rdb, err := hub.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()

		relay := hub.NewRedisRelay(rdb, cfg.Redis.Channel, cfg.Service.InstanceID)
		h.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx, h); err != nil {
				log.Error().Err(err).Msg("Redis relay stopped")
			}
		}()
	}

	var uploader *storage.GCSUploader
	if cfg.Storage.Bucket != "" {
		uploader, err = storage.NewGCSUploader(ctx, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL)
		if err != nil {
			return err
		}
		defer uploader.Close()
	}

	publisher := events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicPartial:  cfg.Kafka.TopicPartial,
		TopicFinal:    cfg.Kafka.TopicFinal,
		TopicMessages: cfg.Kafka.TopicMessages,
		Principal:     cfg.Kafka.Principal,
	}, m)
	defer publisher.Close()

	adapter, transcriber, closeBackend, err := newBackend(ctx, cfg, uploader)
	if err != nil {
		return err
	}
	defer closeBackend()

	chatOpts := []chat.Option{chat.WithPublisher(publisher), chat.WithMetrics(m)}
	if uploader != nil {
		chatOpts = append(chatOpts, chat.WithUploader(uploader, cfg.Storage.MaxUploadBytes))
	}
	chatSvc := chat.NewService(st, h, chatOpts...)

	// Sessions and batch jobs outlive ctx so in-flight results are
	// persisted while the server drains.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	emitter := transcript.NewEmitter(h, chatSvc, publisher, m)
	sessions := session.NewRegistry(base, adapter, emitter, sessionOptions(cfg, m))
	batch := transcript.NewBatchProcessor(transcriber, chatSvc, stt.BatchConfig{
		LanguageCode: cfg.STT.LanguageCode,
		SampleRateHz: cfg.STT.SampleRateHz,
		Encoding:     cfg.STT.AudioEncoding,
	}, m)

	wsHandler := ws.NewHandler(base, ws.Deps{
		Hub:      h,
		Sessions: sessions,
		Chat:     chatSvc,
		Recorder: transcript.NewRecorder(cfg.Session.MaxRecordingBytes),
		Batch:    batch,
		Metrics:  m,
	}, ws.Config{DefaultLanguage: cfg.STT.LanguageCode})

	router := apihttp.NewRouter(application, apihttp.Deps{
		Chat:           chatSvc,
		Batch:          batch,
		WS:             wsHandler,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		MaxAudioBytes:  cfg.Session.MaxRecordingBytes,
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpcapi.New(m)
	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	errc := make(chan error, 2)
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http serve: %w", err)
		}
	}()
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	if err := application.Start(); err != nil {
		return err
	}
	grpcSrv.SetServing(true)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	application.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Int("sessions", sessions.Count()).Msg("Sessions did not drain before timeout")
	}
	grpcSrv.GracefulStop()
	_ = metricsSrv.Shutdown(shutdownCtx)

	return serveErr
}

func sessionOptions(cfg *config.Configuration, m *metrics.Metrics) session.Options {
	opts := session.DefaultOptions()
	opts.Config = stt.StreamConfig{
		LanguageCode:   cfg.STT.LanguageCode,
		SampleRateHz:   cfg.STT.SampleRateHz,
		Encoding:       cfg.STT.AudioEncoding,
		InterimResults: cfg.STT.InterimResults,
	}
	opts.Policy = session.Policy{MinPartialChars: cfg.Session.MinPartialChars}
	if cfg.Session.AudioBufferFrames > 0 {
		opts.AudioBuffer = cfg.Session.AudioBufferFrames
	}
	if cfg.Session.ResultBufferSize > 0 {
		opts.ResultBuffer = cfg.Session.ResultBufferSize
	}
	opts.Metrics = m
	return opts
}

// newBackend selects the speech backend named by STT_PROVIDER.
func newBackend(ctx context.Context, cfg *config.Configuration, uploader *storage.GCSUploader) (stt.Adapter, stt.BatchTranscriber, func() error, error) {
	switch cfg.STT.Provider {
	case "google":
		var stager google.Stager
		if uploader != nil {
			stager = uploader
		}
		a, err := google.New(ctx, google.Config{
			LanguageCode:   cfg.STT.LanguageCode,
			SampleRateHz:   cfg.STT.SampleRateHz,
			InterimResults: cfg.STT.InterimResults,
			AudioEncoding:  cfg.STT.AudioEncoding,
		}, stager)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info().Str("provider", "google").Msg("Speech backend ready")
		return a, a, a.Close, nil
	case "mock", "":
		a := mock.New()
		log.Info().Str("provider", "mock").Msg("Speech backend ready")
		return a, a, func() error { return nil }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown STT provider %q", cfg.STT.Provider)
	}
}
