// Package app holds process-wide state shared by the transports.
package app

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voice-room-service/internal/config"
	"voice-room-service/internal/observability/logging"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	ready atomic.Bool
}

// New initialises logging from cfg and returns the application.
func New(cfg *config.Configuration) *Application {
	logging.Init(logging.Config{
		Level:   cfg.Observability.LogLevel,
		Format:  cfg.Observability.LogFormat,
		Service: cfg.Service.Name,
	})

	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}
	a.Logger.Info().
		Str("instanceId", cfg.Service.InstanceID).
		Str("sttProvider", cfg.STT.Provider).
		Str("dbDriver", cfg.Database.Driver).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Voice room service application created")
	return a
}

// Start marks the service ready to take traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Voice room service started")
	return nil
}

// Ready reports whether the service accepts traffic.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown marks the service not ready so probes fail while it drains.
func (a *Application) Shutdown() {
	a.ready.Store(false)
	a.Logger.Info().
		Dur("uptime", time.Since(a.StartupTime)).
		Msg("Voice room service shutting down")
}
