package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"SERVICE_PRINCIPAL", "PORT", "GRPC_PORT", "METRICS_ADDR", "SHUTDOWN_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
	"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ", "STT_INTERIM_RESULTS", "STT_AUDIO_ENCODING",
	"SESSION_MIN_PARTIAL_CHARS", "SESSION_AUDIO_BUFFER_FRAMES", "SESSION_RESULT_BUFFER", "RECORDING_MAX_BYTES",
	"DB_DRIVER", "DB_DSN", "DB_HOST", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_PORT",
	"REDIS_ADDR", "REDIS_URL", "KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
	"STORAGE_BUCKET", "UPLOAD_MAX_BYTES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range configEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Service.Principal != "svc-voice-room" {
		t.Errorf("expected default principal 'svc-voice-room', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "3000" {
		t.Errorf("expected default port '3000', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default gRPC port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Service.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected default shutdown timeout 10s, got %v", cfg.Service.ShutdownTimeout)
	}

	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "ko-KR" {
		t.Errorf("expected default language 'ko-KR', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.STT.InterimResults {
		t.Errorf("expected default interim results true")
	}
	if cfg.STT.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.STT.AudioEncoding)
	}

	if cfg.Session.MinPartialChars != 10 {
		t.Errorf("expected default min partial chars 10, got %d", cfg.Session.MinPartialChars)
	}
	if cfg.Session.AudioBufferFrames != 64 {
		t.Errorf("expected default audio buffer 64, got %d", cfg.Session.AudioBufferFrames)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("expected default driver 'mysql', got %s", cfg.Database.Driver)
	}
	want := "root:@tcp(localhost:3306)/chat_app?charset=utf8mb4&parseTime=True&loc=UTC"
	if cfg.Database.DSN != want {
		t.Errorf("expected default DSN %q, got %q", want, cfg.Database.DSN)
	}

	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled by default")
	}
	if cfg.Storage.MaxUploadBytes != 5*1024*1024 {
		t.Errorf("expected default upload cap 5MB, got %d", cfg.Storage.MaxUploadBytes)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("PORT", "8080")
	os.Setenv("STT_PROVIDER", "google")
	os.Setenv("STT_LANGUAGE_CODE", "en-US")
	os.Setenv("STT_SAMPLE_RATE_HZ", "8000")
	os.Setenv("STT_INTERIM_RESULTS", "false")
	os.Setenv("SESSION_MIN_PARTIAL_CHARS", "3")
	os.Setenv("SHUTDOWN_TIMEOUT", "30s")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	os.Setenv("LOG_LEVEL", "debug")
	defer clearEnv(t)

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected language 'en-US', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.InterimResults {
		t.Error("expected interim results false")
	}
	if cfg.Session.MinPartialChars != 3 {
		t.Errorf("expected min partial chars 3, got %d", cfg.Session.MinPartialChars)
	}
	if cfg.Service.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected shutdown timeout 30s, got %v", cfg.Service.ShutdownTimeout)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "k1:9092" || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("STT_INTERIM_RESULTS", "invalid")
	os.Setenv("SESSION_MIN_PARTIAL_CHARS", "many")
	os.Setenv("RECORDING_MAX_BYTES", "huge")
	os.Setenv("SHUTDOWN_TIMEOUT", "soon")
	defer clearEnv(t)

	cfg := Load()

	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.STT.InterimResults {
		t.Error("expected default interim results on invalid input")
	}
	if cfg.Session.MinPartialChars != 10 {
		t.Errorf("expected default min partial chars on invalid input, got %d", cfg.Session.MinPartialChars)
	}
	if cfg.Session.MaxRecordingBytes != 50*1024*1024 {
		t.Errorf("expected default recording cap on invalid input, got %d", cfg.Session.MaxRecordingBytes)
	}
	if cfg.Service.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected default shutdown timeout on invalid input, got %v", cfg.Service.ShutdownTimeout)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv(t)

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestLoad_DatabaseHostWithPort(t *testing.T) {
	clearEnv(t)
	os.Setenv("DB_HOST", "db.internal:3307")
	os.Setenv("DB_USER", "chat")
	os.Setenv("DB_PASSWORD", "secret")
	defer clearEnv(t)

	cfg := Load()

	want := "chat:secret@tcp(db.internal:3306)/chat_app?charset=utf8mb4&parseTime=True&loc=UTC"
	if cfg.Database.DSN != want {
		t.Errorf("expected DSN %q, got %q", want, cfg.Database.DSN)
	}
}

func TestLoad_RedisURLFallback(t *testing.T) {
	clearEnv(t)
	os.Setenv("REDIS_URL", "redis://cache:6379/0")
	defer clearEnv(t)

	cfg := Load()

	if cfg.Redis.Addr != "redis://cache:6379/0" {
		t.Errorf("expected REDIS_URL to be used, got %q", cfg.Redis.Addr)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
