// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full runtime configuration of the service.
type Configuration struct {
	Service       ServiceConfig
	STT           STTConfig
	Session       SessionConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds process identity and listener settings.
type ServiceConfig struct {
	Name        string
	Principal   string
	InstanceID  string
	HTTPPort    string
	GRPCPort    string
	MetricsAddr string

	ShutdownTimeout time.Duration
}

// STTConfig selects and tunes the speech recognition backend.
type STTConfig struct {
	Provider       string // mock, google
	LanguageCode   string
	SampleRateHz   int
	AudioEncoding  string
	InterimResults bool
}

// SessionConfig tunes live transcription sessions and file recordings.
type SessionConfig struct {
	MinPartialChars   int // partials at or below this length are not forwarded
	AudioBufferFrames int
	ResultBufferSize  int
	MaxRecordingBytes int64
}

// DatabaseConfig selects the message store.
type DatabaseConfig struct {
	Driver string // mysql, postgres, memory
	DSN    string
}

// RedisConfig enables cross-instance room broadcast.
type RedisConfig struct {
	Addr    string
	Channel string
}

// KafkaConfig configures transcript and message event publishing.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicPartial  string
	TopicFinal    string
	TopicMessages string
	Principal     string
}

// StorageConfig configures object storage for uploads.
type StorageConfig struct {
	Bucket         string
	PublicBaseURL  string
	MaxUploadBytes int64
}

// ObservabilityConfig configures logging output.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, falling back to defaults
// for unset or unparsable values.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-room")

	return &Configuration{
		Service: ServiceConfig{
			Name:        envOrDefault("SERVICE_NAME", "voice-room-service"),
			Principal:   principal,
			InstanceID:  envOrDefault("INSTANCE_ID", hostnameOr("voice-room-local")),
			HTTPPort:    envOrDefault("PORT", "3000"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),

			ShutdownTimeout: envOrDefaultDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "ko-KR"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
		},
		Session: SessionConfig{
			MinPartialChars:   envOrDefaultInt("SESSION_MIN_PARTIAL_CHARS", 10),
			AudioBufferFrames: envOrDefaultInt("SESSION_AUDIO_BUFFER_FRAMES", 64),
			ResultBufferSize:  envOrDefaultInt("SESSION_RESULT_BUFFER", 32),
			MaxRecordingBytes: envOrDefaultInt64("RECORDING_MAX_BYTES", 50*1024*1024),
		},
		Database: DatabaseConfig{
			Driver: envOrDefault("DB_DRIVER", "mysql"),
			DSN:    envOrDefault("DB_DSN", mysqlDSNFromParts()),
		},
		Redis: RedisConfig{
			Addr:    firstEnv("REDIS_ADDR", "REDIS_URL"),
			Channel: envOrDefault("REDIS_BROADCAST_CHANNEL", "voice-room:broadcast"),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicPartial:  envOrDefault("KAFKA_TOPIC_PARTIAL", "room.transcript.partial"),
			TopicFinal:    envOrDefault("KAFKA_TOPIC_FINAL", "room.transcript.final"),
			TopicMessages: envOrDefault("KAFKA_TOPIC_MESSAGES", "room.message.created"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Storage: StorageConfig{
			Bucket:         os.Getenv("STORAGE_BUCKET"),
			PublicBaseURL:  envOrDefault("STORAGE_PUBLIC_BASE_URL", "https://storage.googleapis.com"),
			MaxUploadBytes: envOrDefaultInt64("UPLOAD_MAX_BYTES", 5*1024*1024),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

// mysqlDSNFromParts builds a DSN from the DB_HOST/DB_USER/... variables.
func mysqlDSNFromParts() string {
	host := envOrDefault("DB_HOST", "localhost")
	// DB_HOST is sometimes given as host:port
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	user := envOrDefault("DB_USER", "root")
	password := os.Getenv("DB_PASSWORD")
	name := envOrDefault("DB_NAME", "chat_app")
	port := envOrDefault("DB_PORT", "3306")

	return user + ":" + password + "@tcp(" + host + ":" + port + ")/" + name +
		"?charset=utf8mb4&parseTime=True&loc=UTC"
}

func hostnameOr(def string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
