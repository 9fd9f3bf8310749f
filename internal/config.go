package internal

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=50"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=100ms"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=8192"`
	RateLimitBurst       int           `env:"RATE_LIMIT_BURST,default=10"`
	RateLimitInterval    time.Duration `env:"RATE_LIMIT_INTERVAL,default=1s"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=*"`
	StrictUsers          bool          `env:"STRICT_USERS,default=false"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	DebugPort            int           `env:"DEBUG_PORT,default=0"`
}

// Validate checks the rules that struct tags cannot express.
func (c Config) Validate() error {
	if c.BadgerFilepath == "" {
		return fmt.Errorf("%w: BADGER_FILEPATH is empty", errors.ErrInvalidConfig)
	}
	positives := map[string]int{
		"PORT":                   c.Port,
		"HISTORY_LIMIT":          c.HistoryLimit,
		"CONNECTION_BUFFER_SIZE": c.ConnectionBufferSize,
		"MAX_CONTENT_LENGTH":     c.MaxContentLength,
		"MAX_FRAME_SIZE":         int(c.MaxFrameSize),
		"RATE_LIMIT_BURST":       c.RateLimitBurst,
	}
	for name, value := range positives {
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", errors.ErrInvalidConfig, name, value)
		}
	}
	durations := map[string]time.Duration{
		"SINK_TIMEOUT":        c.SinkTimeout,
		"RATE_LIMIT_INTERVAL": c.RateLimitInterval,
		"RESTART_INTERVAL":    c.RestartInterval,
		"SHUTDOWN_TIMEOUT":    c.ShutdownTimeout,
	}
	for name, value := range durations {
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", errors.ErrInvalidConfig, name, value)
		}
	}
	if c.MetricInterval < 0 {
		return fmt.Errorf("%w: METRIC_INTERVAL must not be negative, 0 disables the stats worker", errors.ErrInvalidConfig)
	}
	if c.DebugPort < 0 {
		return fmt.Errorf("%w: DEBUG_PORT must not be negative", errors.ErrInvalidConfig)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

// Origins returns the allow-list of websocket origins. An empty list allows every origin.
func (c Config) Origins() []string {
	origins := splitList(c.AllowedOrigins)
	if lo.Contains(origins, "*") {
		return nil
	}
	return origins
}

func (c Config) CensoredWordList() []string {
	return splitList(c.CensoredWords)
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"%w: CHARACTER_REPLACEMENT must be a single character, got %q",
			errors.ErrInvalidConfig, str,
		)
	}
	return r[0], nil
}

func splitList(raw string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}
