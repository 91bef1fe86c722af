package config

import (
	"fmt"
	"time"
	// Embed tzdata for environments without zoneinfo.
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	// LLM boundary
	LLMAPIKey       string        `env:"LLM_API_KEY"`
	LLMModel        string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	RateLimitRPS    int           `env:"RATE_LIMIT_RPS" envDefault:"1"`
	ClassifyTimeout time.Duration `env:"CLASSIFY_TIMEOUT" envDefault:"30s"`

	// Polling pipeline
	MonitoringEnabled    bool          `env:"MONITORING_ENABLED" envDefault:"true"`
	PollIntervalHours    int           `env:"POLL_INTERVAL_HOURS" envDefault:"1"`
	ConfidenceThreshold  float32       `env:"CONFIDENCE_THRESHOLD" envDefault:"0.7"`
	MinMessageLength     int           `env:"MIN_MESSAGE_LENGTH" envDefault:"10"`
	FetchLimit           int           `env:"FETCH_LIMIT" envDefault:"100"`
	DailyItemCap         int           `env:"DAILY_ITEM_CAP" envDefault:"20"`
	ThreadContextMax     int           `env:"THREAD_CONTEXT_MAX_CHARS" envDefault:"200"`
	InitialLookbackHours int           `env:"INITIAL_LOOKBACK_HOURS" envDefault:"24"`
	CRMTimeout           time.Duration `env:"CRM_TIMEOUT" envDefault:"15s"`

	// Account matching
	MatchThreshold float64 `env:"MATCH_THRESHOLD" envDefault:"0.7"`

	// Chat platform (Slack-compatible Web API)
	ChatAPIBaseURL string `env:"CHAT_API_BASE_URL" envDefault:"https://slack.com/api"`
	ChatBotToken   string `env:"CHAT_BOT_TOKEN"`

	// CRM
	CRMBaseURL  string `env:"CRM_BASE_URL"`
	CRMAPIToken string `env:"CRM_API_TOKEN"`

	// Digest
	DigestTime          string `env:"DIGEST_TIME" envDefault:"08:00"`
	Timezone            string `env:"TIMEZONE" envDefault:"UTC"`
	DigestChannelID     string `env:"DIGEST_CHANNEL_ID"`
	MaxTopicsPerAccount int    `env:"MAX_TOPICS_PER_ACCOUNT" envDefault:"5"`
	MaxSignalsPerTopic  int    `env:"MAX_SIGNALS_PER_TOPIC" envDefault:"3"`

	// HTTP surfaces
	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`
	AdminPort  int `env:"ADMIN_PORT" envDefault:"8081"`
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Location resolves the configured timezone. A single zone governs both the
// digest schedule and the calendar-day boundary of the daily item cap.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	return loc, nil
}
