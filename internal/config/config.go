package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Hex-encoded 32-byte key sealing account tokens at rest. Empty
	// stores tokens in plaintext.
	TokenKey string `env:"TOKEN_ENCRYPTION_KEY" envDefault:""`

	// Session shape
	SessionDurationMinSecs int    `env:"SESSION_DURATION_MIN_SECS" envDefault:"600"`
	SessionDurationMaxSecs int    `env:"SESSION_DURATION_MAX_SECS" envDefault:"1800"`
	BetweenSessionMinSecs  int    `env:"BETWEEN_SESSION_MIN_SECS" envDefault:"900"`
	SwipeHours             string `env:"SWIPE_HOURS" envDefault:"9-23"`

	// Like budgets
	MaxLikesPerSession int `env:"MAX_LIKES_PER_SESSION" envDefault:"30"`
	MaxLikesPerDay     int `env:"MAX_LIKES_PER_DAY" envDefault:"80"`

	// Queue processing. LikePercentage is the share of fresh queue profiles
	// that get a like; the rest are passed.
	QueuePageSize          int  `env:"QUEUE_PAGE_SIZE" envDefault:"10"`
	QueueProcessAll        bool `env:"QUEUE_PROCESS_ALL" envDefault:"true"`
	LikePercentage         int  `env:"LIKE_PERCENTAGE" envDefault:"100"`
	DelayAfterPageFetchMS  int  `env:"DELAY_AFTER_PAGE_FETCH_MS" envDefault:"1500"`
	DelayBetweenLikesMinMS int  `env:"DELAY_BETWEEN_LIKES_MIN_MS" envDefault:"2000"`
	DelayBetweenLikesMaxMS int  `env:"DELAY_BETWEEN_LIKES_MAX_MS" envDefault:"5000"`

	// Profile updates
	UpdateBio  bool   `env:"UPDATE_BIO" envDefault:"false"`
	BioText    string `env:"BIO_TEXT" envDefault:""`
	AddPrompt  bool   `env:"ADD_PROMPT" envDefault:"false"`
	PromptID   string `env:"PROMPT_ID" envDefault:""`
	PromptText string `env:"PROMPT_TEXT" envDefault:""`

	// Identity pools for imported accounts. PROFILE_NAMES is comma
	// separated; CITY_POOL entries are semicolon separated, each
	// "Name, Country,lat,lon".
	ProfileNames []string `env:"PROFILE_NAMES" envSeparator:","`
	CityPool     []string `env:"CITY_POOL" envSeparator:";"`

	// Risk controls
	TimingVariance       float64 `env:"TIMING_VARIANCE" envDefault:"0.3"`
	BanSensitivity       float64 `env:"BAN_SENSITIVITY" envDefault:"0.8"`
	MaxConsecutiveErrors int     `env:"MAX_CONSECUTIVE_ERRORS" envDefault:"5"`
	MaxErrorRate         float64 `env:"MAX_ERROR_RATE" envDefault:"0.3"`

	LogRequestTimings bool `env:"LOG_REQUEST_TIMINGS" envDefault:"false"`

	// Cycle pacing for the runner
	CycleIntervalSecs int `env:"CYCLE_INTERVAL_SECS" envDefault:"60"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) SessionDurationMin() time.Duration {
	return time.Duration(c.SessionDurationMinSecs) * time.Second
}

func (c *Config) SessionDurationMax() time.Duration {
	return time.Duration(c.SessionDurationMaxSecs) * time.Second
}

func (c *Config) BetweenSessionMin() time.Duration {
	return time.Duration(c.BetweenSessionMinSecs) * time.Second
}

func (c *Config) DelayAfterPageFetch() time.Duration {
	return time.Duration(c.DelayAfterPageFetchMS) * time.Millisecond
}

func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalSecs) * time.Second
}

// SwipeWindow parses SWIPE_HOURS ("9-23", or "22-2" for a window that
// wraps past midnight) into start and end hours.
func (c *Config) SwipeWindow() (start, end int, err error) {
	parts := strings.SplitN(c.SwipeHours, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("SWIPE_HOURS must look like \"9-23\", got %q", c.SwipeHours)
	}
	start, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("SWIPE_HOURS start: %w", err)
	}
	end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("SWIPE_HOURS end: %w", err)
	}
	if start < 0 || start > 23 || end < 0 || end > 24 {
		return 0, 0, fmt.Errorf("SWIPE_HOURS out of range: %q", c.SwipeHours)
	}
	return start, end, nil
}

func (c *Config) Validate() error {
	if c.SessionDurationMinSecs <= 0 || c.SessionDurationMaxSecs < c.SessionDurationMinSecs {
		return fmt.Errorf("session duration range invalid: min=%d max=%d",
			c.SessionDurationMinSecs, c.SessionDurationMaxSecs)
	}
	if c.MaxLikesPerSession <= 0 || c.MaxLikesPerDay <= 0 {
		return fmt.Errorf("like budgets must be positive: session=%d day=%d",
			c.MaxLikesPerSession, c.MaxLikesPerDay)
	}
	if c.TimingVariance < 0 || c.TimingVariance >= 1 {
		return fmt.Errorf("TIMING_VARIANCE must be in [0, 1), got %v", c.TimingVariance)
	}
	if c.BanSensitivity <= 0 || c.BanSensitivity > 1 {
		return fmt.Errorf("BAN_SENSITIVITY must be in (0, 1], got %v", c.BanSensitivity)
	}
	if c.LikePercentage < 1 || c.LikePercentage > 100 {
		return fmt.Errorf("LIKE_PERCENTAGE must be in [1, 100], got %d", c.LikePercentage)
	}
	if c.DelayBetweenLikesMaxMS < c.DelayBetweenLikesMinMS {
		return fmt.Errorf("like delay range invalid: min=%d max=%d",
			c.DelayBetweenLikesMinMS, c.DelayBetweenLikesMaxMS)
	}
	if c.UpdateBio && c.BioText == "" {
		return fmt.Errorf("UPDATE_BIO is set but BIO_TEXT is empty")
	}
	if c.AddPrompt && (c.PromptID == "" || c.PromptText == "") {
		return fmt.Errorf("ADD_PROMPT is set but PROMPT_ID or PROMPT_TEXT is empty")
	}
	if _, _, err := c.SwipeWindow(); err != nil {
		return err
	}
	if c.TokenKey != "" && len(c.TokenKey) != 64 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be 64 hex chars, got %d", len(c.TokenKey))
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
