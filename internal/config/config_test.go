package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                   8080,
		DatabaseURL:            "postgres://localhost/test",
		RedisURL:               "redis://localhost:6379",
		SessionDurationMinSecs: 600,
		SessionDurationMaxSecs: 1800,
		BetweenSessionMinSecs:  900,
		SwipeHours:             "9-23",
		MaxLikesPerSession:     30,
		MaxLikesPerDay:         80,
		QueuePageSize:          10,
		LikePercentage:         100,
		DelayBetweenLikesMinMS: 2000,
		DelayBetweenLikesMaxMS: 5000,
		TimingVariance:         0.3,
		BanSensitivity:         0.8,
		MaxConsecutiveErrors:   5,
	}
}

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("duration helpers convert seconds", func(t *testing.T) {
		cfg := validConfig()
		assert.Equal(t, 10*time.Minute, cfg.SessionDurationMin())
		assert.Equal(t, 30*time.Minute, cfg.SessionDurationMax())
		assert.Equal(t, 15*time.Minute, cfg.BetweenSessionMin())
	})
}

func TestSwipeWindow(t *testing.T) {
	t.Run("parses plain window", func(t *testing.T) {
		cfg := &Config{SwipeHours: "9-23"}
		start, end, err := cfg.SwipeWindow()
		require.NoError(t, err)
		assert.Equal(t, 9, start)
		assert.Equal(t, 23, end)
	})

	t.Run("parses midnight-wrapping window", func(t *testing.T) {
		cfg := &Config{SwipeHours: "22-2"}
		start, end, err := cfg.SwipeWindow()
		require.NoError(t, err)
		assert.Equal(t, 22, start)
		assert.Equal(t, 2, end)
	})

	t.Run("rejects malformed value", func(t *testing.T) {
		cfg := &Config{SwipeHours: "all day"}
		_, _, err := cfg.SwipeWindow()
		assert.Error(t, err)
	})

	t.Run("rejects out of range hours", func(t *testing.T) {
		cfg := &Config{SwipeHours: "9-25"}
		_, _, err := cfg.SwipeWindow()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts sane config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("rejects inverted session duration range", func(t *testing.T) {
		cfg := validConfig()
		cfg.SessionDurationMaxSecs = 300
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects variance of 1 or more", func(t *testing.T) {
		cfg := validConfig()
		cfg.TimingVariance = 1.0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects bio update without text", func(t *testing.T) {
		cfg := validConfig()
		cfg.UpdateBio = true
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects prompt update without id", func(t *testing.T) {
		cfg := validConfig()
		cfg.AddPrompt = true
		cfg.PromptText = "something"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects like percentage outside 1-100", func(t *testing.T) {
		cfg := validConfig()
		cfg.LikePercentage = 0
		assert.Error(t, cfg.Validate())
		cfg.LikePercentage = 101
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":         os.Getenv("PORT"),
		"DATABASE_URL": os.Getenv("DATABASE_URL"),
		"REDIS_URL":    os.Getenv("REDIS_URL"),
		"LOG_LEVEL":    os.Getenv("LOG_LEVEL"),
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 80, cfg.MaxLikesPerDay)
		assert.Equal(t, 0.3, cfg.TimingVariance)
		assert.Equal(t, 100, cfg.LikePercentage)
		assert.False(t, cfg.LogRequestTimings, "timing capture is opt-in")
	})

	t.Run("fails when DATABASE_URL missing", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})
}
