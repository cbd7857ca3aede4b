package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts for the ops endpoint
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Session lock TTL in Redis. Slightly over the maximum session duration so
// a crashed worker's lock always expires.
const SessionLockTTL = 35 * time.Minute

// Daily like counter keys expire after two days; the key embeds the local
// date so stale counters are never read, the TTL just bounds memory.
const DailyCounterTTL = 48 * time.Hour

// Error rate gating only applies once an account has a meaningful sample.
const MinSessionsForErrorRate = 5

// Hard cap on session starts per account per window. A backstop over the
// normal cooldown so corrupted scheduling state cannot hammer an account.
const (
	SessionStartLimit  = 4
	SessionStartWindow = time.Hour
)
