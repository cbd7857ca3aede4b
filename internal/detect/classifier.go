package detect

import (
	"bytes"
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/swipekit/swipekit/internal/wire"
)

// Action tells the caller what to do with the account or session after a
// call completed.
type Action string

const (
	ActionNone             Action = "none"
	ActionMarkBanned       Action = "mark_banned"
	ActionMarkDead         Action = "mark_dead"
	ActionRetryOnce        Action = "retry_once"
	ActionSleepThenRetry   Action = "sleep_then_retry"
	ActionRetryWithBackoff Action = "retry_with_backoff"
	ActionAbortSession     Action = "abort_session"
)

// MaxRetries bounds backoff retries for server and transport failures.
const MaxRetries = 3

// DefaultRateLimitSleep applies when the remote rate-limits without a
// Retry-After hint.
const DefaultRateLimitSleep = 60 * time.Second

type Indicator struct {
	Name     string
	Severity float64
}

// Assessment is the classifier verdict for one completed call.
type Assessment struct {
	Action        Action
	BanScoreDelta float64
	Indicators    []Indicator
	Sleep         time.Duration
	CountsAsError bool
}

// Body phrases that indicate the account is flagged or throttled. Explicit
// disable phrases carry full weight; the rest are soft signals.
var banPhrases = []struct {
	phrase   string
	severity float64
}{
	{"appeal_ban", 1.0},
	{"account_disabled", 1.0},
	{"temporarily_unavailable", 0.7},
}

var rateLimitPhrases = []string{"rate_limited_until", "too_many_requests"}

const (
	rateLimitSeverity = 0.5
	emptyBodySeverity = 0.2
)

// TokenRefresher is the slice of the wire client the classifier needs for
// the single refresh attempt on an expired token.
type TokenRefresher interface {
	RefreshLogin(ctx context.Context) (*wire.LoginResult, error)
}

type Classifier struct {
	sensitivity          float64
	maxConsecutiveErrors int
	log                  zerolog.Logger
}

func NewClassifier(sensitivity float64, maxConsecutiveErrors int, logger zerolog.Logger) *Classifier {
	return &Classifier{
		sensitivity:          sensitivity,
		maxConsecutiveErrors: maxConsecutiveErrors,
		log:                  logger,
	}
}

// Classify maps a call result to an action. consecutiveFailures is the
// session-wide run of failed calls before this one. Never blocks; rate
// limit sleeps are returned as a hint for the caller's timing engine.
func (c *Classifier) Classify(ctx context.Context, result *wire.Result, refresher TokenRefresher, consecutiveFailures int) Assessment {
	if result == nil {
		result = &wire.Result{Status: wire.StatusTransportFailure}
	}

	switch result.Status {
	case wire.StatusForbidden:
		return Assessment{
			Action:        ActionMarkBanned,
			BanScoreDelta: 1.0,
			Indicators:    []Indicator{{Name: "http_403", Severity: 1.0}},
			CountsAsError: true,
		}

	case wire.StatusAuthExpired:
		if refresher != nil {
			login, err := refresher.RefreshLogin(ctx)
			if err == nil && login != nil && login.Success {
				c.log.Info().Msg("token refreshed after 401")
				return Assessment{Action: ActionRetryOnce, CountsAsError: true}
			}
		}
		return Assessment{Action: ActionMarkDead, CountsAsError: true}

	case wire.StatusRateLimited:
		sleep := result.RetryAfter
		if sleep <= 0 {
			sleep = DefaultRateLimitSleep
		}
		return Assessment{Action: ActionSleepThenRetry, Sleep: sleep}

	case wire.StatusServerError, wire.StatusTransportFailure:
		if consecutiveFailures+1 >= c.maxConsecutiveErrors {
			return Assessment{Action: ActionAbortSession, CountsAsError: true}
		}
		return Assessment{Action: ActionRetryWithBackoff, CountsAsError: true}

	case wire.StatusClientError:
		return Assessment{Action: ActionNone, CountsAsError: true}
	}

	// Success path: the body can still carry ban signals.
	score, indicators := ScanBody(result.Body)
	assessment := Assessment{BanScoreDelta: score, Indicators: indicators}
	if score >= c.sensitivity {
		c.log.Warn().Float64("score", score).Interface("indicators", indicators).
			Msg("ban indicators above sensitivity threshold")
		assessment.Action = ActionMarkBanned
	} else {
		assessment.Action = ActionNone
	}
	return assessment
}

// ScanBody scans a successful response body for ban phrases. Scoring is
// purely additive across independent indicators; several weak signals can
// trip the threshold as fast as one strong one.
func ScanBody(body []byte) (float64, []Indicator) {
	var score float64
	var indicators []Indicator

	lower := bytes.ToLower(body)
	for _, p := range banPhrases {
		if bytes.Contains(lower, []byte(p.phrase)) {
			score += p.severity
			indicators = append(indicators, Indicator{Name: p.phrase, Severity: p.severity})
		}
	}

	for _, phrase := range rateLimitPhrases {
		if bytes.Contains(lower, []byte(phrase)) {
			score += rateLimitSeverity
			indicators = append(indicators, Indicator{Name: "rate_limiting", Severity: rateLimitSeverity})
			break
		}
	}

	if isEmptyBody(lower) {
		score += emptyBodySeverity
		indicators = append(indicators, Indicator{Name: "empty_response", Severity: emptyBodySeverity})
	}

	return score, indicators
}

func isEmptyBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("[]"))
}

// Backoff returns the exponential backoff delay before retry number attempt
// (zero-based): 1s, 2s, 4s.
func Backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}
