package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventAccountImport     EventType = "account_import"
	EventAccountBanned     EventType = "account_banned"
	EventAccountDead       EventType = "account_dead"
	EventAccountReactivate EventType = "account_reactivate"
	EventSessionStart      EventType = "session_start"
	EventSessionFinalize   EventType = "session_finalize"
	EventSessionAbort      EventType = "session_abort"
	EventBanIndicator      EventType = "ban_indicator"
	EventTokenRefresh      EventType = "token_refresh"
)

type Event struct {
	Type      EventType              `json:"type"`
	AccountID int64                  `json:"accountId,omitempty"`
	SessionID int64                  `json:"sessionId,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

var (
	notifierMu sync.RWMutex
	notifier   func(Event)
)

// SetNotifier installs a sink that receives every audit event in addition to
// the log. Wired once at startup before any sessions run.
func SetNotifier(fn func(Event)) {
	notifierMu.Lock()
	notifier = fn
	notifierMu.Unlock()
}

// Log emits one structured lifecycle audit event. Kept on the global logger
// so deep call sites do not need a logger threaded through.
func Log(ctx context.Context, event Event) {
	notifierMu.RLock()
	fn := notifier
	notifierMu.RUnlock()
	if fn != nil {
		fn(event)
	}

	logger := log.With().
		Str("audit", "lifecycle").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.AccountID != 0 {
		logger = logger.With().Int64("account_id", event.AccountID).Logger()
	}
	if event.SessionID != 0 {
		logger = logger.With().Int64("session_id", event.SessionID).Logger()
	}
	if event.Reason != "" {
		logger = logger.With().Str("reason", event.Reason).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("lifecycle audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case float64:
		return e.Float64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
