package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/swipekit/swipekit/internal/errors"
	"github.com/swipekit/swipekit/internal/httputil"
	"github.com/swipekit/swipekit/internal/lifecycle"
	"github.com/swipekit/swipekit/internal/model"
	"github.com/swipekit/swipekit/internal/repository"
)

const recentSessionLimit = 20

// Pinger reports backend liveness. Satisfied by *database.DB and the Redis
// client wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

type OpsHandler struct {
	accounts repository.AccountRepository
	status   repository.AccountStatusRepository
	sessions repository.SessionRepository
	importer *lifecycle.Importer
	db       Pinger
	cache    Pinger
	metrics  http.Handler
}

func NewOpsHandler(
	accounts repository.AccountRepository,
	status repository.AccountStatusRepository,
	sessions repository.SessionRepository,
	importer *lifecycle.Importer,
	db Pinger,
	cache Pinger,
	metrics http.Handler,
) *OpsHandler {
	return &OpsHandler{
		accounts: accounts,
		status:   status,
		sessions: sessions,
		importer: importer,
		db:       db,
		cache:    cache,
		metrics:  metrics,
	}
}

func (h *OpsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", h.metrics)

	r.Get("/api/stats", h.Stats)
	r.Get("/api/accounts", h.ListAccounts)
	r.Get("/api/accounts/{id}", h.GetAccount)
	r.Post("/api/accounts/import", h.ImportAccounts)

	return r
}

func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true
	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := h.cache.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *OpsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.accounts.CountByStatus(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to count accounts")
		httputil.WriteError(w, apperrors.Database("failed to count accounts", err))
		return
	}

	byStatus := map[string]int{}
	total := 0
	for state, n := range counts {
		byStatus[string(state)] = n
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": map[string]any{
			"total":    total,
			"byStatus": byStatus,
		},
	})
}

func (h *OpsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r)
	accounts, err := h.accounts.FindAll(r.Context(), page.Limit, page.Offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list accounts")
		httputil.WriteError(w, apperrors.Database("failed to list accounts", err))
		return
	}

	out := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		status, err := h.status.Find(r.Context(), account.ID)
		if err != nil {
			log.Warn().Err(err).Int64("account_id", account.ID).Msg("failed to load account status")
		}
		out = append(out, formatAccount(account, status))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": out,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

func (h *OpsHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("id", "must be an integer"))
		return
	}

	account, err := h.accounts.FindByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, apperrors.Database("failed to load account", err))
		return
	}
	if account == nil {
		httputil.WriteError(w, apperrors.NotFound("Account"))
		return
	}

	status, err := h.status.Find(r.Context(), id)
	if err != nil {
		log.Warn().Err(err).Int64("account_id", id).Msg("failed to load account status")
	}
	recent, err := h.sessions.FindRecent(r.Context(), id, recentSessionLimit)
	if err != nil {
		log.Warn().Err(err).Int64("account_id", id).Msg("failed to load recent sessions")
	}

	sessions := make([]map[string]any, 0, len(recent))
	for _, s := range recent {
		sessions = append(sessions, formatSession(s))
	}
	out := formatAccount(*account, status)
	out["recentSessions"] = sessions
	out["sessionsToday"] = h.sessionsToday(r, account)
	writeJSON(w, http.StatusOK, out)
}

// sessionsToday counts sessions started since the account-local midnight.
func (h *OpsHandler) sessionsToday(r *http.Request, account *model.Account) int {
	loc, err := time.LoadLocation(account.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := time.Now().In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	count, err := h.sessions.CountToday(r.Context(), account.ID, midnight)
	if err != nil {
		log.Warn().Err(err).Int64("account_id", account.ID).Msg("failed to count today's sessions")
		return 0
	}
	return count
}

// ImportAccounts accepts newline-separated credential lines as the request
// body and creates an account per valid line.
func (h *OpsHandler) ImportAccounts(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		httputil.WriteError(w, apperrors.Internal("import is not configured"))
		return
	}
	result, err := h.importer.Import(r.Context(), r.Body)
	if err != nil {
		httputil.WriteError(w, apperrors.Internal("import failed").WithCause(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": result.Imported,
		"failed":   result.Failed,
	})
}
