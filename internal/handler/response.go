package handler

import (
	"net/http"
	"time"

	"github.com/swipekit/swipekit/internal/httputil"
	"github.com/swipekit/swipekit/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func formatAccount(account model.Account, status *model.AccountStatus) map[string]any {
	out := map[string]any{
		"id":            account.ID,
		"status":        account.Status,
		"timezone":      account.Timezone,
		"city":          account.AssignedCity,
		"banScore":      account.BanScore,
		"sessionCount":  account.SessionCount,
		"totalRequests": account.TotalRequests,
		"totalLikes":    account.TotalLikes,
		"errorCount":    account.ErrorCount,
		"lastErrorAt":   formatTime(account.LastErrorAt),
		"createdAt":     account.CreatedAt.Format(time.RFC3339),
	}
	if status != nil {
		out["premium"] = status.Premium
		out["queueCount"] = status.QueueCount
		out["lastQueueCheckAt"] = formatTime(status.LastQueueCheckAt)
		out["lastSessionEnd"] = formatTime(status.LastSessionEnd)
		out["currentPhase"] = status.CurrentPhase
	}
	return out
}

func formatSession(s model.Session) map[string]any {
	return map[string]any{
		"id":           s.ID,
		"externalId":   s.ExternalID,
		"startedAt":    s.StartedAt.Format(time.RFC3339),
		"endedAt":      formatTime(s.EndedAt),
		"requests":     s.Requests,
		"likes":        s.Likes,
		"passes":       s.Passes,
		"matches":      s.Matches,
		"errors":       s.Errors,
		"qualityScore": s.QualityScore,
		"finalPhase":   s.FinalPhase,
	}
}
