package wire

import (
	"context"
	"encoding/json"
	"time"
)

// Result is the transport-level outcome of a single call.
type Result struct {
	Status     Status
	HTTPCode   int
	Body       []byte
	RetryAfter time.Duration
}

func (r *Result) Success() bool {
	return r != nil && r.Status.Success()
}

// LikeOutcome distinguishes a plain like, a like that produced a match, and
// a like the remote rejected.
type LikeOutcome string

const (
	LikeOutcomeLiked   LikeOutcome = "liked"
	LikeOutcomeMatched LikeOutcome = "matched"
	LikeOutcomeFailed  LikeOutcome = "failed"
)

type LikeResult struct {
	Result
	Outcome LikeOutcome
}

type Prompt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Profile struct {
	UserID  string   `json:"user_id"`
	Bio     string   `json:"bio"`
	Prompts []Prompt `json:"prompts"`
}

type Purchase struct {
	ProductType    string
	PaymentPending bool
	ExpireDate     time.Time
}

// UnmarshalJSON accepts expire_date as a unix timestamp in seconds or
// milliseconds, or as an RFC 3339 string. The remote sends all three.
func (p *Purchase) UnmarshalJSON(b []byte) error {
	var raw struct {
		ProductType    string          `json:"product_type"`
		PaymentPending bool            `json:"payment_pending"`
		ExpireDate     json.RawMessage `json:"expire_date"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.ProductType = raw.ProductType
	p.PaymentPending = raw.PaymentPending
	p.ExpireDate = time.Time{}

	if len(raw.ExpireDate) == 0 || string(raw.ExpireDate) == "null" {
		return nil
	}
	var epoch int64
	if err := json.Unmarshal(raw.ExpireDate, &epoch); err == nil {
		if epoch > 1e12 {
			p.ExpireDate = time.UnixMilli(epoch)
		} else {
			p.ExpireDate = time.Unix(epoch, 0)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.ExpireDate, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			p.ExpireDate = t
		}
		return nil
	}
	return nil
}

// Active reports whether this purchase grants a premium tier right now.
func (p *Purchase) Active(now time.Time) bool {
	if p.ProductType != "gold" && p.ProductType != "plus" {
		return false
	}
	if p.PaymentPending {
		return false
	}
	return p.ExpireDate.After(now)
}

type LikedMeItem struct {
	UserID string `json:"user_id"`
}

type LikedMePage struct {
	Items      []LikedMeItem `json:"items"`
	TotalCount int           `json:"total_count"`
	PageToken  string        `json:"page_token"`
}

// LoginResult is the parsed token-refresh handshake response.
type LoginResult struct {
	Success      bool
	AuthToken    string
	RefreshToken string
	UserID       string
	ErrorMessage string
}

// Client is the remote API surface the orchestrator drives. Pattern
// operations go through Execute; calls whose response bodies the
// orchestrator inspects get typed methods.
type Client interface {
	Execute(ctx context.Context, op Operation) (*Result, error)
	Profile(ctx context.Context) (*Profile, *Result, error)
	Purchases(ctx context.Context) ([]Purchase, *Result, error)
	LikedMeCount(ctx context.Context) (int, *Result, error)
	LikedMePage(ctx context.Context, pageSize int, pageToken string) (*LikedMePage, *Result, error)
	Like(ctx context.Context, targetID string) (*LikeResult, error)
	Pass(ctx context.Context, targetID string) (*Result, error)
	UpdateBio(ctx context.Context, bio string) (*Result, error)
	UpdatePrompt(ctx context.Context, promptID, text string) (*Result, error)
	GetUpdates(ctx context.Context, includeNudge bool) (*Result, error)
	RefreshLogin(ctx context.Context) (*LoginResult, error)
}
