package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://api.gotinder.com"

// Credentials carry everything the remote needs to treat requests as
// coming from one installed app instance.
type Credentials struct {
	AuthToken          string
	RefreshToken       string
	DeviceID           string
	PersistentDeviceID string
	InstallID          string
}

type route struct {
	method string
	path   string
	body   string
}

// Pattern operations that need no response inspection route through this
// table. Operations with typed methods (like, profile, purchases, liked-me,
// updates, login) are handled separately and are absent here.
var opRoutes = map[Operation]route{
	OpHealthcheckAuth:      {http.MethodGet, "/healthcheck/auth", ""},
	OpBuckets:              {http.MethodPost, "/v2/buckets", `{"experiments":[]}`},
	OpDeviceCheck:          {http.MethodGet, "/v2/device-check/android?isBackground=false", ""},
	OpProfileConsents:      {http.MethodPost, "/v2/profile/consents", `{"consents":[]}`},
	OpProfile:              {http.MethodGet, "/v2/profile/user", ""},
	OpProfileFeatureAccess: {http.MethodGet, "/v2/profile?include=feature_access", ""},
	OpProfileMeter:         {http.MethodGet, "/v2/profile?include=profile_meter", ""},
	OpInboxMessages:        {http.MethodGet, "/v2/inbox/messages", ""},
	OpMatches:              {http.MethodGet, "/v2/matches?count=100", ""},
	OpFastMatchCount:       {http.MethodGet, "/v2/fast-match/count", ""},
	OpFastMatchNewCount:    {http.MethodGet, "/v2/fast-match/newcount", ""},
	OpFastMatchTeaser:      {http.MethodGet, "/v2/fast-match/teaser", ""},
	OpLanguagePreferences:  {http.MethodPost, "/v2/profile/user", `{"user_language_preferences":[]}`},
	OpUpdates:              {http.MethodPost, "/updates?is_boosting=false&boost_cursor=0", `{"nudge":false}`},
	OpCampaigns:            {http.MethodGet, "/v2/insendio/campaigns?types=live_ops,mini_merch,modal", ""},
	OpCampaignsExtended:    {http.MethodGet, "/v2/insendio/campaigns?types=banner,live_ops,mini_merch,modal,rec_card", ""},
	OpPushDevices:          {http.MethodPost, "/v2/push/devices/android", `{}`},
	OpMetaPost:             {http.MethodPost, "/v2/meta", `{"force_fetch_resources":true}`},
	OpPaymentMethods:       {http.MethodGet, "/v2/purchase/payment-methods", ""},
	OpMyLikes:              {http.MethodGet, "/v2/my-likes", ""},
	OpDuos:                 {http.MethodGet, "/v1/duos", ""},
	OpRecommendations:      {http.MethodGet, "/v2/recs/core?locale=en", ""},
	OpSubscriptionFeatures: {http.MethodGet, "/v2/subscriptions/swipe_surge", ""},
	OpReceivedMessages:     {http.MethodGet, "/v1/direct-messages/received-messages", ""},
}

// HTTPClient talks to the remote API on behalf of one account. It is not
// safe for concurrent use; each session worker owns its own instance.
type HTTPClient struct {
	http    *http.Client
	baseURL string
	creds   Credentials
	log     zerolog.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, creds Credentials, proxyURL string, logger zerolog.Logger) (*HTTPClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	transport := &http.Transport{}
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &HTTPClient{
		http: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		baseURL: baseURL,
		creds:   creds,
		log:     logger,
	}, nil
}

// Credentials returns the current token set, which changes after a
// successful RefreshLogin.
func (c *HTTPClient) Credentials() Credentials {
	return c.creds
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, contentType string) (*Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Result{Status: StatusTransportFailure}, err
	}

	req.Header.Set("X-Auth-Token", c.creds.AuthToken)
	req.Header.Set("persistent-device-id", c.creds.PersistentDeviceID)
	req.Header.Set("install-id", c.creds.InstallID)
	req.Header.Set("User-Agent", "Tinder Android Version 14.21.0")
	req.Header.Set("platform", "android")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("transport failure")
		return &Result{Status: StatusTransportFailure}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &Result{Status: StatusTransportFailure, HTTPCode: resp.StatusCode}, err
	}

	result := &Result{
		Status:   ClassifyHTTP(resp.StatusCode),
		HTTPCode: resp.StatusCode,
		Body:     respBody,
	}
	if result.Status == StatusRateLimited {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			result.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return result, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload any) (*Result, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return &Result{Status: StatusTransportFailure}, err
		}
	}
	return c.do(ctx, method, path, body, "application/json; charset=UTF-8")
}

func (c *HTTPClient) Execute(ctx context.Context, op Operation) (*Result, error) {
	r, ok := opRoutes[op]
	if !ok {
		return nil, fmt.Errorf("no route for operation %q", op)
	}
	var body []byte
	contentType := ""
	if r.body != "" {
		body = []byte(r.body)
		contentType = "application/json; charset=UTF-8"
	}
	return c.do(ctx, r.method, r.path, body, contentType)
}

func (c *HTTPClient) Profile(ctx context.Context) (*Profile, *Result, error) {
	result, err := c.do(ctx, http.MethodGet, "/v2/profile?include=user,purchase", nil, "")
	if err != nil || !result.Success() {
		return nil, result, err
	}

	var envelope struct {
		Data struct {
			User struct {
				ID          string `json:"_id"`
				Bio         string `json:"bio"`
				UserPrompts struct {
					Prompts []struct {
						ID         string `json:"id"`
						AnswerText string `json:"answer_text"`
					} `json:"prompts"`
				} `json:"user_prompts"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(result.Body, &envelope); err != nil {
		return nil, result, fmt.Errorf("decode profile: %w", err)
	}

	profile := &Profile{
		UserID: envelope.Data.User.ID,
		Bio:    envelope.Data.User.Bio,
	}
	for _, p := range envelope.Data.User.UserPrompts.Prompts {
		profile.Prompts = append(profile.Prompts, Prompt{ID: p.ID, Text: p.AnswerText})
	}
	return profile, result, nil
}

func (c *HTTPClient) Purchases(ctx context.Context) ([]Purchase, *Result, error) {
	result, err := c.do(ctx, http.MethodGet, "/v2/profile?include=purchase", nil, "")
	if err != nil || !result.Success() {
		return nil, result, err
	}

	var envelope struct {
		Data struct {
			Purchase struct {
				Purchases []Purchase `json:"purchases"`
			} `json:"purchase"`
		} `json:"data"`
	}
	if err := json.Unmarshal(result.Body, &envelope); err != nil {
		return nil, result, fmt.Errorf("decode purchases: %w", err)
	}
	return envelope.Data.Purchase.Purchases, result, nil
}

func (c *HTTPClient) LikedMeCount(ctx context.Context) (int, *Result, error) {
	result, err := c.do(ctx, http.MethodGet, "/v2/fast-match/count", nil, "")
	if err != nil || !result.Success() {
		return 0, result, err
	}

	var envelope struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(result.Body, &envelope); err != nil {
		return 0, result, fmt.Errorf("decode liked-me count: %w", err)
	}
	return envelope.Data.Count, result, nil
}

func (c *HTTPClient) LikedMePage(ctx context.Context, pageSize int, pageToken string) (*LikedMePage, *Result, error) {
	path := fmt.Sprintf("/v2/fast-match?count=%d", pageSize)
	if pageToken != "" {
		path += "&page_token=" + url.QueryEscape(pageToken)
	}
	result, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil || !result.Success() {
		return nil, result, err
	}

	var envelope struct {
		Data struct {
			Results []struct {
				User struct {
					ID string `json:"_id"`
				} `json:"user"`
			} `json:"results"`
			NextPageToken string `json:"next_page_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(result.Body, &envelope); err != nil {
		return nil, result, fmt.Errorf("decode liked-me page: %w", err)
	}

	page := &LikedMePage{PageToken: envelope.Data.NextPageToken}
	for _, r := range envelope.Data.Results {
		page.Items = append(page.Items, LikedMeItem{UserID: r.User.ID})
	}
	return page, result, nil
}

func (c *HTTPClient) Like(ctx context.Context, targetID string) (*LikeResult, error) {
	payload := map[string]any{
		"super":          0,
		"user_traveling": 0,
		"fast_match":     1,
		"top_picks":      0,
		"undo":           0,
	}
	result, err := c.doJSON(ctx, http.MethodPost, "/like/"+url.PathEscape(targetID), payload)
	if err != nil {
		return &LikeResult{Result: *result, Outcome: LikeOutcomeFailed}, err
	}
	if !result.Success() {
		return &LikeResult{Result: *result, Outcome: LikeOutcomeFailed}, nil
	}

	var body struct {
		Match json.RawMessage `json:"match"`
	}
	outcome := LikeOutcomeLiked
	if err := json.Unmarshal(result.Body, &body); err == nil && len(body.Match) > 0 && string(body.Match) != "false" && string(body.Match) != "null" {
		outcome = LikeOutcomeMatched
	}
	return &LikeResult{Result: *result, Outcome: outcome}, nil
}

func (c *HTTPClient) Pass(ctx context.Context, targetID string) (*Result, error) {
	return c.do(ctx, http.MethodGet, "/pass/"+url.PathEscape(targetID), nil, "")
}

func (c *HTTPClient) UpdateBio(ctx context.Context, bio string) (*Result, error) {
	return c.doJSON(ctx, http.MethodPost, "/v2/profile/user", map[string]string{"bio": bio})
}

func (c *HTTPClient) UpdatePrompt(ctx context.Context, promptID, text string) (*Result, error) {
	payload := map[string]any{
		"user_prompts": map[string]any{
			"prompts": []map[string]string{
				{"id": promptID, "answer_text": text},
			},
		},
	}
	return c.doJSON(ctx, http.MethodPost, "/v2/profile/user", payload)
}

func (c *HTTPClient) GetUpdates(ctx context.Context, includeNudge bool) (*Result, error) {
	payload := map[string]any{"nudge": includeNudge}
	return c.doJSON(ctx, http.MethodPost, "/updates?is_boosting=false&boost_cursor=0", payload)
}

func (c *HTTPClient) RefreshLogin(ctx context.Context) (*LoginResult, error) {
	body := EncodeRefreshAuth(c.creds.RefreshToken)
	result, err := c.do(ctx, http.MethodPost, "/v3/auth/login", body, "application/x-protobuf")
	if err != nil {
		return &LoginResult{Success: false, ErrorMessage: err.Error()}, err
	}
	if !result.Success() {
		return &LoginResult{Success: false, ErrorMessage: fmt.Sprintf("http %d", result.HTTPCode)}, nil
	}

	login := DecodeAuthResponse(result.Body)
	if login.Success {
		if login.AuthToken != "" {
			c.creds.AuthToken = login.AuthToken
		}
		if login.RefreshToken != "" {
			c.creds.RefreshToken = login.RefreshToken
		}
	}
	return login, nil
}
