package lifecycle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/swipekit/swipekit/internal/audit"
	"github.com/swipekit/swipekit/internal/model"
	"github.com/swipekit/swipekit/internal/secrets"
	"github.com/swipekit/swipekit/internal/wire"
)

// Credentials is one parsed import line before account creation.
type Credentials struct {
	AuthToken          string
	RefreshToken       string
	DeviceID           string
	PersistentDeviceID string
	InstallID          string
	AdvertisingID      string
	Latitude           *float64
	Longitude          *float64
	Proxy              *string
}

// ParseCredentialLine parses one colon-separated credential line. Two
// layouts are accepted:
//
//	auth:persistentDevice:refresh:lat:lon[:proxy...]
//	auth:refresh:device[:proxy...]
//
// The first is detected by a plausible latitude in the fourth field. Proxy
// URLs may themselves contain colons, so everything after the fixed fields
// is rejoined.
func ParseCredentialLine(line string) (*Credentials, error) {
	line = strings.TrimSpace(strings.Trim(line, "\ufeff\x00"))
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	parts := strings.Split(line, ":")
	if len(parts) < 3 {
		return nil, fmt.Errorf("expected at least 3 colon-separated fields, got %d", len(parts))
	}

	creds := &Credentials{
		InstallID:     randomInstallID(),
		AdvertisingID: uuid.NewString(),
	}

	if lat, ok := parseLatitude(parts, 3); ok {
		creds.AuthToken = strings.TrimSpace(parts[0])
		creds.PersistentDeviceID = strings.TrimSpace(parts[1])
		creds.DeviceID = creds.PersistentDeviceID
		creds.RefreshToken = strings.TrimSpace(parts[2])
		creds.Latitude = lat
		creds.Longitude = parseCoordinate(parts[4])
		if len(parts) > 5 {
			creds.Proxy = joinProxy(parts[5:])
		}
	} else {
		creds.AuthToken = strings.TrimSpace(parts[0])
		creds.RefreshToken = strings.TrimSpace(parts[1])
		creds.DeviceID = strings.TrimSpace(parts[2])
		creds.PersistentDeviceID = creds.DeviceID
		if len(parts) > 3 {
			creds.Proxy = joinProxy(parts[3:])
		}
	}

	if err := creds.validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

func (c *Credentials) validate() error {
	if len(c.AuthToken) < 10 {
		return fmt.Errorf("auth token too short")
	}
	if len(c.RefreshToken) < 10 {
		return fmt.Errorf("refresh token too short")
	}
	if len(c.DeviceID) < 8 {
		return fmt.Errorf("device id too short")
	}
	if !strings.ContainsFunc(c.AuthToken, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
	}) {
		return fmt.Errorf("auth token contains no alphanumeric characters")
	}
	return nil
}

// parseLatitude detects the coordinate-bearing layout: field idx must parse
// as a number within latitude range and field idx+1 must exist.
func parseLatitude(parts []string, idx int) (*float64, bool) {
	if len(parts) <= idx+1 {
		return nil, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(parts[idx]), 64)
	if err != nil || v < -90 || v > 90 {
		return nil, false
	}
	if strings.TrimSpace(parts[idx]) == "0" {
		return nil, true
	}
	return &v, true
}

func parseCoordinate(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func joinProxy(parts []string) *string {
	joined := strings.TrimSpace(strings.Join(parts, ":"))
	if joined == "" {
		return nil
	}
	return &joined
}

const installIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomInstallID() string {
	b := make([]byte, 11)
	for i := range b {
		b[i] = installIDChars[rand.Intn(len(installIDChars))]
	}
	return string(b)
}

// Importer turns credential lines into account rows, probing each one
// through the wire client before accepting it.
type Importer struct {
	manager   *Manager
	newClient func(*model.Account) (wire.Client, error)
	cipher    *secrets.Cipher
	pool      *identityPool
}

func NewImporter(manager *Manager, newClient func(*model.Account) (wire.Client, error), cipher *secrets.Cipher) *Importer {
	pool, err := newIdentityPool(manager.cfg.ProfileNames, manager.cfg.CityPool, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		manager.log.Warn().Err(err).Msg("bad city pool config, importing without assigned cities")
		pool, _ = newIdentityPool(manager.cfg.ProfileNames, nil, rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	return &Importer{manager: manager, newClient: newClient, cipher: cipher, pool: pool}
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Imported int
	Failed   []string
}

// Import reads credential lines and creates an account per valid line.
// Invalid or unreachable credentials are collected, not fatal.
func (imp *Importer) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	result := &ImportResult{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		creds, err := ParseCredentialLine(line)
		if err != nil {
			imp.manager.log.Warn().Err(err).Msg("rejected credential line")
			result.Failed = append(result.Failed, line)
			continue
		}
		if creds == nil {
			continue
		}
		account, err := imp.create(ctx, creds)
		if err != nil {
			imp.manager.log.Warn().Err(err).Msg("failed to import credentials")
			result.Failed = append(result.Failed, line)
			continue
		}
		result.Imported++
		audit.Log(ctx, audit.Event{
			Type:      audit.EventAccountImport,
			AccountID: account.ID,
			Details:   map[string]interface{}{"timezone": account.Timezone},
		})
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read credential lines: %w", err)
	}
	return result, nil
}

func (imp *Importer) create(ctx context.Context, creds *Credentials) (*model.Account, error) {
	timezone := "UTC"
	if creds.Longitude != nil {
		timezone = TimezoneForLongitude(*creds.Longitude)
	}

	sealedAuth, err := imp.cipher.Seal(creds.AuthToken)
	if err != nil {
		return nil, fmt.Errorf("seal auth token: %w", err)
	}
	sealedRefresh, err := imp.cipher.Seal(creds.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("seal refresh token: %w", err)
	}

	params := model.CreateAccountParams{
		AuthToken:          sealedAuth,
		RefreshToken:       sealedRefresh,
		DeviceID:           creds.DeviceID,
		PersistentDeviceID: creds.PersistentDeviceID,
		InstallID:          creds.InstallID,
		AdvertisingID:      &creds.AdvertisingID,
		Proxy:              creds.Proxy,
		Latitude:           creds.Latitude,
		Longitude:          creds.Longitude,
		Timezone:           timezone,
		AssignedName:       imp.pool.pickName(),
	}
	// Accounts without coordinates adopt their assigned city's location so
	// the bio placeholders and the timezone line up.
	if city := imp.pool.pickCity(creds.Latitude, creds.Longitude); city != nil {
		params.AssignedCity = &city.Name
		if creds.Latitude == nil || creds.Longitude == nil {
			params.Latitude = &city.Latitude
			params.Longitude = &city.Longitude
			params.Timezone = TimezoneForLongitude(city.Longitude)
		}
	}

	account, err := imp.manager.accounts.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if _, err := imp.manager.status.Ensure(ctx, account.ID); err != nil {
		return nil, fmt.Errorf("create account status: %w", err)
	}

	// Probe the credentials so dead imports never enter rotation. A refresh
	// failure is authoritative; a profile failure is only logged because the
	// next session will classify it properly.
	if imp.newClient != nil {
		client, err := imp.newClient(account)
		if err != nil {
			return account, fmt.Errorf("build wire client: %w", err)
		}
		login, err := client.RefreshLogin(ctx)
		if err != nil || login == nil || !login.Success {
			if err := imp.manager.Transition(ctx, account, model.LifecycleDead, "credential probe failed"); err != nil {
				return account, err
			}
			return account, nil
		}
		if login.AuthToken != "" {
			auth, sealErr := imp.cipher.Seal(login.AuthToken)
			refresh, sealErr2 := imp.cipher.Seal(login.RefreshToken)
			if sealErr != nil || sealErr2 != nil {
				imp.manager.log.Warn().Int64("account_id", account.ID).Msg("failed to seal refreshed tokens")
			} else if _, err := imp.manager.accounts.UpdateTokens(ctx, account.ID, auth, refresh); err != nil {
				imp.manager.log.Warn().Err(err).Int64("account_id", account.ID).Msg("failed to store refreshed tokens")
			} else {
				audit.Log(ctx, audit.Event{
					Type:      audit.EventTokenRefresh,
					AccountID: account.ID,
					Reason:    "import probe",
				})
			}
		}
		if prof, _, err := client.Profile(ctx); err == nil && prof != nil && prof.UserID != "" {
			if err := imp.manager.accounts.SetRemoteUserID(ctx, account.ID, prof.UserID); err != nil {
				imp.manager.log.Warn().Err(err).Int64("account_id", account.ID).Msg("failed to store remote user id")
			}
		}
	}
	return account, nil
}
