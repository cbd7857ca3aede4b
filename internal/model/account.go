package model

import (
	"time"
)

type Account struct {
	ID                 int64            `db:"id" json:"id"`
	AuthToken          string           `db:"auth_token" json:"-"`
	RefreshToken       string           `db:"refresh_token" json:"-"`
	DeviceID           string           `db:"device_id" json:"deviceId"`
	PersistentDeviceID string           `db:"persistent_device_id" json:"-"`
	InstallID          string           `db:"install_id" json:"-"`
	AdvertisingID      *string          `db:"advertising_id" json:"-"`
	Proxy              *string          `db:"proxy" json:"-"`
	RemoteUserID       *string          `db:"remote_user_id" json:"remoteUserId,omitempty"`
	AssignedCity       *string          `db:"assigned_city" json:"assignedCity,omitempty"`
	AssignedName       *string          `db:"assigned_name" json:"assignedName,omitempty"`
	Latitude           *float64         `db:"latitude" json:"latitude,omitempty"`
	Longitude          *float64         `db:"longitude" json:"longitude,omitempty"`
	Timezone           string           `db:"timezone" json:"timezone"`
	Status             AccountLifecycle `db:"status" json:"status"`
	BanScore           float64          `db:"ban_score" json:"banScore"`
	SessionCount       int              `db:"session_count" json:"sessionCount"`
	TotalRequests      int64            `db:"total_requests" json:"totalRequests"`
	TotalLikes         int64            `db:"total_likes" json:"totalLikes"`
	ErrorCount         int              `db:"error_count" json:"errorCount"`
	LastError          *string          `db:"last_error" json:"lastError,omitempty"`
	LastErrorAt        *time.Time       `db:"last_error_at" json:"lastErrorAt,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`
}

type CreateAccountParams struct {
	AuthToken          string
	RefreshToken       string
	DeviceID           string
	PersistentDeviceID string
	InstallID          string
	AdvertisingID      *string
	Proxy              *string
	RemoteUserID       *string
	AssignedCity       *string
	AssignedName       *string
	Latitude           *float64
	Longitude          *float64
	Timezone           string
	BanScore           float64
}

// Location returns the assigned coordinates, or ok=false when the account
// has no locale context yet.
func (a *Account) Location() (lat, lon float64, ok bool) {
	if a.Latitude == nil || a.Longitude == nil {
		return 0, 0, false
	}
	return *a.Latitude, *a.Longitude, true
}

// ErrorRate is the lifetime errors-per-session ratio used by the readiness
// predicate. Zero until the account has a session history.
func (a *Account) ErrorRate() float64 {
	if a.SessionCount == 0 {
		return 0
	}
	return float64(a.ErrorCount) / float64(a.SessionCount)
}
