package auth

import "time"

type User struct {
	ID             string
	Username       string
	PasswordHash   string
	FailedAttempts int
	LockUntil      *time.Time
	LastLogin      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LockedNow reports whether the account is locked at the given instant.
// The lock is always derived from lock_until, never stored as a flag:
// an elapsed lock_until stays on the record until the next login
// attempt writes the row.
func (u User) LockedNow(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}

type LoginResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Username     string `json:"username"`
	ExpiresIn    int64  `json:"expiresIn"`
	RememberMe   bool   `json:"rememberMe"`
}

// Identity is what a verified access token proves about the caller.
type Identity struct {
	Username    string
	UserID      string
	TokenExpiry int64
}
