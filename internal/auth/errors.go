package auth

import (
	"errors"
	"time"
)

var (
	ErrUserExists          = errors.New("user already exists")
	ErrMissingToken        = errors.New("missing token")
	ErrInvalidAccessToken  = errors.New("invalid or expired token")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// ValidationError reports malformed registration or login input.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return e.Reason
}

// CredentialsError is returned on a failed password check. When the
// account exists, AttemptsRemaining carries how many failures are left
// before the lockout trips; for unknown usernames it is zero and the
// response shape is identical.
type CredentialsError struct {
	AttemptsRemaining int
}

func (e CredentialsError) Error() string {
	return "invalid credentials"
}

// LockedError is returned while an account lockout is in effect.
type LockedError struct {
	Until time.Time
}

func (e LockedError) Error() string {
	return "account locked"
}

// RemainingMinutes is the lock time left, rounded up to whole minutes.
func (e LockedError) RemainingMinutes(now time.Time) int {
	remaining := e.Until.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
