package auth

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMaxAttempts = 5
	defaultLockWindow  = 15 * time.Minute
)

// ErrUserNotFound is returned by CredentialStore implementations when
// no record exists for the username.
var ErrUserNotFound = errors.New("user not found")

// CredentialStore is the persistence collaborator. The Authority only
// reads and writes individual records by username; it never deletes.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	Create(ctx context.Context, user User) error
	Update(ctx context.Context, user User) error
}

// Service owns the per-account lockout state machine, token issuance,
// and revocation state for both token kinds.
type Service struct {
	store        CredentialStore
	issuer       *TokenIssuer
	registry     TokenRegistry
	maxAttempts  int
	lockDuration time.Duration
	now          func() time.Time

	// Striped per-username locks serialize the read-modify-write of
	// failed_attempts/lock_until so two concurrent failures cannot
	// under-count toward the lockout threshold. Assumes a single
	// process owns the account state; see bootstrap notes.
	userLocks [64]sync.Mutex
}

func NewService(store CredentialStore, issuer *TokenIssuer, registry TokenRegistry) *Service {
	return &Service{
		store:        store,
		issuer:       issuer,
		registry:     registry,
		maxAttempts:  defaultMaxAttempts,
		lockDuration: defaultLockWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithSecurityConfig(maxAttempts int, lockDuration time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
}

func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		return ValidationError{Reason: "Username and password are required."}
	}
	if !IsStrongPassword(password) {
		return ValidationError{Reason: "Password must be at least 8 characters long, include uppercase, lowercase, number, and special character."}
	}

	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("check existing user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate user id: %w", err)
	}

	now := s.now()
	user := User{
		ID:           id.String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// Login runs the lockout state machine. While a lock is in effect the
// password is never compared and no counters move. A mismatch
// increments the counter and trips a lock at the threshold; a match
// resets everything and issues a token pair.
func (s *Service) Login(ctx context.Context, username, password string, rememberMe bool) (LoginResult, error) {
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		return LoginResult{}, ValidationError{Reason: "Username and password are required."}
	}

	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn the same bcrypt work and answer with the same
			// shape as a wrong password, so callers cannot probe
			// which usernames exist. No record, so no counter.
			checkPassword(dummyPasswordHash, password)
			return LoginResult{}, CredentialsError{AttemptsRemaining: s.maxAttempts - 1}
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if user.LockedNow(now) {
		return LoginResult{}, LockedError{Until: *user.LockUntil}
	}

	if !checkPassword(user.PasswordHash, password) {
		user.FailedAttempts++
		user.UpdatedAt = now
		if user.FailedAttempts >= s.maxAttempts {
			until := now.Add(s.lockDuration)
			user.LockUntil = &until
			if err := s.store.Update(ctx, user); err != nil {
				return LoginResult{}, fmt.Errorf("persist lockout: %w", err)
			}
			return LoginResult{}, LockedError{Until: until}
		}
		if err := s.store.Update(ctx, user); err != nil {
			return LoginResult{}, fmt.Errorf("persist failed attempt: %w", err)
		}
		return LoginResult{}, CredentialsError{AttemptsRemaining: s.maxAttempts - user.FailedAttempts}
	}

	user.FailedAttempts = 0
	user.LockUntil = nil
	user.LastLogin = &now
	user.UpdatedAt = now
	if err := s.store.Update(ctx, user); err != nil {
		return LoginResult{}, fmt.Errorf("persist successful login: %w", err)
	}

	access, err := s.issuer.IssueAccess(user.Username, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	refresh, err := s.issuer.IssueRefresh(user.Username, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.registry.Allowlist.Add(ctx, refresh, s.issuer.RefreshTTL()); err != nil {
		return LoginResult{}, fmt.Errorf("register refresh token: %w", err)
	}

	// rememberMe only changes the client-side persistence hint; token
	// lifetimes are fixed regardless.
	expiresIn := s.issuer.AccessTTL().Milliseconds()
	if rememberMe {
		expiresIn = s.issuer.RefreshTTL().Milliseconds()
	}

	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Username:     user.Username,
		ExpiresIn:    expiresIn,
		RememberMe:   rememberMe,
	}, nil
}

// Refresh mints a new access token for a refresh token that is both
// registered and verifiable. The refresh token itself is not rotated
// and stays valid across calls. A token that fails verification is
// evicted from the allow-list so it can never be retried.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", ErrMissingToken
	}

	allowed, err := s.registry.Allowlist.Contains(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("check refresh token: %w", err)
	}
	if !allowed {
		return "", ErrInvalidRefreshToken
	}

	identity, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		if removeErr := s.registry.Allowlist.Remove(ctx, refreshToken); removeErr != nil {
			return "", fmt.Errorf("evict refresh token: %w", removeErr)
		}
		return "", ErrInvalidRefreshToken
	}

	return s.issuer.IssueAccess(identity.Username, identity.UserID)
}

// Logout revokes whatever tokens the caller supplied. It never fails
// on invalid or absent tokens; revoking is idempotent.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	refreshToken = strings.TrimSpace(refreshToken)

	if accessToken != "" {
		// Deny for the token's remaining lifetime when it still
		// parses; a token past verification needs no denylist entry
		// beyond the full TTL fallback.
		ttl := s.issuer.AccessTTL()
		if identity, err := s.issuer.ParseAccess(accessToken); err == nil {
			if remaining := time.Unix(identity.TokenExpiry, 0).Sub(s.now()); remaining > 0 {
				ttl = remaining
			}
		}
		if err := s.registry.Denylist.Revoke(ctx, accessToken, ttl); err != nil {
			return fmt.Errorf("deny access token: %w", err)
		}
	}

	if refreshToken != "" {
		if err := s.registry.Allowlist.Remove(ctx, refreshToken); err != nil {
			return fmt.Errorf("remove refresh token: %w", err)
		}
	}

	return nil
}

// VerifyAccess is the full access-token verification contract:
// signature, expiry, token type, then the denylist.
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Identity{}, ErrMissingToken
	}

	identity, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		return Identity{}, err
	}

	revoked, err := s.registry.Denylist.IsRevoked(ctx, accessToken)
	if err != nil {
		return Identity{}, fmt.Errorf("check denylist: %w", err)
	}
	if revoked {
		return Identity{}, ErrTokenRevoked
	}

	return identity, nil
}

func (s *Service) userLock(username string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(username))
	return &s.userLocks[h.Sum32()%uint32(len(s.userLocks))]
}
