package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestIssuer(clock *fakeClock) *TokenIssuer {
	issuer := NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	issuer.now = clock.Now
	return issuer
}

func TestTokenRoundTrip(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(clock)

	access, err := issuer.IssueAccess("alice", "user-1")
	require.NoError(t, err)

	identity, err := issuer.ParseAccess(access)
	require.NoError(t, err)
	require.Equal(t, "alice", identity.Username)
	require.Equal(t, "user-1", identity.UserID)
	require.Equal(t, clock.Now().Add(15*time.Minute).Unix(), identity.TokenExpiry)
}

func TestTokenTypesDoNotCross(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(clock)

	refresh, err := issuer.IssueRefresh("alice", "user-1")
	require.NoError(t, err)

	_, err = issuer.ParseAccess(refresh)
	require.ErrorIs(t, err, ErrInvalidAccessToken)

	access, err := issuer.IssueAccess("alice", "user-1")
	require.NoError(t, err)

	_, err = issuer.ParseRefresh(access)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(clock)
	other := NewTokenIssuer("other-access", "other-refresh", 15*time.Minute, 7*24*time.Hour)
	other.now = clock.Now

	access, err := issuer.IssueAccess("alice", "user-1")
	require.NoError(t, err)

	_, err = other.ParseAccess(access)
	require.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestTokenExpiry(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(clock)

	access, err := issuer.IssueAccess("alice", "user-1")
	require.NoError(t, err)
	refresh, err := issuer.IssueRefresh("alice", "user-1")
	require.NoError(t, err)

	clock.Advance(15*time.Minute + time.Second)
	_, err = issuer.ParseAccess(access)
	require.ErrorIs(t, err, ErrInvalidAccessToken)

	// The refresh token outlives the access token by design.
	_, err = issuer.ParseRefresh(refresh)
	require.NoError(t, err)

	clock.Advance(7 * 24 * time.Hour)
	_, err = issuer.ParseRefresh(refresh)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestTokenMalformed(t *testing.T) {
	issuer := newTestIssuer(newFakeClock())

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := issuer.ParseAccess(raw)
		require.ErrorIs(t, err, ErrInvalidAccessToken)
	}
}
