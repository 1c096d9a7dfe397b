package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testServer struct {
	mux     *http.ServeMux
	clock   *fakeClock
	service *Service
}

func newHandlerTestServer(t *testing.T) *testServer {
	t.Helper()

	clock := newFakeClock()
	service, _, _ := newTestService(clock)
	handler := NewHandler(service)
	limiter := NewLoginRateLimiter(1000, 15*time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", handler.Register)
	mux.Handle("POST /login", limiter.Middleware(http.HandlerFunc(handler.Login)))
	mux.HandleFunc("POST /refresh", handler.Refresh)
	mux.HandleFunc("POST /logout", handler.Logout)
	mux.Handle("GET /protected", RequireAuth(service, http.HandlerFunc(handler.Protected)))
	mux.HandleFunc("/", NotFound)

	return &testServer{mux: mux, clock: clock, service: service}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:40000"
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	recorder := httptest.NewRecorder()
	s.mux.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	return payload
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestRegisterEndpoint(t *testing.T) {
	server := newHandlerTestServer(t)

	resp := server.do(t, http.MethodPost, "/register", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, "Registration successful.", decodeBody(t, resp)["message"])

	resp = server.do(t, http.MethodPost, "/register", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "User already exists.", decodeBody(t, resp)["message"])

	resp = server.do(t, http.MethodPost, "/register", map[string]any{"username": "bob", "password": "weak"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = server.do(t, http.MethodPost, "/register", map[string]any{"username": "", "password": ""}, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "Username and password are required.", decodeBody(t, resp)["message"])
}

func TestLoginLockoutEndToEnd(t *testing.T) {
	server := newHandlerTestServer(t)

	resp := server.do(t, http.MethodPost, "/register", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	for attempt := 1; attempt <= 4; attempt++ {
		resp = server.do(t, http.MethodPost, "/login", map[string]any{"username": "alice", "password": "wrong"}, nil)
		require.Equal(t, http.StatusBadRequest, resp.Code)
		body := decodeBody(t, resp)
		require.Equal(t, float64(5-attempt), body["attemptsRemaining"])
	}

	resp = server.do(t, http.MethodPost, "/login", map[string]any{"username": "alice", "password": "wrong"}, nil)
	require.Equal(t, http.StatusLocked, resp.Code)
	require.Contains(t, decodeBody(t, resp)["message"], "Account locked")

	// The correct password is still refused while the lock holds.
	resp = server.do(t, http.MethodPost, "/login", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil)
	require.Equal(t, http.StatusLocked, resp.Code)

	server.clock.Advance(15*time.Minute + time.Second)

	resp = server.do(t, http.MethodPost, "/login", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	require.Equal(t, "alice", body["username"])
	require.NotEmpty(t, body["accessToken"])
	require.NotEmpty(t, body["refreshToken"])
}

func TestLogoutRevokesBothTokensEndToEnd(t *testing.T) {
	server := newHandlerTestServer(t)

	server.do(t, http.MethodPost, "/register", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil)
	resp := server.do(t, http.MethodPost, "/login", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	login := decodeBody(t, resp)
	accessToken := login["accessToken"].(string)
	refreshToken := login["refreshToken"].(string)

	resp = server.do(t, http.MethodGet, "/protected", nil, bearer(accessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	require.Equal(t, "Welcome to your dashboard, alice!", body["message"])
	require.NotNil(t, body["tokenExpiry"])

	resp = server.do(t, http.MethodPost, "/logout", map[string]any{"refreshToken": refreshToken}, bearer(accessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "Logged out successfully.", decodeBody(t, resp)["message"])

	resp = server.do(t, http.MethodGet, "/protected", nil, bearer(accessToken))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "Token revoked.", decodeBody(t, resp)["message"])

	resp = server.do(t, http.MethodPost, "/refresh", map[string]any{"refreshToken": refreshToken}, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Equal(t, "Invalid refresh token.", decodeBody(t, resp)["message"])
}

func TestRefreshEndpointCodes(t *testing.T) {
	server := newHandlerTestServer(t)

	resp := server.do(t, http.MethodPost, "/refresh", map[string]any{"refreshToken": ""}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "Refresh token required.", decodeBody(t, resp)["message"])

	resp = server.do(t, http.MethodPost, "/refresh", map[string]any{"refreshToken": "never-registered"}, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	server.do(t, http.MethodPost, "/register", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil)
	login := decodeBody(t, server.do(t, http.MethodPost, "/login", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil))

	resp = server.do(t, http.MethodPost, "/refresh", map[string]any{"refreshToken": login["refreshToken"]}, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, decodeBody(t, resp)["accessToken"])
}

func TestProtectedEndpointAuth(t *testing.T) {
	server := newHandlerTestServer(t)

	resp := server.do(t, http.MethodGet, "/protected", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "No token provided.", decodeBody(t, resp)["message"])

	resp = server.do(t, http.MethodGet, "/protected", nil, http.Header{"Authorization": []string{"Bearer"}})
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "Malformed token.", decodeBody(t, resp)["message"])

	resp = server.do(t, http.MethodGet, "/protected", nil, bearer("garbage"))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "Invalid or expired token.", decodeBody(t, resp)["message"])

	server.do(t, http.MethodPost, "/register", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil)
	login := decodeBody(t, server.do(t, http.MethodPost, "/login", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil))
	accessToken := login["accessToken"].(string)

	server.clock.Advance(16 * time.Minute)
	resp = server.do(t, http.MethodGet, "/protected", nil, bearer(accessToken))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLogoutWithoutTokensStillSucceeds(t *testing.T) {
	server := newHandlerTestServer(t)

	resp := server.do(t, http.MethodPost, "/logout", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "Logged out successfully.", decodeBody(t, resp)["message"])
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	server := newHandlerTestServer(t)

	resp := server.do(t, http.MethodGet, "/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, "Endpoint not found.", decodeBody(t, resp)["message"])
}

func TestUnknownUserResponseShapeMatchesWrongPassword(t *testing.T) {
	server := newHandlerTestServer(t)

	server.do(t, http.MethodPost, "/register", map[string]any{"username": "alice", "password": "Str0ng!Pw"}, nil)

	wrongPassword := server.do(t, http.MethodPost, "/login", map[string]any{"username": "alice", "password": "wrong"}, nil)
	unknownUser := server.do(t, http.MethodPost, "/login", map[string]any{"username": "ghost", "password": "wrong"}, nil)

	require.Equal(t, wrongPassword.Code, unknownUser.Code)
	require.Equal(t, decodeBody(t, wrongPassword), decodeBody(t, unknownUser))
}
