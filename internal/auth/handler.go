package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	if err := h.service.Register(r.Context(), body.Username, body.Password); err != nil {
		var validationErr ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeMessage(w, http.StatusBadRequest, validationErr.Reason)
		case errors.Is(err, ErrUserExists):
			writeMessage(w, http.StatusBadRequest, "User already exists.")
		default:
			sentry.CaptureException(err)
			writeMessage(w, http.StatusInternalServerError, "Internal Server Error.")
		}
		return
	}

	writeMessage(w, http.StatusCreated, "Registration successful.")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	result, err := h.service.Login(r.Context(), body.Username, body.Password, body.RememberMe)
	if err != nil {
		var validationErr ValidationError
		var credsErr CredentialsError
		var lockedErr LockedError
		switch {
		case errors.As(err, &validationErr):
			writeMessage(w, http.StatusBadRequest, validationErr.Reason)
		case errors.As(err, &credsErr):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message":           fmt.Sprintf("Invalid credentials. %d attempts remaining.", credsErr.AttemptsRemaining),
				"attemptsRemaining": credsErr.AttemptsRemaining,
			})
		case errors.As(err, &lockedErr):
			writeJSON(w, http.StatusLocked, map[string]any{
				"message":   fmt.Sprintf("Account locked. Try again in %d minutes.", lockedErr.RemainingMinutes(h.service.now())),
				"lockUntil": lockedErr.Until.UnixMilli(),
			})
		default:
			sentry.CaptureException(err)
			writeMessage(w, http.StatusInternalServerError, "Internal Server Error.")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body refreshRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	accessToken, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingToken):
			writeMessage(w, http.StatusUnauthorized, "Refresh token required.")
		case errors.Is(err, ErrInvalidRefreshToken):
			writeMessage(w, http.StatusForbidden, "Invalid refresh token.")
		default:
			sentry.CaptureException(err)
			writeMessage(w, http.StatusInternalServerError, "Internal Server Error.")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"accessToken": accessToken})
}

// Logout never reports failure to the caller. Whatever tokens arrive
// get revoked; absent or garbage tokens are revoked vacuously.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		body.RefreshToken = ""
	}

	if err := h.service.Logout(r.Context(), bearerToken(r), body.RefreshToken); err != nil {
		// Registry backend failure only. Logout still succeeds from
		// the caller's point of view.
		sentry.CaptureException(err)
	}

	writeMessage(w, http.StatusOK, "Logged out successfully.")
}

// Protected expects RequireAuth to have run.
func (h *Handler) Protected(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Welcome to your dashboard, %s!", identity.Username),
		"user": map[string]string{
			"username": identity.Username,
			"id":       identity.UserID,
		},
		"tokenExpiry": identity.TokenExpiry,
	})
}

// NotFound answers unmatched routes with the service's JSON shape.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusNotFound, "Endpoint not found.")
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
