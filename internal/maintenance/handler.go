package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"auth-service/internal/observability"
)

// LockoutStore clears elapsed lockouts left on credential rows.
type LockoutStore interface {
	ClearExpiredLockouts(ctx context.Context, now time.Time) (int64, error)
}

// RegistryPurger drops expired entries from an in-process token
// registry. Nil when the backend expires its own keys.
type RegistryPurger interface {
	Purge() int
}

// CleanupHandler is invoked by an external scheduler holding the cron
// secret. Unconfigured, the endpoint pretends not to exist.
type CleanupHandler struct {
	store      LockoutStore
	purger     RegistryPurger
	logger     *observability.Logger
	cronSecret string
}

func NewCleanupHandler(store LockoutStore, purger RegistryPurger, logger *observability.Logger, cronSecret string) *CleanupHandler {
	return &CleanupHandler{
		store:      store,
		purger:     purger,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Endpoint not found."})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized."})
		return
	}

	clearedLockouts, err := h.store.ClearExpiredLockouts(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Cleanup failed."})
		return
	}

	purgedTokens := 0
	if h.purger != nil {
		purgedTokens = h.purger.Purge()
	}

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"cleared_lockouts": clearedLockouts,
		"purged_tokens":    purgedTokens,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"clearedLockouts": clearedLockouts,
		"purgedTokens":    purgedTokens,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
