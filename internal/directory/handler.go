package directory

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// NewHandler serves the directory JSON API from any Directory, in the shape
// HTTPClient consumes. It backs the devdirectory binary and the client tests.
func NewHandler(dir Directory, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/session/account", func(w http.ResponseWriter, r *http.Request) {
		account, err := dir.GetAccount(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, account)
	})

	mux.HandleFunc("GET /api/session/permission", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		role, err := dir.CheckGamePermission(r.Context(), q.Get("user"), q.Get("game"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, struct {
			Role Role `json:"role"`
		}{role})
	})

	return mux
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if errors.Is(err, ErrUnknownUser) || errors.Is(err, ErrUnknownGame) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	logger.Error("directory lookup failed", zap.Error(err))
	http.Error(w, "directory error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("writing directory response", zap.Error(err))
	}
}
