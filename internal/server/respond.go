package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/terraconstructs/estate/internal/services/directory"
	"github.com/terraconstructs/estate/internal/services/iam"
	"github.com/terraconstructs/estate/pkg/api"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, api.Error{Error: msg, Code: code})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &iam.ValidationError{Message: fmt.Sprintf("invalid request body: %v", err)}
	}
	return nil
}

// writeServiceError maps service errors to status codes. Unknown errors are
// logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var verr *iam.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, api.CodeValidation, verr.Message)
	case errors.Is(err, directory.ErrInvalidRole), errors.Is(err, directory.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, api.CodeValidation, err.Error())
	case errors.Is(err, iam.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, api.CodeInvalidCredential, err.Error())
	case errors.Is(err, iam.ErrEmailTaken):
		writeError(w, http.StatusUnprocessableEntity, api.CodeEmailTaken, err.Error())
	case errors.Is(err, iam.ErrUserDisabled):
		writeError(w, http.StatusForbidden, api.CodeUserDisabled, err.Error())
	case errors.Is(err, iam.ErrSessionInvalid):
		writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, err.Error())
	case errors.Is(err, iam.ErrResetTokenInvalid):
		writeError(w, http.StatusUnprocessableEntity, api.CodeInvalidResetToken, err.Error())
	case errors.Is(err, directory.ErrForbidden):
		writeError(w, http.StatusForbidden, api.CodeForbidden, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, http.StatusNotFound, api.CodeNotFound, err.Error())
	default:
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, api.CodeInternal, "internal server error")
	}
}
