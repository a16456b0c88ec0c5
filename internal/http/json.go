package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/quayside/authgate/internal/errors"
	"github.com/quayside/authgate/internal/token"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError to adhere to the ≤3 params guideline.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// WriteAppError writes the single structured error body for a typed failure.
// The status is derived purely from the error's classification; no handler
// picks its own status for a given failure.
func WriteAppError(w http.ResponseWriter, err error) {
	WriteError(w, ErrorParams{Code: statusForError(err), ErrCode: errCodeForError(err), Err: err})
}

// Token and state failures are plain sentinels, not AppErrors; both verify
// failures and protocol failures classify as unauthorized.
func isTokenError(err error) bool {
	return errors.Is(err, token.ErrStateMissing) ||
		errors.Is(err, token.ErrInvalidState) ||
		errors.Is(err, token.ErrTokenExpired) ||
		errors.Is(err, token.ErrSignatureInvalid) ||
		errors.Is(err, token.ErrAudienceMismatch) ||
		errors.Is(err, token.ErrMalformed)
}

func statusForError(err error) int {
	if isTokenError(err) {
		return http.StatusUnauthorized
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeUpstream:
		return http.StatusBadGateway
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errCodeForError(err error) string {
	switch {
	case errors.Is(err, token.ErrStateMissing):
		return "state_missing"
	case errors.Is(err, token.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, token.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, token.ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, token.ErrAudienceMismatch):
		return "audience_mismatch"
	case errors.Is(err, token.ErrMalformed):
		return "malformed_token"
	}
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}
	return string(apperrors.ErrCodeInternal)
}
