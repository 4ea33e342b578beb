package middleware

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/MrEthical07/meowauth"
)

// ErrorBody is the JSON document written for every rejected request.
type ErrorBody struct {
	Success bool            `json:"success"`
	Reason  meowauth.Reason `json:"reason"`
	Message string          `json:"msg"`
}

// StatusOf maps an engine error onto an HTTP status code.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, meowauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, meowauth.ErrMalformedInput),
		errors.Is(err, meowauth.ErrRedirectNotAllowed):
		return http.StatusBadRequest
	case errors.Is(err, meowauth.ErrAccountExists),
		errors.Is(err, meowauth.ErrTOTPAlreadyEnabled):
		return http.StatusConflict
	case errors.Is(err, meowauth.ErrAppNotFound),
		errors.Is(err, meowauth.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, meowauth.ErrNotOwner),
		errors.Is(err, meowauth.ErrAppLimitReached),
		errors.Is(err, meowauth.ErrTOTPNotEnabled):
		return http.StatusForbidden
	}

	switch meowauth.ReasonOf(err) {
	case meowauth.ReasonBanned, meowauth.ReasonUnapproved, meowauth.ReasonInsufficientScope:
		return http.StatusForbidden
	case meowauth.ReasonRateLimited:
		return http.StatusTooManyRequests
	case meowauth.ReasonUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

// WriteError writes err as an ErrorBody. Rate-limited responses carry a
// Retry-After header in whole seconds.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	var limited *meowauth.RateLimitError
	if errors.As(err, &limited) && limited.RetryAfter > 0 {
		secs := int(math.Ceil(limited.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	body := ErrorBody{Reason: meowauth.ReasonOf(err), Message: http.StatusText(status)}
	if status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusNotFound {
		body.Message = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
