package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"insuranceGateway/internal/fault"
)

func newRequestID() string { return "req_" + uuid.NewString() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fault.Wrap(fault.Validation, err, "decode request body")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]any{
		"request_id": newRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	})
}

// statusFor maps a failure kind to an HTTP status. An ambiguous submission
// was dispatched with an unknown outcome, so it reports as a gateway
// timeout rather than a hard failure.
func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.Validation:
		return http.StatusBadRequest
	case fault.OrderNotFound:
		return http.StatusNotFound
	case fault.OrderNotFillable, fault.InsufficientPrerequisite:
		return http.StatusConflict
	case fault.RateLimited:
		return http.StatusTooManyRequests
	case fault.Connection, fault.UnsupportedProgramVersion:
		return http.StatusBadGateway
	case fault.Timeout, fault.AmbiguousSubmission:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeFault(w http.ResponseWriter, err error, details any) {
	kind := fault.KindOf(err)
	writeError(w, statusFor(kind), string(kind), err.Error(), details)
}
