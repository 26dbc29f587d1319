package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	protoerrors "stakevault/core/errors"
	"stakevault/crypto"
)

const maxBodyBytes = 1 << 20

// amount is a u64 carried as a decimal string so JSON clients never round it.
type amount uint64

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(a), 10))), nil
}

func (a *amount) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("amount must be a decimal string")
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", raw)
	}
	*a = amount(v)
	return nil
}

type problem struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, message, kind string) {
	writeJSON(w, status, problem{Error: message, Kind: kind, RequestID: requestIDFrom(r.Context())})
}

// statusFor maps a protocol failure to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	switch protoerrors.KindOf(err) {
	case protoerrors.KindValidation, protoerrors.KindArithmetic:
		return http.StatusBadRequest
	case protoerrors.KindState:
		return http.StatusConflict
	case protoerrors.KindAuthorization:
		return http.StatusForbidden
	case protoerrors.KindCollateral, protoerrors.KindWithdrawal:
		return http.StatusUnprocessableEntity
	case protoerrors.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	kind := protoerrors.KindOf(err)
	var label string
	if kind != protoerrors.KindUnknown {
		label = kind.String()
	}
	writeProblem(w, r, status, message, label)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseUintParam(raw, name string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func parseIdentityParam(raw, name string) ([20]byte, error) {
	id, err := crypto.ParseIdentity(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}

func custody(id [20]byte) string {
	return crypto.FromArray(crypto.CustodyPrefix, id).String()
}
