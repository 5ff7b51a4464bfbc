package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"stakevault/core/bank"
	nativecommon "stakevault/native/common"
	"stakevault/native/vault"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps engine and bank failures onto HTTP statuses. Malformed or
// arithmetically impossible requests are client errors; risk rejections are
// conflicts with the current ledger state; pause and missing wiring surface
// as unavailability.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrArithmetic),
		errors.Is(err, vault.ErrUnknownAssetKind),
		errors.Is(err, vault.ErrUnknownParameter),
		errors.Is(err, vault.ErrZeroAddress),
		errors.Is(err, bank.ErrUnknownBalanceKind),
		errors.Is(err, bank.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrInsufficientCollateral),
		errors.Is(err, vault.ErrExceedsLTV),
		errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vault.ErrDebtCeilingExceeded),
		errors.Is(err, vault.ErrRepaymentTooLarge),
		errors.Is(err, vault.ErrLiquidationNotAllowed),
		errors.Is(err, vault.ErrAlreadyInitialized),
		errors.Is(err, bank.ErrIndexRegression):
		return http.StatusConflict
	case errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, vault.ErrTermsNotSet),
		errors.Is(err, vault.ErrDebtTokenNotSet),
		errors.Is(err, vault.ErrNilState):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
