package rpc

import (
	"errors"
	"net/http"

	nativecommon "loanchain/native/common"
	"loanchain/native/loan"
	"loanchain/native/note"
	"loanchain/native/token"
)

// Protocol error codes. Clients branch on these, so the mapping from engine
// errors is part of the API contract.
const (
	codeValidation         = -32030
	codeConfiguration      = -32031
	codeNonExistentLoan    = -32032
	codeUnauthorizedCaller = -32033
	codeLoanExpired        = -32034
	codeLoanNotExpired     = -32035
	codeModulePaused       = -32036
	codeNotOperator        = -32037
	codeInsufficientFunds  = -32038
)

// writeEngineError maps a state machine error onto the RPC error surface.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status, code := classify(err)
	writeError(w, status, id, code, err.Error(), nil)
}

func classify(err error) (int, int) {
	switch {
	case errors.Is(err, loan.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, loan.ErrCurrencyNotAllowed):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, loan.ErrConfiguration):
		return http.StatusConflict, codeConfiguration
	case errors.Is(err, loan.ErrNonExistentLoan):
		return http.StatusNotFound, codeNonExistentLoan
	case errors.Is(err, loan.ErrUnauthorizedCaller):
		return http.StatusForbidden, codeUnauthorizedCaller
	case errors.Is(err, loan.ErrLoanExpired):
		return http.StatusConflict, codeLoanExpired
	case errors.Is(err, loan.ErrLoanNotExpired):
		return http.StatusConflict, codeLoanNotExpired
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, codeModulePaused
	case errors.Is(err, token.ErrNotOperator), errors.Is(err, token.ErrNotController):
		return http.StatusForbidden, codeNotOperator
	case errors.Is(err, token.ErrInsufficientBalance):
		return http.StatusConflict, codeInsufficientFunds
	case errors.Is(err, token.ErrUnknownContract), errors.Is(err, token.ErrUnknownToken):
		return http.StatusNotFound, codeNonExistentLoan
	case errors.Is(err, token.ErrInvalidAmount), errors.Is(err, token.ErrWrongStandard), errors.Is(err, token.ErrContractExists):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, note.ErrUnknownNote):
		return http.StatusNotFound, codeNonExistentLoan
	case errors.Is(err, note.ErrNotOwner), errors.Is(err, note.ErrUnauthorizedMinter):
		return http.StatusForbidden, codeUnauthorizedCaller
	case errors.Is(err, note.ErrNoteExists):
		return http.StatusConflict, codeValidation
	default:
		return http.StatusInternalServerError, codeServerError
	}
}
