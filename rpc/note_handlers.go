package rpc

import (
	"net/http"
	"strings"

	"loanchain/native/note"
)

const (
	noteKindBorrower = "borrower"
	noteKindLender   = "lender"
)

type noteTransferParams struct {
	Kind   string `json:"kind"`
	Caller string `json:"caller"`
	From   string `json:"from"`
	To     string `json:"to"`
	LoanID uint64 `json:"loanId"`
}

type noteOperatorParams struct {
	Kind     string `json:"kind"`
	Caller   string `json:"caller"`
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	LoanID   uint64 `json:"loanId"`
	Approve  bool   `json:"approve"`
}

type noteOwnerParams struct {
	Kind   string `json:"kind"`
	LoanID uint64 `json:"loanId"`
}

type noteOwnerResult struct {
	Owner  string `json:"owner,omitempty"`
	Exists bool   `json:"exists"`
}

func validNoteKind(kind string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(kind))
	if normalized == noteKindBorrower || normalized == noteKindLender {
		return normalized, true
	}
	return "", false
}

func (s *Server) handleNoteTransfer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params noteTransferParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	kind, ok := validNoteKind(params.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "kind must be \"borrower\" or \"lender\"", params.Kind)
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	from, err := decodeBech32(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from", err.Error())
		return
	}
	to, err := decodeBech32(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to", err.Error())
		return
	}
	if kind == noteKindBorrower {
		err = s.node.TransferBorrowerNote(caller, from, to, params.LoanID)
	} else {
		err = s.node.TransferLenderNote(caller, from, to, params.LoanID)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleNoteUpdateOperator(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params noteOperatorParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	kind, ok := validNoteKind(params.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "kind must be \"borrower\" or \"lender\"", params.Kind)
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner", err.Error())
		return
	}
	operator, err := decodeBech32(params.Operator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid operator", err.Error())
		return
	}
	key := note.OperatorKey{Owner: owner, Operator: operator, LoanID: params.LoanID}
	if kind == noteKindBorrower {
		err = s.node.UpdateBorrowerNoteOperator(caller, key, params.Approve)
	} else {
		err = s.node.UpdateLenderNoteOperator(caller, key, params.Approve)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleNoteOwnerOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params noteOwnerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	kind, ok := validNoteKind(params.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "kind must be \"borrower\" or \"lender\"", params.Kind)
		return
	}
	var (
		owner  [20]byte
		exists bool
		err    error
	)
	if kind == noteKindBorrower {
		owner, exists, err = s.node.BorrowerNoteOwner(params.LoanID)
	} else {
		owner, exists, err = s.node.LenderNoteOwner(params.LoanID)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := noteOwnerResult{Exists: exists}
	if exists {
		result.Owner = encodeBech32(owner)
	}
	writeResult(w, req.ID, result)
}
