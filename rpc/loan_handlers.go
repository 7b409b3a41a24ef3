package rpc

import (
	"math/big"
	"net/http"
	"strings"

	"loanchain/native/loan"
)

type loanStartParams struct {
	Lender                 string `json:"lender"`
	Borrower               string `json:"borrower"`
	DenominationContract   string `json:"denominationContract"`
	DenominationTokenID    uint64 `json:"denominationTokenId"`
	PrincipalAmount        string `json:"principalAmount"`
	MaximumInterest        string `json:"maximumInterest"`
	CollateralContract     string `json:"collateralContract"`
	CollateralTokenID      uint64 `json:"collateralTokenId"`
	Duration               int64  `json:"duration"`
	TimeAdjustableInterest bool   `json:"timeAdjustableInterest"`
}

type loanLifecycleParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
}

type loanGetParams struct {
	LoanID uint64 `json:"loanId"`
}

type loanCurrencyQueryParams struct {
	Contract string `json:"contract"`
}

type loanWhitelistParams struct {
	Caller    string `json:"caller"`
	Contract  string `json:"contract"`
	Precision string `json:"precision,omitempty"`
}

type loanFeeParams struct {
	Caller string `json:"caller"`
	Bps    uint64 `json:"bps"`
}

type loanTreasuryParams struct {
	Caller   string `json:"caller"`
	Treasury string `json:"treasury"`
}

type loanVaultParams struct {
	Caller string `json:"caller"`
	Vault  string `json:"vault"`
}

type loanNoteContractsParams struct {
	Caller       string `json:"caller"`
	BorrowerNote string `json:"borrowerNote"`
	LenderNote   string `json:"lenderNote"`
}

type loanModuleParams struct {
	Module string `json:"module"`
}

type loanResult struct {
	ID                     uint64 `json:"id"`
	DenominationContract   string `json:"denominationContract"`
	DenominationTokenID    uint64 `json:"denominationTokenId"`
	PrincipalAmount        string `json:"principalAmount"`
	MaximumInterest        string `json:"maximumInterest"`
	CollateralContract     string `json:"collateralContract"`
	CollateralTokenID      uint64 `json:"collateralTokenId"`
	OriginationTime        int64  `json:"originationTime"`
	Duration               int64  `json:"duration"`
	Deadline               int64  `json:"deadline"`
	TimeAdjustableInterest bool   `json:"timeAdjustableInterest"`
	BorrowerNoteHolder     string `json:"borrowerNoteHolder,omitempty"`
	LenderNoteHolder       string `json:"lenderNoteHolder,omitempty"`
}

type loanParamsResult struct {
	Admin            string `json:"admin"`
	ProcessingFeeBps uint64 `json:"processingFeeBps"`
	InterestFeeBps   uint64 `json:"interestFeeBps"`
	FeeTreasury      string `json:"feeTreasury"`
	CollateralVault  string `json:"collateralVault"`
	BorrowerNote     string `json:"borrowerNote"`
	LenderNote       string `json:"lenderNote"`
}

type loanCurrencyResult struct {
	Contract  string `json:"contract"`
	Permitted bool   `json:"permitted"`
	Precision string `json:"precision"`
}

type ackResult struct {
	Status string `json:"status"`
}

var acknowledged = ackResult{Status: "ok"}

func loanToResult(record *loan.Loan) loanResult {
	return loanResult{
		ID:                     record.ID,
		DenominationContract:   encodeBech32(record.DenominationContract),
		DenominationTokenID:    record.DenominationTokenID,
		PrincipalAmount:        record.PrincipalAmount.String(),
		MaximumInterest:        record.MaximumInterest.String(),
		CollateralContract:     encodeBech32(record.CollateralContract),
		CollateralTokenID:      record.CollateralTokenID,
		OriginationTime:        record.OriginationTime,
		Duration:               record.Duration,
		Deadline:               record.Deadline(),
		TimeAdjustableInterest: record.TimeAdjustableInterest,
	}
}

func (s *Server) handleLoanStart(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanStartParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	input := loan.StartLoanInput{
		DenominationTokenID:    params.DenominationTokenID,
		CollateralTokenID:      params.CollateralTokenID,
		Duration:               params.Duration,
		TimeAdjustableInterest: params.TimeAdjustableInterest,
	}
	var err error
	if input.Lender, err = decodeBech32(params.Lender); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lender", err.Error())
		return
	}
	if input.Borrower, err = decodeBech32(params.Borrower); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower", err.Error())
		return
	}
	if input.DenominationContract, err = decodeBech32(params.DenominationContract); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid denominationContract", err.Error())
		return
	}
	if input.CollateralContract, err = decodeBech32(params.CollateralContract); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collateralContract", err.Error())
		return
	}
	if input.PrincipalAmount, err = parseAmount(params.PrincipalAmount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid principalAmount", err.Error())
		return
	}
	if strings.TrimSpace(params.MaximumInterest) != "" {
		if input.MaximumInterest, err = parseAmount(params.MaximumInterest); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid maximumInterest", err.Error())
			return
		}
	}

	record, err := s.node.StartLoan(input)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loanToResult(record))
}

func (s *Server) handleLoanRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanLifecycleParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	if err := s.node.RepayLoan(caller, params.LoanID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleLoanClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanLifecycleParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	if err := s.node.ClaimLoan(caller, params.LoanID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleLoanGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanGetParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	record, err := s.node.GetLoan(params.LoanID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := loanToResult(record)
	if holder, ok, err := s.node.BorrowerNoteOwner(record.ID); err == nil && ok {
		result.BorrowerNoteHolder = encodeBech32(holder)
	}
	if holder, ok, err := s.node.LenderNoteOwner(record.ID); err == nil && ok {
		result.LenderNoteHolder = encodeBech32(holder)
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleLoanGetParams(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	params, err := s.node.LoanParams()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loanParamsResult{
		Admin:            encodeBech32(params.Admin),
		ProcessingFeeBps: params.ProcessingFeeBps,
		InterestFeeBps:   params.InterestFeeBps,
		FeeTreasury:      encodeBech32(params.FeeTreasury),
		CollateralVault:  encodeBech32(params.CollateralVault),
		BorrowerNote:     encodeBech32(params.BorrowerNote),
		LenderNote:       encodeBech32(params.LenderNote),
	})
}

func (s *Server) handleLoanGetCurrency(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanCurrencyQueryParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	contract, err := decodeBech32(params.Contract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid contract", err.Error())
		return
	}
	entry, ok, err := s.node.Currency(contract)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := loanCurrencyResult{Contract: params.Contract, Permitted: false, Precision: "0"}
	if ok {
		result.Permitted = entry.Permitted
		result.Precision = entry.Clone().Precision.String()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleLoanWhitelistCurrency(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanWhitelistParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	contract, err := decodeBech32(params.Contract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid contract", err.Error())
		return
	}
	var precision *big.Int
	if strings.TrimSpace(params.Precision) != "" {
		if precision, err = parseAmount(params.Precision); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid precision", err.Error())
			return
		}
	}
	if err := s.node.WhitelistCurrency(caller, contract, precision); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleLoanSetProcessingFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanFeeParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	if err := s.node.SetProcessingFee(caller, params.Bps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleLoanSetInterestFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanFeeParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	if err := s.node.SetInterestFee(caller, params.Bps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleLoanSetFeeTreasury(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanTreasuryParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	treasury, err := decodeBech32(params.Treasury)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid treasury", err.Error())
		return
	}
	if err := s.node.SetFeeTreasury(caller, treasury); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleLoanSetCollateralVault(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanVaultParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	vault, err := decodeBech32(params.Vault)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid vault", err.Error())
		return
	}
	if err := s.node.SetCollateralVault(caller, vault); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleLoanSetNoteContracts(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanNoteContractsParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	borrowerNote, err := decodeBech32(params.BorrowerNote)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrowerNote", err.Error())
		return
	}
	lenderNote, err := decodeBech32(params.LenderNote)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lenderNote", err.Error())
		return
	}
	if err := s.node.SetLoanNoteContracts(caller, borrowerNote, lenderNote); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleLoanPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanModuleParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	module := strings.TrimSpace(params.Module)
	if module == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "module required", nil)
		return
	}
	s.node.Pause(module)
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleLoanResume(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanModuleParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	module := strings.TrimSpace(params.Module)
	if module == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "module required", nil)
		return
	}
	s.node.Resume(module)
	writeResult(w, req.ID, acknowledged)
}
