package rpc

import (
	"math/big"
	"net/http"
	"strings"

	"loanchain/native/token"
)

type tokenRegisterParams struct {
	Address    string `json:"address"`
	Standard   string `json:"standard"`
	Controller string `json:"controller"`
}

type tokenMintParams struct {
	Caller   string `json:"caller"`
	Contract string `json:"contract"`
	To       string `json:"to"`
	TokenID  uint64 `json:"tokenId"`
	Amount   string `json:"amount"`
}

type tokenMintNFTParams struct {
	Caller   string `json:"caller"`
	Contract string `json:"contract"`
	To       string `json:"to"`
}

type tokenTransferParams struct {
	Caller   string `json:"caller"`
	Contract string `json:"contract"`
	From     string `json:"from"`
	To       string `json:"to"`
	TokenID  uint64 `json:"tokenId"`
	Amount   string `json:"amount,omitempty"`
}

type tokenOperatorParams struct {
	Caller   string `json:"caller"`
	Contract string `json:"contract"`
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	TokenID  uint64 `json:"tokenId"`
	Approve  bool   `json:"approve"`
}

type tokenBalanceParams struct {
	Contract string `json:"contract"`
	Owner    string `json:"owner"`
	TokenID  uint64 `json:"tokenId"`
}

type tokenOwnerParams struct {
	Contract string `json:"contract"`
	TokenID  uint64 `json:"tokenId"`
}

type tokenMintNFTResult struct {
	TokenID uint64 `json:"tokenId"`
}

type tokenBalanceResult struct {
	Balance string `json:"balance"`
}

type tokenOwnerResult struct {
	Owner  string `json:"owner,omitempty"`
	Exists bool   `json:"exists"`
}

func parseStandard(value string) (token.Standard, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "fungible":
		return token.StandardFungible, true
	case "nft":
		return token.StandardNFT, true
	default:
		return 0, false
	}
}

func (s *Server) handleTokenRegister(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenRegisterParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	controller, err := decodeBech32(params.Controller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid controller", err.Error())
		return
	}
	standard, ok := parseStandard(params.Standard)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "standard must be \"fungible\" or \"nft\"", params.Standard)
		return
	}
	if _, err := s.node.RegisterToken(addr, standard, controller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleTokenMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenMintParams
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
	to, err := decodeBech32(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.node.MintToken(caller, contract, to, params.TokenID, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleTokenMintNFT(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenMintNFTParams
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
	to, err := decodeBech32(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to", err.Error())
		return
	}
	tokenID, err := s.node.MintNFT(caller, contract, to)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, tokenMintNFTResult{TokenID: tokenID})
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenTransferParams
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
	// NFT transfers default to a single unit when no amount is supplied.
	amount := big.NewInt(1)
	if strings.TrimSpace(params.Amount) != "" {
		if amount, err = parseAmount(params.Amount); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
			return
		}
	}
	if err := s.node.TransferToken(caller, contract, from, to, params.TokenID, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleTokenUpdateOperator(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenOperatorParams
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
	key := token.OperatorKey{Owner: owner, Operator: operator, TokenID: params.TokenID}
	if err := s.node.UpdateTokenOperator(caller, contract, key, params.Approve); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acknowledged)
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenBalanceParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	contract, err := decodeBech32(params.Contract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid contract", err.Error())
		return
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner", err.Error())
		return
	}
	balance, err := s.node.TokenBalance(contract, owner, params.TokenID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, tokenBalanceResult{Balance: balance.String()})
}

func (s *Server) handleTokenOwnerOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenOwnerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	contract, err := decodeBech32(params.Contract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid contract", err.Error())
		return
	}
	owner, ok, err := s.node.TokenOwner(contract, params.TokenID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := tokenOwnerResult{Exists: ok}
	if ok {
		result.Owner = encodeBech32(owner)
	}
	writeResult(w, req.ID, result)
}
