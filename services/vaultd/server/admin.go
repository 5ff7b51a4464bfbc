package server

import (
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"stakevault/core/bank"
	"stakevault/native/vault"
)

// parseParamValue accepts any non-negative 256-bit decimal. Zero is a valid
// parameter value (a free borrow, a disabled fee), unlike for amounts.
func parseParamValue(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("value required")
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, errors.New("invalid value")
	}
	return value.ToBig(), nil
}

type paramRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// handleSetParameter overwrites one governable risk parameter. Values arrive
// as decimal strings; ratio parameters are basis points.
func (s *Server) handleSetParameter(w http.ResponseWriter, r *http.Request) {
	var req paramRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	kind, err := vault.ParseParamKind(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := parseParamValue(req.Value)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.engine.SetParameter(kind, value); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("parameter updated", "name", kind.String(), "value", value.String())
	writeJSON(w, http.StatusOK, map[string]string{"name": kind.String(), "value": value.String()})
}

func (s *Server) handleCollectFees(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	minted, err := s.engine.CollectFees()
	s.observe("collect_fees", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("fees collected", "minted", minted.String())
	writeJSON(w, http.StatusOK, map[string]string{"minted": minted.String()})
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.pauses.Set("vault", req.Paused)
	if s.metrics != nil {
		s.metrics.SetPause(req.Paused)
	}
	s.logger.Info("pause toggled", "paused", req.Paused)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}

type oracleRequest struct {
	Price string `json:"price"`
	Index string `json:"index"`
}

// handleOracle pushes a new collateral price and, optionally, a new share
// conversion index. Either field may be omitted.
func (s *Server) handleOracle(w http.ResponseWriter, r *http.Request) {
	var req oracleRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Price == "" && req.Index == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "price or index required"})
		return
	}
	if req.Price != "" {
		price, err := parseAmount(req.Price)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if err := s.bank.SetAssetPrice(price); err != nil {
			writeError(w, err)
			return
		}
		s.logger.Info("oracle price updated", "price", price.String())
	}
	if req.Index != "" {
		index, err := parseAmount(req.Index)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if err := s.bank.SetConversionIndex(index); err != nil {
			writeError(w, err)
			return
		}
		s.logger.Info("conversion index updated", "index", index.String())
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInitDebtToken attaches the debt-token authority to the engine. The
// attachment succeeds at most once over the engine's lifetime.
func (s *Server) handleInitDebtToken(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.InitDebtToken(s.debtToken); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("debt token attached")
	writeJSON(w, http.StatusOK, map[string]string{"status": "initialized"})
}

type fundRequest struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Amount  string `json:"amount"`
}

// handleFund credits an account balance directly. Operator faucet for
// bootstrapping deployments.
func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	addr, err := parseAddressParam(req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	kind, err := bank.ParseBalanceKind(req.Balance)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.bank.Credit(addr, kind, amount); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("account funded", "address", addr.Hex(), "balance", string(kind), "amount", amount.String())
	writeJSON(w, http.StatusOK, amountPayload(amount))
}
