package server

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type depositRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Asset   string `json:"asset"`
}

type withdrawRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Asset   string `json:"asset"`
}

type borrowRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type repayRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type liquidateRequest struct {
	Liquidator string `json:"liquidator"`
	Address    string `json:"address"`
	Amount     string `json:"amount"`
	Asset      string `json:"asset"`
}

type depositBorrowRequest struct {
	Address       string `json:"address"`
	DepositAmount string `json:"depositAmount"`
	BorrowAmount  string `json:"borrowAmount"`
	Asset         string `json:"asset"`
}

type repayWithdrawRequest struct {
	Address        string `json:"address"`
	RepayAmount    string `json:"repayAmount"`
	WithdrawAmount string `json:"withdrawAmount"`
	Asset          string `json:"asset"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

func amountPayload(v *big.Int) amountResponse {
	if v == nil {
		v = big.NewInt(0)
	}
	return amountResponse{Amount: v.String()}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("malformed request body")
	}
	return nil
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	addr, err := parseAddressParam(req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	kind, err := parseAssetKind(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	credited, err := s.engine.Deposit(addr, amount, kind)
	s.observe("deposit", start, err)
	if err != nil {
		s.logger.Warn("deposit rejected", "address", addr.Hex(), "error", err)
		writeError(w, err)
		return
	}
	s.logger.Info("deposit", "address", addr.Hex(), "amount", amount.String(), "asset", kind.String(), "credited", credited.String())
	writeJSON(w, http.StatusOK, amountPayload(credited))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	addr, err := parseAddressParam(req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	kind, err := parseAssetKind(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	paid, err := s.engine.Withdraw(addr, amount, kind)
	s.observe("withdraw", start, err)
	if err != nil {
		s.logger.Warn("withdraw rejected", "address", addr.Hex(), "error", err)
		writeError(w, err)
		return
	}
	s.logger.Info("withdraw", "address", addr.Hex(), "amount", amount.String(), "asset", kind.String(), "paid", paid.String())
	writeJSON(w, http.StatusOK, amountPayload(paid))
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	addr, err := parseAddressParam(req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	start := time.Now()
	fee, err := s.engine.Borrow(addr, amount)
	s.observe("borrow", start, err)
	if err != nil {
		s.logger.Warn("borrow rejected", "address", addr.Hex(), "error", err)
		writeError(w, err)
		return
	}
	s.logger.Info("borrow", "address", addr.Hex(), "amount", amount.String(), "fee", fee.String())
	writeJSON(w, http.StatusOK, map[string]string{"fee": fee.String()})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	var req repayRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	caller, err := parseAddressParam(req.Caller)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	// Third-party repayment: the caller burns its own tokens against another
	// account's debt. Default to self-repayment.
	depositor := caller
	if req.Address != "" {
		if depositor, err = parseAddressParam(req.Address); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	start := time.Now()
	err = s.engine.Repay(caller, depositor, amount)
	s.observe("repay", start, err)
	if err != nil {
		s.logger.Warn("repay rejected", "caller", caller.Hex(), "address", depositor.Hex(), "error", err)
		writeError(w, err)
		return
	}
	s.logger.Info("repay", "caller", caller.Hex(), "address", depositor.Hex(), "amount", amount.String())
	writeJSON(w, http.StatusOK, amountPayload(amount))
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	liquidator, err := parseAddressParam(req.Liquidator)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	depositor, err := parseAddressParam(req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	kind, err := parseAssetKind(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	seized, err := s.engine.Liquidate(liquidator, depositor, amount, kind)
	s.observe("liquidate", start, err)
	if err != nil {
		s.logger.Warn("liquidation rejected", "liquidator", liquidator.Hex(), "address", depositor.Hex(), "error", err)
		writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordLiquidation()
	}
	s.logger.Info("liquidation", "liquidator", liquidator.Hex(), "address", depositor.Hex(), "repaid", amount.String(), "seized", seized.String(), "asset", kind.String())
	writeJSON(w, http.StatusOK, map[string]string{"seized": seized.String()})
}

func (s *Server) handleDepositAndBorrow(w http.ResponseWriter, r *http.Request) {
	var req depositBorrowRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	addr, err := parseAddressParam(req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	depositAmount, err := parseAmount(req.DepositAmount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	borrowAmount, err := parseAmount(req.BorrowAmount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	kind, err := parseAssetKind(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	fee, err := s.engine.DepositAndBorrow(addr, depositAmount, kind, borrowAmount)
	s.observe("deposit_borrow", start, err)
	if err != nil {
		s.logger.Warn("deposit-borrow rejected", "address", addr.Hex(), "error", err)
		writeError(w, err)
		return
	}
	s.logger.Info("deposit-borrow", "address", addr.Hex(), "deposit", depositAmount.String(), "borrow", borrowAmount.String(), "fee", fee.String())
	writeJSON(w, http.StatusOK, map[string]string{"fee": fee.String()})
}

func (s *Server) handleRepayAndWithdraw(w http.ResponseWriter, r *http.Request) {
	var req repayWithdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	addr, err := parseAddressParam(req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	repayAmount, err := parseAmount(req.RepayAmount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	withdrawAmount, err := parseAmount(req.WithdrawAmount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	kind, err := parseAssetKind(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	paid, err := s.engine.RepayAndWithdraw(addr, repayAmount, withdrawAmount, kind)
	s.observe("repay_withdraw", start, err)
	if err != nil {
		s.logger.Warn("repay-withdraw rejected", "address", addr.Hex(), "error", err)
		writeError(w, err)
		return
	}
	s.logger.Info("repay-withdraw", "address", addr.Hex(), "repay", repayAmount.String(), "paid", paid.String())
	writeJSON(w, http.StatusOK, amountPayload(paid))
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddressParam(chi.URLParam(r, "address"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	summary, err := s.engine.PositionOf(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type termsResponse struct {
	MaxLTV               uint64 `json:"maxLTV"`
	LiquidationThreshold uint64 `json:"liquidationThreshold"`
	LiquidationIncentive uint64 `json:"liquidationIncentive"`
	CloseFactor          uint64 `json:"closeFactor"`
	InterestRatePerUnit  string `json:"interestRatePerUnit"`
	OriginationFee       uint64 `json:"originationFee"`
	DebtCeiling          string `json:"debtCeiling"`
	OutstandingDebt      string `json:"outstandingDebt"`
	AccruedFees          string `json:"accruedFees"`
}

func (s *Server) handleTerms(w http.ResponseWriter, _ *http.Request) {
	terms, err := s.engine.Terms()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, termsResponse{
		MaxLTV:               terms.MaxLTV,
		LiquidationThreshold: terms.LiquidationThreshold,
		LiquidationIncentive: terms.LiquidationIncentive,
		CloseFactor:          terms.CloseFactor,
		InterestRatePerUnit:  terms.InterestRatePerUnit.String(),
		OriginationFee:       terms.OriginationFee,
		DebtCeiling:          terms.DebtCeiling.String(),
		OutstandingDebt:      terms.OutstandingDebt.String(),
		AccruedFees:          terms.AccruedFees.String(),
	})
}

type accountResponse struct {
	Address string `json:"address"`
	Debt    string `json:"debt"`
	Staked  string `json:"staked"`
	Shares  string `json:"shares"`
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddressParam(chi.URLParam(r, "address"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	acc, err := s.bank.AccountOf(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		Address: addr.Hex(),
		Debt:    acc.Debt.String(),
		Staked:  acc.Staked.String(),
		Shares:  acc.Shares.String(),
	})
}
