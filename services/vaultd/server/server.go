// Package server exposes the vault engine over HTTP: transaction endpoints
// for position owners and liquidators, read models, and a JWT-gated operator
// surface for parameters, pausing, oracle updates and fee collection.
package server

import (
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakevault/core/bank"
	"stakevault/gateway/middleware"
	nativecommon "stakevault/native/common"
	"stakevault/native/vault"
	"stakevault/observability"
)

// adminScope is the capability a bearer token must carry to reach the
// operator endpoints.
const adminScope = "vault:admin"

// VaultEngine is the slice of the engine the HTTP layer depends on.
type VaultEngine interface {
	Deposit(depositor common.Address, amount *big.Int, kind vault.AssetKind) (*big.Int, error)
	Withdraw(caller common.Address, amount *big.Int, kind vault.AssetKind) (*big.Int, error)
	Borrow(borrower common.Address, amount *big.Int) (*big.Int, error)
	Repay(caller, depositor common.Address, amount *big.Int) error
	Liquidate(liquidator, depositor common.Address, amount *big.Int, kind vault.AssetKind) (*big.Int, error)
	DepositAndBorrow(caller common.Address, depositAmount *big.Int, kind vault.AssetKind, borrowAmount *big.Int) (*big.Int, error)
	RepayAndWithdraw(caller common.Address, repayAmount, withdrawAmount *big.Int, kind vault.AssetKind) (*big.Int, error)
	CollectFees() (*big.Int, error)
	SetParameter(kind vault.ParamKind, value *big.Int) error
	InitDebtToken(token vault.DebtToken) error
	PositionOf(addr common.Address) (*vault.PositionSummary, error)
	Terms() (*vault.GlobalTerms, error)
}

// BankOps is the operator-facing slice of the bank: faucet credits, oracle
// price pushes and conversion index moves.
type BankOps interface {
	Credit(addr common.Address, kind bank.BalanceKind, amount *big.Int) error
	SetAssetPrice(price *big.Int) error
	SetConversionIndex(index *big.Int) error
	AccountOf(addr common.Address) (*bank.Account, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine    VaultEngine
	Bank      BankOps
	DebtToken vault.DebtToken
	Pauses    *nativecommon.PauseSet
	Logger    *slog.Logger
	Metrics   *observability.VaultMetrics
	Auth      middleware.AuthConfig
	RateLimit middleware.RateLimit
}

// Server encapsulates the HTTP API over the vault engine.
type Server struct {
	engine    VaultEngine
	bank      BankOps
	debtToken vault.DebtToken
	pauses    *nativecommon.PauseSet
	logger    *slog.Logger
	metrics   *observability.VaultMetrics

	router http.Handler
}

// New constructs a configured HTTP router.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		engine:    cfg.Engine,
		bank:      cfg.Bank,
		debtToken: cfg.DebtToken,
		pauses:    cfg.Pauses,
		logger:    logger,
		metrics:   cfg.Metrics,
	}
	srv.router = srv.buildRouter(cfg)
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	authn := middleware.NewAuthenticator(cfg.Auth, s.logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, s.logger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/vault", func(api chi.Router) {
		api.Get("/terms", s.handleTerms)
		api.Get("/position/{address}", s.handlePosition)

		api.Group(func(tx chi.Router) {
			tx.Use(limiter.Middleware())
			tx.Post("/deposit", s.handleDeposit)
			tx.Post("/withdraw", s.handleWithdraw)
			tx.Post("/borrow", s.handleBorrow)
			tx.Post("/repay", s.handleRepay)
			tx.Post("/liquidate", s.handleLiquidate)
			tx.Post("/deposit-borrow", s.handleDepositAndBorrow)
			tx.Post("/repay-withdraw", s.handleRepayAndWithdraw)
		})
	})

	r.Route("/v1/bank", func(api chi.Router) {
		api.Get("/account/{address}", s.handleAccount)
	})

	r.Route("/v1/admin", func(admin chi.Router) {
		admin.Use(authn.Middleware(adminScope))
		admin.Post("/params", s.handleSetParameter)
		admin.Post("/collect-fees", s.handleCollectFees)
		admin.Post("/pause", s.handlePause)
		admin.Post("/oracle", s.handleOracle)
		admin.Post("/debt-token", s.handleInitDebtToken)
		admin.Post("/fund", s.handleFund)
	})

	return r
}

// requestID tags each request with a correlation identifier, honoring one
// supplied by an upstream proxy.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// observe records one operation's metrics and refreshes the ledger gauges on
// success.
func (s *Server) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(operation, time.Since(start), err)
	if err != nil {
		return
	}
	terms, termsErr := s.engine.Terms()
	if termsErr != nil {
		return
	}
	s.metrics.RecordLedger(terms.OutstandingDebt, terms.AccruedFees)
}

func parseAddressParam(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, errors.New("invalid address")
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, errors.New("address must not be zero")
	}
	return addr, nil
}

// parseAmount accepts a positive base-10 integer that fits in 256 bits, the
// word size of the ledger's arithmetic.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, errors.New("invalid amount")
	}
	if value.IsZero() {
		return nil, errors.New("amount must be positive")
	}
	return value.ToBig(), nil
}

func parseAssetKind(raw string) (vault.AssetKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "shares":
		return vault.AssetShares, nil
	case "staked":
		return vault.AssetStaked, nil
	default:
		return 0, vault.ErrUnknownAssetKind
	}
}
