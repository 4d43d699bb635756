package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/Elishaokon13/loonpay/internal/models"
	"github.com/Elishaokon13/loonpay/internal/service"
	"github.com/Elishaokon13/loonpay/internal/store"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loonpay_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loonpay_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Validator produces offers from submitted card details.
type Validator interface {
	Validate(ctx context.Context, req models.ValidateRequest) (*models.Offer, error)
}

// Settler drives the transaction state machine.
type Settler interface {
	CreateTransaction(ctx context.Context, req models.CreateTransactionRequest) (*models.CreateTransactionResponse, error)
	Settle(ctx context.Context, id int64, signedTx string) (*models.SettleResponse, error)
	CheckStatus(ctx context.Context, txHash string) (*models.StatusResponse, error)
}

// Ledger is the read-only admin view over the transaction table.
type Ledger interface {
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	List(ctx context.Context, page, pageSize int) ([]models.Transaction, int64, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

type Handler struct {
	validator Validator
	settler   Settler
	ledger    Ledger
	logger    *zap.Logger
}

func NewHandler(v Validator, s Settler, l Ledger, logger *zap.Logger) *Handler {
	return &Handler{validator: v, settler: s, ledger: l, logger: logger}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ValidateHandler implements POST /api/validate.
func (h *Handler) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/api/validate"))
	defer timer.ObserveDuration()

	var req models.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/api/validate")
		return
	}
	if req.ProviderID == "" || req.CardNumber == "" {
		h.respondError(w, http.StatusBadRequest, "Provider ID and card number are required", "POST", "/api/validate")
		return
	}

	offer, err := h.validator.Validate(r.Context(), req)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			h.respondError(w, http.StatusBadRequest, vErr.Message, "POST", "/api/validate")
			return
		}
		h.logger.Error("validation failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to validate gift card", "POST", "/api/validate")
		return
	}

	h.respondData(w, http.StatusOK, offer, "POST", "/api/validate")
}

// CreateTransactionHandler implements POST /api/transactions.
func (h *Handler) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/api/transactions"))
	defer timer.ObserveDuration()

	var req models.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/api/transactions")
		return
	}
	if req.ProviderID == "" || req.CardNumber == "" || req.CardValueUsd <= 0 || req.UsdcAmount <= 0 || req.WalletAddress == "" {
		h.respondError(w, http.StatusBadRequest, "Missing required fields", "POST", "/api/transactions")
		return
	}

	resp, err := h.settler.CreateTransaction(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrOfferExpired) {
			h.respondError(w, http.StatusBadRequest, err.Error(), "POST", "/api/transactions")
			return
		}
		h.logger.Error("transaction creation failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to create transaction", "POST", "/api/transactions")
		return
	}

	h.respondData(w, http.StatusOK, resp, "POST", "/api/transactions")
}

// SettleHandler implements POST /api/settle.
func (h *Handler) SettleHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/api/settle"))
	defer timer.ObserveDuration()

	var req models.SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/api/settle")
		return
	}
	if req.TransactionID == 0 || req.SignedTx == "" {
		h.respondError(w, http.StatusBadRequest, "Transaction ID and signed transaction are required", "POST", "/api/settle")
		return
	}

	resp, err := h.settler.Settle(r.Context(), req.TransactionID, req.SignedTx)
	if err != nil {
		var gwErr *service.GatewayError
		switch {
		case errors.Is(err, store.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "Transaction not found", "POST", "/api/settle")
		case errors.Is(err, service.ErrSettlementInProgress):
			h.respondError(w, http.StatusConflict, err.Error(), "POST", "/api/settle")
		case errors.As(err, &gwErr):
			h.respondError(w, http.StatusInternalServerError, gwErr.Error(), "POST", "/api/settle")
		default:
			h.logger.Error("settlement failed", zap.Int64("transaction_id", req.TransactionID), zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "Failed to settle transaction", "POST", "/api/settle")
		}
		return
	}

	h.respondData(w, http.StatusOK, resp, "POST", "/api/settle")
}

// StatusHandler implements GET /api/status.
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", "/api/status"))
	defer timer.ObserveDuration()

	txHash := r.URL.Query().Get("txHash")
	if txHash == "" {
		h.respondError(w, http.StatusBadRequest, "Transaction hash is required", "GET", "/api/status")
		return
	}

	resp, err := h.settler.CheckStatus(r.Context(), txHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "Transaction not found", "GET", "/api/status")
			return
		}
		h.logger.Error("status check failed", zap.String("tx_hash", txHash), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to check transaction status", "GET", "/api/status")
		return
	}

	h.respondData(w, http.StatusOK, resp, "GET", "/api/status")
}

// ListTransactionsHandler implements GET /api/admin/transactions. Card numbers
// are masked on the way out; the ledger keeps them whole.
func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", "/api/admin/transactions"))
	defer timer.ObserveDuration()

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 10)

	txs, total, err := h.ledger.List(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("transaction list failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch transactions", "GET", "/api/admin/transactions")
		return
	}

	masked := make([]models.Transaction, len(txs))
	for i, t := range txs {
		masked[i] = t.Masked()
	}

	pages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		pages++
	}

	h.respondData(w, http.StatusOK, map[string]any{
		"transactions": masked,
		"pagination": models.Pagination{
			Total:   total,
			Pages:   pages,
			Current: page,
		},
	}, "GET", "/api/admin/transactions")
}

// GetTransactionHandler implements GET /api/admin/transactions/{id}.
func (h *Handler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", "/api/admin/transactions/{id}"))
	defer timer.ObserveDuration()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid transaction id", "GET", "/api/admin/transactions/{id}")
		return
	}

	tx, err := h.ledger.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "Transaction not found", "GET", "/api/admin/transactions/{id}")
			return
		}
		h.logger.Error("transaction fetch failed", zap.Int64("id", id), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch transaction", "GET", "/api/admin/transactions/{id}")
		return
	}

	h.respondData(w, http.StatusOK, tx.Masked(), "GET", "/api/admin/transactions/{id}")
}

// StatsHandler implements GET /api/admin/stats.
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", "/api/admin/stats"))
	defer timer.ObserveDuration()

	stats, err := h.ledger.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats aggregation failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch transaction statistics", "GET", "/api/admin/stats")
		return
	}
	h.respondData(w, http.StatusOK, stats, "GET", "/api/admin/stats")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// Helpers

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) respondData(w http.ResponseWriter, code int, data any, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	respondWithJSON(w, code, envelope{Success: true, Data: data})
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	respondWithJSON(w, code, envelope{Success: false, Error: msg})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
