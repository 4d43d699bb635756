package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Elishaokon13/loonpay/internal/chain"
	"github.com/Elishaokon13/loonpay/internal/config"
	"github.com/Elishaokon13/loonpay/internal/models"
	"github.com/Elishaokon13/loonpay/internal/store"
)

const (
	txDataTTL         = 30 * time.Minute
	completionHorizon = 2 * time.Minute
)

// TransactionStore is the ledger persistence needed by settlement.
type TransactionStore interface {
	Create(ctx context.Context, p store.CreateParams) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status models.Status, txHash string) error
	TransitionStatus(ctx context.Context, id int64, from, to models.Status, txHash string) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	GetByTxHash(ctx context.Context, txHash string) (*models.Transaction, error)
}

// SettlementService owns the per-transaction state machine:
//
//	PENDING -> PROCESSING -> COMPLETED
//	               \-> FAILED
//
// Transitions go through compare-and-set store updates, so a duplicate or
// concurrent settle cannot double-submit and completion happens exactly once.
type SettlementService struct {
	store   TransactionStore
	gateway chain.Gateway
	cfg     config.Chain
	logger  *zap.Logger
}

func NewSettlementService(st TransactionStore, gateway chain.Gateway, cfg config.Chain, logger *zap.Logger) *SettlementService {
	return &SettlementService{store: st, gateway: gateway, cfg: cfg, logger: logger}
}

// CreateTransaction opens a PENDING ledger record for an accepted offer and
// returns the unsigned transfer for the client to sign. When the client echoes
// its offer expiry, stale offers are rejected before anything persists.
func (s *SettlementService) CreateTransaction(ctx context.Context, req models.CreateTransactionRequest) (*models.CreateTransactionResponse, error) {
	if req.OfferExpiresAt != nil && time.Now().After(*req.OfferExpiresAt) {
		return nil, ErrOfferExpired
	}

	id, err := s.store.Create(ctx, store.CreateParams{
		CardNumber:    req.CardNumber,
		CardAmount:    req.CardValueUsd,
		UsdcAmount:    req.UsdcAmount,
		ProcessingFee: req.ProcessingFee,
		NetworkFee:    req.NetworkFee,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		return nil, err
	}

	transfer, err := s.gateway.BuildTransfer(ctx, req.WalletAddress, req.UsdcAmount, s.cfg.ServiceWallet)
	if err != nil {
		// The record stays PENDING: nothing was signed or submitted, the
		// client simply never receives tx data for it.
		s.logger.Error("build transfer failed", zap.Int64("transaction_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("transaction created",
		zap.Int64("transaction_id", id),
		zap.Float64("usdc_amount", req.UsdcAmount))

	return &models.CreateTransactionResponse{
		TransactionID: id,
		TxData:        transfer.TxData,
		EstimatedGas:  transfer.EstimatedGas,
		GasPrice:      s.cfg.GasPrice,
		ExpiresAt:     time.Now().Add(txDataTTL),
	}, nil
}

// Settle submits a signed transaction. The PENDING->PROCESSING transition is
// claimed up front; whichever caller wins it owns the submission, everyone
// else gets ErrSettlementInProgress. Any exit that did not persist a tx hash
// drives the record to FAILED, so no failure path can leave it stuck in
// PROCESSING.
func (s *SettlementService) Settle(ctx context.Context, id int64, signedTx string) (*models.SettleResponse, error) {
	won, err := s.store.TransitionStatus(ctx, id, models.StatusPending, models.StatusProcessing, "")
	if err != nil {
		return nil, err
	}
	if !won {
		if _, err := s.store.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrSettlementInProgress
	}

	settled := false
	defer func() {
		if settled {
			return
		}
		cleanupCtx := context.WithoutCancel(ctx)
		if _, ferr := s.store.TransitionStatus(cleanupCtx, id, models.StatusProcessing, models.StatusFailed, ""); ferr != nil {
			s.logger.Error("failed to mark transaction FAILED", zap.Int64("transaction_id", id), zap.Error(ferr))
		}
	}()

	txHash, err := s.gateway.Submit(ctx, signedTx)
	if err != nil {
		s.logger.Warn("chain submit failed", zap.Int64("transaction_id", id), zap.Error(err))
		return nil, &GatewayError{Err: err}
	}

	if err := s.store.UpdateStatus(ctx, id, models.StatusProcessing, txHash); err != nil {
		return nil, err
	}
	settled = true

	s.logger.Info("transaction submitted",
		zap.Int64("transaction_id", id),
		zap.String("tx_hash", txHash))

	return &models.SettleResponse{
		Status:                  models.StatusProcessing,
		TxHash:                  txHash,
		EstimatedCompletionTime: time.Now().Add(completionHorizon),
	}, nil
}

// CheckStatus reports settlement progress for a submitted hash, advancing the
// record to COMPLETED the first time the chain confirms it. An unconfirmed
// poll is not an error, just "not yet".
func (s *SettlementService) CheckStatus(ctx context.Context, txHash string) (*models.StatusResponse, error) {
	tx, err := s.store.GetByTxHash(ctx, txHash)
	if err != nil {
		return nil, err
	}

	resp := &models.StatusResponse{Status: tx.Status, TxHash: txHash}

	switch tx.Status {
	case models.StatusCompleted, models.StatusFailed:
		completedAt := tx.UpdatedAt
		resp.CompletedAt = &completedAt
		return resp, nil
	}

	status, err := s.gateway.PollStatus(ctx, txHash)
	if err != nil {
		// A failed poll reads as "not confirmed yet"; the client's polling
		// loop is the retry mechanism.
		s.logger.Warn("status poll failed", zap.String("tx_hash", txHash), zap.Error(err))
		return resp, nil
	}
	if !status.Confirmed {
		return resp, nil
	}

	won, err := s.store.TransitionStatus(ctx, tx.ID, models.StatusProcessing, models.StatusCompleted, "")
	if err != nil {
		return nil, err
	}
	if won {
		s.logger.Info("transaction completed",
			zap.Int64("transaction_id", tx.ID),
			zap.Uint64("block_number", status.BlockNumber))
	}

	now := time.Now()
	resp.Status = models.StatusCompleted
	resp.BlockConfirmations = status.Confirmations
	resp.CompletedAt = &now
	return resp, nil
}
