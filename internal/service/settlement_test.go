package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Elishaokon13/loonpay/internal/chain"
	"github.com/Elishaokon13/loonpay/internal/config"
	"github.com/Elishaokon13/loonpay/internal/models"
	"github.com/Elishaokon13/loonpay/internal/store"
)

// fakeStore is an in-memory TransactionStore with the same transition
// semantics as the Postgres implementation.
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	records    map[int64]*models.Transaction
	failUpdate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, records: map[int64]*models.Transaction{}}
}

func (f *fakeStore) Create(ctx context.Context, p store.CreateParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	now := time.Now()
	f.records[id] = &models.Transaction{
		ID:            id,
		CardNumber:    p.CardNumber,
		CardAmount:    p.CardAmount,
		UsdcAmount:    p.UsdcAmount,
		ProcessingFee: p.ProcessingFee,
		NetworkFee:    p.NetworkFee,
		WalletAddress: p.WalletAddress,
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return id, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id int64, status models.Status, txHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return errors.New("storage down")
	}
	t, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Status = status
	if txHash != "" {
		t.TxHash = txHash
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) TransitionStatus(ctx context.Context, id int64, from, to models.Status, txHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.records[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	if txHash != "" {
		t.TxHash = txHash
	}
	t.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) GetByTxHash(ctx context.Context, txHash string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.records {
		if t.TxHash == txHash && txHash != "" {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// fakeGateway is a scripted chain.Gateway.
type fakeGateway struct {
	submitHash string
	submitErr  error
	pollStatus chain.TxStatus
	pollErr    error
	polls      int
}

func (f *fakeGateway) BuildTransfer(ctx context.Context, to string, amount float64, from string) (chain.UnsignedTransfer, error) {
	return chain.UnsignedTransfer{TxData: "0xdeadbeef", EstimatedGas: 65000}, nil
}

func (f *fakeGateway) Submit(ctx context.Context, signedTx string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitHash, nil
}

func (f *fakeGateway) PollStatus(ctx context.Context, txHash string) (chain.TxStatus, error) {
	f.polls++
	return f.pollStatus, f.pollErr
}

func testSettlement(st TransactionStore, gw chain.Gateway) *SettlementService {
	cfg := config.Chain{
		ServiceWallet: "0x1234567890123456789012345678901234567890",
		EstimatedGas:  65000,
		GasPrice:      "0.0000001",
	}
	return NewSettlementService(st, gw, cfg, zap.NewNop())
}

func createReq() models.CreateTransactionRequest {
	return models.CreateTransactionRequest{
		ProviderID:    "target",
		CardNumber:    "123456789012345",
		CardValueUsd:  100,
		UsdcAmount:    89.15,
		ProcessingFee: 8,
		NetworkFee:    2.76,
		WalletAddress: "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd",
	}
}

func TestCreateTransaction(t *testing.T) {
	st := newFakeStore()
	svc := testSettlement(st, &fakeGateway{submitHash: "0xaaa"})

	resp, err := svc.CreateTransaction(context.Background(), createReq())
	require.NoError(t, err)

	assert.Equal(t, int64(1), resp.TransactionID)
	assert.Equal(t, "0xdeadbeef", resp.TxData)
	assert.Equal(t, uint64(65000), resp.EstimatedGas)
	assert.Equal(t, "0.0000001", resp.GasPrice)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), resp.ExpiresAt, 5*time.Second)

	stored, err := st.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, stored.TxHash)
	// Financial fields are stored verbatim, never recomputed.
	assert.Equal(t, 89.15, stored.UsdcAmount)
	assert.Equal(t, 8.0, stored.ProcessingFee)
	assert.Equal(t, 2.76, stored.NetworkFee)
}

func TestCreateTransactionExpiredOffer(t *testing.T) {
	st := newFakeStore()
	svc := testSettlement(st, &fakeGateway{})

	req := createReq()
	stale := time.Now().Add(-time.Minute)
	req.OfferExpiresAt = &stale

	_, err := svc.CreateTransaction(context.Background(), req)
	assert.ErrorIs(t, err, ErrOfferExpired)
	assert.Empty(t, st.records)
}

func TestSettle(t *testing.T) {
	st := newFakeStore()
	svc := testSettlement(st, &fakeGateway{submitHash: "0xfeedface"})

	id, _ := st.Create(context.Background(), store.CreateParams{CardNumber: "123", WalletAddress: "0xabc"})

	resp, err := svc.Settle(context.Background(), id, "0xsigned")
	require.NoError(t, err)

	assert.Equal(t, models.StatusProcessing, resp.Status)
	assert.Equal(t, "0xfeedface", resp.TxHash)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), resp.EstimatedCompletionTime, 5*time.Second)

	stored, _ := st.GetByID(context.Background(), id)
	assert.Equal(t, models.StatusProcessing, stored.Status)
	assert.Equal(t, "0xfeedface", stored.TxHash)
}

func TestSettleGatewayFailure(t *testing.T) {
	st := newFakeStore()
	svc := testSettlement(st, &fakeGateway{submitErr: errors.New("broadcast failed")})

	id, _ := st.Create(context.Background(), store.CreateParams{CardNumber: "123", WalletAddress: "0xabc"})

	_, err := svc.Settle(context.Background(), id, "0xsigned")
	require.Error(t, err)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, gwErr.Error(), "broadcast failed")

	stored, _ := st.GetByID(context.Background(), id)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Empty(t, stored.TxHash)
}

func TestSettleUnknownID(t *testing.T) {
	svc := testSettlement(newFakeStore(), &fakeGateway{submitHash: "0xaaa"})

	_, err := svc.Settle(context.Background(), 404, "0xsigned")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSettleTwice(t *testing.T) {
	st := newFakeStore()
	svc := testSettlement(st, &fakeGateway{submitHash: "0xaaa"})

	id, _ := st.Create(context.Background(), store.CreateParams{CardNumber: "123", WalletAddress: "0xabc"})

	_, err := svc.Settle(context.Background(), id, "0xsigned")
	require.NoError(t, err)

	_, err = svc.Settle(context.Background(), id, "0xsigned")
	assert.ErrorIs(t, err, ErrSettlementInProgress)

	// The winning settlement's hash survives.
	stored, _ := st.GetByID(context.Background(), id)
	assert.Equal(t, "0xaaa", stored.TxHash)
}

func TestSettleHashPersistFailureReachesFailed(t *testing.T) {
	st := newFakeStore()
	svc := testSettlement(st, &fakeGateway{submitHash: "0xaaa"})

	id, _ := st.Create(context.Background(), store.CreateParams{CardNumber: "123", WalletAddress: "0xabc"})

	st.failUpdate = true
	_, err := svc.Settle(context.Background(), id, "0xsigned")
	require.Error(t, err)
	st.failUpdate = false

	// The cleanup transition ran: the record cannot be stuck in PROCESSING.
	stored, _ := st.GetByID(context.Background(), id)
	assert.Equal(t, models.StatusFailed, stored.Status)
}

func settledTransaction(t *testing.T, st *fakeStore, gw *fakeGateway) string {
	t.Helper()
	svc := testSettlement(st, gw)
	id, _ := st.Create(context.Background(), store.CreateParams{CardNumber: "123", WalletAddress: "0xabc"})
	resp, err := svc.Settle(context.Background(), id, "0xsigned")
	require.NoError(t, err)
	return resp.TxHash
}

func TestCheckStatusUnconfirmed(t *testing.T) {
	st := newFakeStore()
	gw := &fakeGateway{submitHash: "0xbbb"}
	hash := settledTransaction(t, st, gw)

	resp, err := testSettlement(st, gw).CheckStatus(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, resp.Status)
	assert.Nil(t, resp.CompletedAt)
}

func TestCheckStatusConfirms(t *testing.T) {
	st := newFakeStore()
	gw := &fakeGateway{submitHash: "0xbbb"}
	hash := settledTransaction(t, st, gw)

	gw.pollStatus = chain.TxStatus{Confirmed: true, BlockNumber: 15_000_123, Confirmations: 3}
	svc := testSettlement(st, gw)

	resp, err := svc.CheckStatus(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, resp.Status)
	assert.Equal(t, 3, resp.BlockConfirmations)
	require.NotNil(t, resp.CompletedAt)

	stored, _ := st.GetByTxHash(context.Background(), hash)
	assert.Equal(t, models.StatusCompleted, stored.Status)

	// A later poll sees the terminal state without touching the gateway.
	polls := gw.polls
	resp, err = svc.CheckStatus(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, resp.Status)
	assert.Equal(t, polls, gw.polls)
}

func TestCheckStatusPollErrorReadsAsPending(t *testing.T) {
	st := newFakeStore()
	gw := &fakeGateway{submitHash: "0xbbb"}
	hash := settledTransaction(t, st, gw)

	gw.pollErr = errors.New("node unreachable")
	resp, err := testSettlement(st, gw).CheckStatus(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, resp.Status)
}

func TestCheckStatusUnknownHash(t *testing.T) {
	svc := testSettlement(newFakeStore(), &fakeGateway{})
	_, err := svc.CheckStatus(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckStatusFailedIsTerminal(t *testing.T) {
	st := newFakeStore()
	gw := &fakeGateway{submitErr: errors.New("broadcast failed")}
	svc := testSettlement(st, gw)

	id, _ := st.Create(context.Background(), store.CreateParams{CardNumber: "123", WalletAddress: "0xabc"})
	_, err := svc.Settle(context.Background(), id, "0xsigned")
	require.Error(t, err)

	// Hand the failed record a hash directly so it is reachable by lookup.
	st.records[id].TxHash = "0xccc"

	resp, err := svc.CheckStatus(context.Background(), "0xccc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, resp.Status)
	assert.NotNil(t, resp.CompletedAt)
	assert.Zero(t, gw.polls)
}
