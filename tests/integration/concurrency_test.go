package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ledger-core/internal/adapter/storage/memory"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/internal/service"
	"ledger-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// riskApprover approves every transfer. Shared by the API-level tests.
type riskApprover struct{}

func (riskApprover) AssessTransfer(context.Context, ports.TransferRiskRequest) (ports.RiskDecision, error) {
	return ports.RiskDecision{Approved: true, Level: "low"}, nil
}

type ledgerStack struct {
	svc      ports.LedgerService
	balances *memory.BalanceReadModel
	store    *memory.EventStore
}

func newLedgerStack(t *testing.T) *ledgerStack {
	t.Helper()
	log := zerolog.Nop()

	store := memory.NewEventStore()
	balances := memory.NewBalanceReadModel()
	bus := service.NewInMemoryEventBus(log)
	service.NewBalanceProjector(balances, store, log).Register(bus)

	accounts := service.NewRepository(store, memory.NewSnapshotStore(), bus, domain.NewAccount, 0, log)
	return &ledgerStack{
		svc:      service.NewLedgerService(accounts, store, balances, riskApprover{}, 5, 1<<40, log),
		balances: balances,
		store:    store,
	}
}

// retryOnConflict runs op until it returns nil or a non-conflict error.
// Concurrency conflicts are expected under contention; anything else fails
// the test.
func retryOnConflict(t *testing.T, op func() error) error {
	t.Helper()
	for {
		err := op()
		if err == nil {
			return nil
		}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "EVT_001" {
			continue
		}
		return err
	}
}

func TestConcurrentCreditsNoLostUpdates(t *testing.T) {
	stack := newLedgerStack(t)
	ctx := context.Background()

	accountID, err := stack.svc.OpenAccount(ctx, uuid.New())
	require.NoError(t, err)

	const workers = 8
	const creditsPerWorker = 5

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < creditsPerWorker; i++ {
				err := retryOnConflict(t, func() error {
					return stack.svc.Credit(ctx, ports.EntryRequest{
						AccountID: accountID,
						AssetCode: "USD",
						Amount:    10,
					})
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	balances, err := stack.svc.GetBalances(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*creditsPerWorker*10), balances["USD"])

	history, err := stack.svc.GetHistory(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, history, 1+workers*creditsPerWorker)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	stack := newLedgerStack(t)
	ctx := context.Background()

	accountID, err := stack.svc.OpenAccount(ctx, uuid.New())
	require.NoError(t, err)
	require.NoError(t, stack.svc.Credit(ctx, ports.EntryRequest{
		AccountID: accountID, AssetCode: "USD", Amount: 100,
	}))

	const workers = 10
	var succeeded int64
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := retryOnConflict(t, func() error {
				return stack.svc.Debit(ctx, ports.EntryRequest{
					AccountID: accountID, AssetCode: "USD", Amount: 30,
				})
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			// The only acceptable failure is running out of funds.
			var appErr *apperror.AppError
			if assert.True(t, errors.As(err, &appErr)) {
				assert.Equal(t, "LED_001", appErr.Code)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, succeeded, int64(3))
	balances, err := stack.svc.GetBalances(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 100-succeeded*30, balances["USD"])
	assert.GreaterOrEqual(t, balances["USD"], int64(0))
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	stack := newLedgerStack(t)
	ctx := context.Background()

	src, err := stack.svc.OpenAccount(ctx, uuid.New())
	require.NoError(t, err)
	dst, err := stack.svc.OpenAccount(ctx, uuid.New())
	require.NoError(t, err)
	require.NoError(t, stack.svc.Credit(ctx, ports.EntryRequest{
		AccountID: src, AssetCode: "USD", Amount: 100,
	}))

	const workers = 4
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Transfers may fail on insufficient funds; the invariant under
			// test is conservation, not success.
			_ = retryOnConflict(t, func() error {
				return stack.svc.Transfer(ctx, ports.TransferRequest{
					TransferID:    uuid.New(),
					FromAccountID: src,
					ToAccountID:   dst,
					AssetCode:     "USD",
					Amount:        40,
				})
			})
		}()
	}
	wg.Wait()

	srcBalances, err := stack.svc.GetBalances(ctx, src)
	require.NoError(t, err)
	dstBalances, err := stack.svc.GetBalances(ctx, dst)
	require.NoError(t, err)

	assert.Equal(t, int64(100), srcBalances["USD"]+dstBalances["USD"])
	assert.GreaterOrEqual(t, srcBalances["USD"], int64(0))
}
