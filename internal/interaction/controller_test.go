package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"ChainCounter/internal/contract"
	xerrors "ChainCounter/internal/errors"
	"ChainCounter/internal/events"
	"ChainCounter/internal/testutil/chaintest"
	"ChainCounter/internal/web3"
	"ChainCounter/internal/web3/wallet"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	counter   int64
	owner     common.Address
	account   common.Address

	connectErr error
	counterErr error
	ownerErr   error
	walletErr  error
	writeErr   error

	entered chan struct{}
	release chan struct{}
}

func newFakeClient(counter int64) *fakeClient {
	return &fakeClient{
		counter: counter,
		owner:   common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		account: common.HexToAddress("0x00000000000000000000000000000000000000b2"),
	}
}

func (f *fakeClient) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) GetCounter(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counterErr != nil {
		return nil, f.counterErr
	}
	return big.NewInt(f.counter), nil
}

func (f *fakeClient) GetOwner(context.Context) (common.Address, error) {
	return f.owner, f.ownerErr
}

func (f *fakeClient) GetWalletAddress(context.Context) (common.Address, error) {
	return f.account, f.walletErr
}

func (f *fakeClient) IncrementCounter(ctx context.Context) (contract.Receipt, error) {
	return f.apply(ctx, "increment", func(v int64) int64 { return v + 1 })
}

func (f *fakeClient) DecrementCounter(ctx context.Context) (contract.Receipt, error) {
	return f.apply(ctx, "decrement", func(v int64) int64 { return v - 1 })
}

func (f *fakeClient) ResetCounter(ctx context.Context) (contract.Receipt, error) {
	return f.apply(ctx, "reset", func(int64) int64 { return 0 })
}

func (f *fakeClient) apply(_ context.Context, action string, fn func(int64) int64) (contract.Receipt, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return contract.Receipt{}, f.writeErr
	}
	f.counter = fn(f.counter)
	return contract.Receipt{Action: action, TxHash: common.HexToHash("0x01"), Block: 7}, nil
}

func TestConnectWalletLoadsSessionInfo(t *testing.T) {
	client := newFakeClient(5)
	bus := events.NewMemoryBus(8)
	ctrl := NewController(client, WithPublisher(bus))

	require.NoError(t, ctrl.ConnectWallet(context.Background()))

	st := ctrl.State()
	assert.Equal(t, contract.Connected, st.Connection)
	assert.False(t, st.Busy)
	assert.Nil(t, st.Error)
	require.NotNil(t, st.Counter)
	assert.Equal(t, int64(5), st.Counter.Int64())
	require.NotNil(t, st.Owner)
	assert.Equal(t, client.owner, *st.Owner)
	require.NotNil(t, st.WalletAddress)
	assert.Equal(t, client.account, *st.WalletAddress)

	require.NoError(t, bus.Close())
	var got []events.Event
	_ = bus.Subscribe(context.Background(), func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})
	require.Len(t, got, 1)
	assert.Equal(t, events.TypeWalletConnected, got[0].Type)
	assert.Equal(t, client.account.Hex(), got[0].Account)
	assert.Equal(t, "5", got[0].Counter)
}

func TestConnectWalletOnlyFromDisconnected(t *testing.T) {
	ctrl := NewController(newFakeClient(1))
	require.NoError(t, ctrl.ConnectWallet(context.Background()))
	before := ctrl.State()

	err := ctrl.ConnectWallet(context.Background())
	require.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, before.Revision, ctrl.State().Revision)
}

func TestConnectWalletFailureStaysDisconnected(t *testing.T) {
	client := newFakeClient(0)
	client.connectErr = xerrors.New(xerrors.CodeProviderMissing, "")
	ctrl := NewController(client)

	err := ctrl.ConnectWallet(context.Background())
	require.Error(t, err)

	st := ctrl.State()
	assert.Equal(t, contract.Disconnected, st.Connection)
	assert.False(t, st.Busy)
	require.NotNil(t, st.Error)
	assert.Equal(t, xerrors.CodeProviderMissing, st.Error.Kind)
	assert.Equal(t, OpConnect, st.Error.Operation)
	assert.Nil(t, st.Counter)
}

func TestSecondaryReadFailuresDoNotBlockConnect(t *testing.T) {
	client := newFakeClient(3)
	client.ownerErr = errors.New("owner call failed")
	client.walletErr = errors.New("signer gone")
	ctrl := NewController(client)

	require.NoError(t, ctrl.ConnectWallet(context.Background()))

	st := ctrl.State()
	assert.Equal(t, contract.Connected, st.Connection)
	assert.Nil(t, st.Error)
	assert.Nil(t, st.Owner)
	assert.Nil(t, st.WalletAddress)
	assert.Equal(t, int64(3), st.Counter.Int64())
}

func TestCounterReadFailureDuringConnectIsSurfaced(t *testing.T) {
	client := newFakeClient(3)
	client.counterErr = xerrors.Wrap(xerrors.CodeChainFailure, errors.New("rpc timeout"), "")
	ctrl := NewController(client)

	err := ctrl.ConnectWallet(context.Background())
	require.Error(t, err)

	st := ctrl.State()
	assert.Equal(t, contract.Connected, st.Connection)
	assert.False(t, st.Busy)
	require.NotNil(t, st.Error)
	assert.Equal(t, "rpc timeout", st.Error.Message)
	assert.Nil(t, st.Counter)
}

func TestWritesRequireConnected(t *testing.T) {
	ctrl := NewController(newFakeClient(0))
	ctx := context.Background()

	for name, op := range map[string]func(context.Context) error{
		"increment": ctrl.Increment,
		"decrement": ctrl.Decrement,
		"reset":     ctrl.Reset,
		"refresh":   ctrl.Refresh,
	} {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, op(ctx), ErrNotConnected)
		})
	}
	assert.Zero(t, ctrl.State().Revision)
}

func TestWriteFailureKeepsCounter(t *testing.T) {
	client := newFakeClient(4)
	bus := events.NewMemoryBus(8)
	ctrl := NewController(client, WithPublisher(bus))
	ctx := context.Background()
	require.NoError(t, ctrl.ConnectWallet(ctx))

	client.writeErr = xerrors.Wrap(xerrors.CodeProviderRejected, wallet.ErrRequestRejected, "")
	err := ctrl.Decrement(ctx)
	require.ErrorIs(t, err, wallet.ErrRequestRejected)

	st := ctrl.State()
	assert.False(t, st.Busy)
	assert.Equal(t, int64(4), st.Counter.Int64())
	require.NotNil(t, st.Error)
	assert.Equal(t, xerrors.CodeProviderRejected, st.Error.Kind)
	assert.Equal(t, wallet.ErrRequestRejected.Error(), st.Error.Message)

	client.writeErr = nil
	require.NoError(t, ctrl.Increment(ctx))
	st = ctrl.State()
	assert.Nil(t, st.Error, "a new action clears the previous error")
	assert.Equal(t, int64(5), st.Counter.Int64())
	require.NotNil(t, st.LastTx)
	assert.Equal(t, "increment", st.LastTx.Action)

	require.NoError(t, bus.Close())
	var types []events.Type
	_ = bus.Subscribe(ctx, func(_ context.Context, e events.Event) error {
		types = append(types, e.Type)
		return nil
	})
	assert.Equal(t, []events.Type{events.TypeWalletConnected, events.TypeOperationFailed, events.TypeCounterUpdated}, types)
}

func TestBusyRejectsSecondAction(t *testing.T) {
	client := newFakeClient(0)
	ctrl := NewController(client)
	ctx := context.Background()
	require.NoError(t, ctrl.ConnectWallet(ctx))

	client.entered = make(chan struct{})
	client.release = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- ctrl.Increment(ctx) }()
	<-client.entered

	busy := ctrl.State()
	assert.True(t, busy.Busy)
	require.ErrorIs(t, ctrl.Reset(ctx), ErrBusy)
	require.ErrorIs(t, ctrl.Refresh(ctx), ErrBusy)
	assert.Equal(t, busy.Revision, ctrl.State().Revision, "rejected actions leave state untouched")

	close(client.release)
	require.NoError(t, <-done)
	client.entered = nil

	st := ctrl.State()
	assert.False(t, st.Busy)
	assert.Equal(t, int64(1), st.Counter.Int64())
}

func TestSubscribeSeesOrderedRevisions(t *testing.T) {
	ctrl := NewController(newFakeClient(2))
	var (
		mu        sync.Mutex
		revisions []uint64
		busy      []bool
	)
	unsubscribe := ctrl.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		revisions = append(revisions, s.Revision)
		busy = append(busy, s.Busy)
	})

	ctx := context.Background()
	require.NoError(t, ctrl.ConnectWallet(ctx))
	require.NoError(t, ctrl.Increment(ctx))
	unsubscribe()
	require.NoError(t, ctrl.Reset(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2, 3, 4}, revisions)
	assert.Equal(t, []bool{true, false, true, false}, busy)
}

func TestStateJSON(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	st := State{
		Connection: contract.Connected,
		Counter:    new(big.Int).Lsh(big.NewInt(1), 100),
		Owner:      &owner,
		Error:      &OperationError{Kind: xerrors.CodeChainFailure, Operation: OpRefresh, Message: "boom"},
		Revision:   9,
	}
	payload, err := json.Marshal(st)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "connected", decoded["connection"])
	assert.Equal(t, "1267650600228229401496703205376", decoded["counter"])
	assert.Equal(t, owner.Hex(), decoded["owner"])
	assert.Equal(t, "CHAIN_FAILURE", decoded["error"].(map[string]any)["code"])
	assert.NotContains(t, decoded, "wallet_address")

	empty, err := json.Marshal(State{})
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"counter":null`)
}

func TestScenarioAgainstSimulatedChain(t *testing.T) {
	chain := chaintest.New(t, 5)
	var (
		mu   sync.Mutex
		deny bool
	)
	approve := func(_ context.Context, req wallet.Request) error {
		mu.Lock()
		defer mu.Unlock()
		if deny && req.Kind == wallet.RequestSignTx {
			return wallet.ErrRequestRejected
		}
		return nil
	}
	provider := chain.Provider(t, chain.User, wallet.WithApproval(approve))
	client, err := contract.New(wallet.Browser(provider), contract.Config{Address: chain.Contract, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	ctrl := NewController(client)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.ErrorIs(t, ctrl.Refresh(ctx), ErrNotConnected)
	require.NoError(t, ctrl.ConnectWallet(ctx))
	assert.Equal(t, int64(5), ctrl.State().Counter.Int64())
	assert.Equal(t, chaintest.Address(chain.Deployer), *ctrl.State().Owner)

	require.NoError(t, ctrl.Increment(ctx))
	assert.Equal(t, int64(6), ctrl.State().Counter.Int64())

	require.NoError(t, ctrl.Decrement(ctx))
	assert.Equal(t, int64(5), ctrl.State().Counter.Int64())

	require.NoError(t, ctrl.Reset(ctx))
	assert.Equal(t, int64(0), ctrl.State().Counter.Int64())

	mu.Lock()
	deny = true
	mu.Unlock()
	require.Error(t, ctrl.Decrement(ctx))

	st := ctrl.State()
	assert.False(t, st.Busy)
	require.NotNil(t, st.Error)
	assert.Equal(t, OpDecrement, st.Error.Operation)
	assert.Equal(t, int64(0), st.Counter.Int64())

	value, err := client.GetCounter(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), value.Int64())
}

// lateReceipts reports the first few receipt lookups as not yet mined and
// calls onPoll on every lookup.
type lateReceipts struct {
	web3.Backend
	misses int
	onPoll func()
}

func (b *lateReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if b.onPoll != nil {
		b.onPoll()
	}
	if b.misses > 0 {
		b.misses--
		return nil, gethcore.NotFound
	}
	return b.Backend.TransactionReceipt(ctx, hash)
}

func TestWriteOutlivesCallerCancellation(t *testing.T) {
	chain := chaintest.New(t, 5)
	backend := &lateReceipts{Backend: chain.Client, misses: 3}
	provider, err := wallet.NewKeyedProvider(backend, chain.User)
	require.NoError(t, err)
	client, err := contract.New(wallet.Browser(provider), contract.Config{Address: chain.Contract, PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	ctrl := NewController(client)
	require.NoError(t, ctrl.ConnectWallet(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend.onPoll = cancel

	require.NoError(t, ctrl.Increment(ctx))
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	st := ctrl.State()
	assert.Nil(t, st.Error)
	assert.False(t, st.Busy)
	require.NotNil(t, st.LastTx)
	assert.Equal(t, int64(6), st.Counter.Int64())

	onchain, err := client.GetCounter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(6), onchain.Int64())
}
