package contract

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"ChainCounter/internal/contracts/counter"
	xerrors "ChainCounter/internal/errors"
	"ChainCounter/internal/web3"
	"ChainCounter/internal/web3/wallet"
	"ChainCounter/pkg/logger"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultPollInterval 是等待交易回执时的默认轮询间隔。
const DefaultPollInterval = time.Second

var (
	// ErrEnvironment 表示当前执行环境无法承载钱包会话。
	ErrEnvironment = xerrors.New(xerrors.CodeEnvironment, "此操作只能在浏览器环境中执行")
	// ErrProviderMissing 表示环境中没有注入钱包 provider。
	ErrProviderMissing = xerrors.New(xerrors.CodeProviderMissing, "未检测到钱包扩展")
	// ErrNotConnected 表示在建立会话之前调用了合约操作。
	ErrNotConnected = xerrors.New(xerrors.CodeNotConnected, "合约尚未连接")
	// ErrWalletNotConnected 表示尚未绑定签名者。
	ErrWalletNotConnected = xerrors.New(xerrors.CodeNotConnected, "钱包尚未连接")
	// ErrWriteInFlight 表示同一客户端上已有写交易在等待确认。
	ErrWriteInFlight = xerrors.New(xerrors.CodeBusy, "已有交易正在等待确认")
)

// Config 描述合约客户端的固定参数。
type Config struct {
	Address      common.Address
	PollInterval time.Duration
}

// Client 绑定一个钱包会话与一个计数器合约实例，把类型化调用翻译为链上请求。
//
// 写操作在单个实例上是 single-flight 的：第二个并发写入会立即得到
// ErrWriteInFlight。Connect 在已连接状态下会替换现有会话。
type Client struct {
	env     wallet.Environment
	address common.Address
	poll    time.Duration
	log     *slog.Logger

	mu   sync.RWMutex
	conn connection

	writing atomic.Bool
}

// Option 定义可选配置。
type Option func(*Client)

// WithLogger 指定客户端日志。
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New 创建处于 Disconnected 状态的合约客户端。
func New(env wallet.Environment, cfg Config, opts ...Option) (*Client, error) {
	if env == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "执行环境不能为空")
	}
	if cfg.Address == (common.Address{}) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "合约地址不能为空")
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	c := &Client{
		env:     env,
		address: cfg.Address,
		poll:    poll,
		log:     logger.Named("contract"),
		conn:    disconnected{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Address 返回绑定的合约地址。
func (c *Client) Address() common.Address {
	return c.address
}

// State 返回当前连接状态。
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn.state()
}

// IsConnected 报告是否存在已绑定的合约，没有副作用。
func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

// Connect 探测钱包 provider，依次建立 provider → signer → contract 绑定。
// 失败时恢复到调用前的绑定。
func (c *Client) Connect(ctx context.Context) error {
	if !c.env.IsBrowser() {
		return ErrEnvironment
	}
	provider, ok := c.env.Provider()
	if !ok {
		return ErrProviderMissing
	}

	c.mu.Lock()
	previous := c.conn
	if pending, ok := previous.(connecting); ok {
		previous = pending.previous
	}
	c.conn = connecting{previous: previous}
	c.mu.Unlock()

	session, err := c.bind(ctx, provider)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.conn = previous
		c.log.Warn("钱包连接失败", slog.String("error", err.Error()))
		return err
	}
	if old, ok := previous.(*bound); ok {
		c.log.Info("替换现有钱包会话",
			slog.String("previous", old.signer.Address.Hex()),
			slog.String("current", session.signer.Address.Hex()))
	}
	c.conn = session
	c.log.Info("钱包已连接",
		slog.String("account", session.signer.Address.Hex()),
		slog.String("contract", c.address.Hex()))
	return nil
}

func (c *Client) bind(ctx context.Context, provider wallet.Provider) (*bound, error) {
	accounts, err := provider.RequestAccounts(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProviderRejected, err, "")
	}
	if len(accounts) == 0 {
		return nil, xerrors.New(xerrors.CodeProviderRejected, "钱包没有可用账户")
	}
	signer, err := provider.Signer(ctx, accounts[0])
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProviderRejected, err, "")
	}
	backend := provider.Backend()
	if backend == nil {
		return nil, xerrors.New(xerrors.CodeChainFailure, "钱包未连接到任何网络")
	}
	contract, err := counter.NewCounter(c.address, backend)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "")
	}
	return &bound{provider: provider, backend: backend, signer: signer, contract: contract}, nil
}

func (c *Client) session() (*bound, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	session, ok := c.conn.(*bound)
	if !ok {
		return nil, ErrNotConnected
	}
	return session, nil
}

// GetCounter 读取链上的当前计数值，不做任何缓存。
func (c *Client) GetCounter(ctx context.Context) (*big.Int, error) {
	session, err := c.session()
	if err != nil {
		return nil, err
	}
	value, err := session.contract.GetCounter(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, classify(err)
	}
	return value, nil
}

// GetOwner 读取合约记录的 owner 地址。
func (c *Client) GetOwner(ctx context.Context) (common.Address, error) {
	session, err := c.session()
	if err != nil {
		return common.Address{}, err
	}
	owner, err := session.contract.Owner(&bind.CallOpts{Context: ctx})
	if err != nil {
		return common.Address{}, classify(err)
	}
	return owner, nil
}

// GetWalletAddress 返回当前绑定签名者的地址。
func (c *Client) GetWalletAddress(_ context.Context) (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	session, ok := c.conn.(*bound)
	if !ok || session.signer == nil {
		return common.Address{}, ErrWalletNotConnected
	}
	return session.signer.Address, nil
}

// IncrementCounter 提交 incrementCounter 交易并等待其被打包。
func (c *Client) IncrementCounter(ctx context.Context) (Receipt, error) {
	return c.transact(ctx, "increment", func(ct *counter.Counter, opts *bind.TransactOpts) (*types.Transaction, error) {
		return ct.IncrementCounter(opts)
	})
}

// DecrementCounter 提交 decrementCounter 交易并等待其被打包。
func (c *Client) DecrementCounter(ctx context.Context) (Receipt, error) {
	return c.transact(ctx, "decrement", func(ct *counter.Counter, opts *bind.TransactOpts) (*types.Transaction, error) {
		return ct.DecrementCounter(opts)
	})
}

// ResetCounter 提交 resetCounter 交易并等待其被打包。
func (c *Client) ResetCounter(ctx context.Context) (Receipt, error) {
	return c.transact(ctx, "reset", func(ct *counter.Counter, opts *bind.TransactOpts) (*types.Transaction, error) {
		return ct.ResetCounter(opts)
	})
}

type submitFunc func(*counter.Counter, *bind.TransactOpts) (*types.Transaction, error)

func (c *Client) transact(ctx context.Context, action string, submit submitFunc) (Receipt, error) {
	session, err := c.session()
	if err != nil {
		return Receipt{}, err
	}
	if !c.writing.CompareAndSwap(false, true) {
		return Receipt{}, ErrWriteInFlight
	}
	defer c.writing.Store(false)

	tx, err := submit(session.contract, session.transactOpts(ctx))
	if err != nil {
		return Receipt{}, classify(err)
	}
	c.log.Debug("交易已提交", slog.String("action", action), slog.String("tx_hash", tx.Hash().Hex()))

	// 交易已广播，确认等待不再受调用方取消影响。
	receipt, err := c.waitMined(context.WithoutCancel(ctx), session.backend, tx)
	if err != nil {
		return Receipt{}, classify(err)
	}

	blockNumber := uint64(0)
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}
	logger.AuditTransaction(logger.TxRecord{
		Action:   action,
		Hash:     tx.Hash().Hex(),
		From:     session.signer.Address.Hex(),
		Contract: c.address.Hex(),
		Block:    blockNumber,
		GasUsed:  receipt.GasUsed,
		Status:   receipt.Status,
	})
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Receipt{}, xerrors.New(xerrors.CodeChainFailure, "transaction reverted",
			xerrors.WithMetadata("tx_hash", tx.Hash().Hex()))
	}
	return Receipt{Action: action, TxHash: tx.Hash(), Block: blockNumber, GasUsed: receipt.GasUsed}, nil
}

// waitMined 轮询交易回执直到交易被打包，没有内部超时。
func (c *Client) waitMined(ctx context.Context, backend web3.Backend, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, gethcore.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *bound) transactOpts(ctx context.Context) *bind.TransactOpts {
	opts := b.signer.TransactOpts(ctx)
	sign := opts.Signer
	opts.Signer = func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		signed, err := sign(addr, tx)
		if err != nil {
			return nil, &rejection{err: err}
		}
		return signed, nil
	}
	return opts
}

// rejection 标记来自钱包签名环节的失败。
type rejection struct {
	err error
}

func (r *rejection) Error() string { return r.err.Error() }
func (r *rejection) Unwrap() error { return r.err }

// classify 把 provider 与链上的原始错误归类为统一错误码，保留原始信息。
// 调用方取消归为 CANCELED，不视为链上失败。
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := xerrors.From(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return xerrors.Wrap(xerrors.CodeCanceled, err, "")
	}
	var rej *rejection
	if errors.As(err, &rej) || errors.Is(err, wallet.ErrRequestRejected) {
		return xerrors.Wrap(xerrors.CodeProviderRejected, err, "")
	}
	return xerrors.Wrap(xerrors.CodeChainFailure, err, "")
}
