// Package interaction 驱动用户触发的计数器操作，并维护可观察的会话状态。
package interaction

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"ChainCounter/internal/contract"
	xerrors "ChainCounter/internal/errors"
	"ChainCounter/internal/events"
	"ChainCounter/internal/observability/metrics"
	"ChainCounter/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// 操作名称，同时用作指标标签与事件 action。
const (
	OpConnect   = "connect"
	OpIncrement = "increment"
	OpDecrement = "decrement"
	OpReset     = "reset"
	OpRefresh   = "refresh"
)

const publishTimeout = 5 * time.Second

var (
	// ErrBusy 表示已有操作在进行中，新的操作被拒绝且状态不变。
	ErrBusy = xerrors.New(xerrors.CodeBusy, "已有操作正在进行")
	// ErrAlreadyConnected 表示钱包连接只能从 Disconnected 发起。
	ErrAlreadyConnected = xerrors.New(xerrors.CodeInvalidState, "钱包已连接")
	// ErrNotConnected 表示操作需要先连接钱包。
	ErrNotConnected = xerrors.New(xerrors.CodeNotConnected, "请先连接钱包")
)

// Client 是控制器依赖的合约客户端能力。
type Client interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	GetCounter(ctx context.Context) (*big.Int, error)
	GetOwner(ctx context.Context) (common.Address, error)
	GetWalletAddress(ctx context.Context) (common.Address, error)
	IncrementCounter(ctx context.Context) (contract.Receipt, error)
	DecrementCounter(ctx context.Context) (contract.Receipt, error)
	ResetCounter(ctx context.Context) (contract.Receipt, error)
}

var _ Client = (*contract.Client)(nil)

// Controller 是 {Disconnected, Connecting, Connected} × {Idle, Busy} 上的状态机。
//
// 同一时刻只允许一个操作在进行；观察者按状态修订号顺序收到通知，
// 观察者回调内不得同步调用控制器的操作方法。
type Controller struct {
	client    Client
	publisher events.Publisher
	log       *slog.Logger

	mu    sync.Mutex
	state State

	notifyMu  sync.Mutex
	observers map[uint64]func(State)
	nextID    uint64
}

// Option 定义可选配置。
type Option func(*Controller)

// WithPublisher 指定事件发布器。
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithLogger 指定控制器日志。
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// NewController 创建控制器，初始状态为 Disconnected/Idle。
func NewController(client Client, opts ...Option) *Controller {
	c := &Controller{
		client:    client,
		publisher: events.Discard{},
		log:       logger.Named("interaction"),
		observers: make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// State 返回当前状态的副本。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe 注册状态观察者，返回取消订阅函数。
func (c *Controller) Subscribe(fn func(State)) func() {
	c.notifyMu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	c.notifyMu.Unlock()

	return func() {
		c.notifyMu.Lock()
		delete(c.observers, id)
		c.notifyMu.Unlock()
	}
}

// ConnectWallet 建立钱包会话，随后一次性刷新计数、owner 与钱包地址。
// 计数读取失败会写入状态并返回；owner 与钱包地址失败只记录日志。
func (c *Controller) ConnectWallet(ctx context.Context) error {
	start := time.Now()
	if err := c.begin(func(s *State) error {
		if s.Connection != contract.Disconnected {
			return ErrAlreadyConnected
		}
		s.Connection = contract.Connecting
		return nil
	}); err != nil {
		return err
	}

	if err := c.client.Connect(ctx); err != nil {
		connected := c.client.IsConnected()
		metrics.SetConnected(connected)
		c.fail(ctx, OpConnect, start, err, func(s *State) {
			s.Connection = contract.Disconnected
			if connected {
				s.Connection = contract.Connected
			}
		})
		return err
	}
	metrics.SetConnected(true)

	counter, counterErr := c.client.GetCounter(ctx)
	owner, ownerErr := c.client.GetOwner(ctx)
	if ownerErr != nil {
		c.log.Warn("读取合约 owner 失败", slog.String("error", ownerErr.Error()))
	}
	wallet, walletErr := c.client.GetWalletAddress(ctx)
	if walletErr != nil {
		c.log.Warn("读取钱包地址失败", slog.String("error", walletErr.Error()))
	}

	snap := c.finish(func(s *State) {
		s.Connection = contract.Connected
		if ownerErr == nil {
			s.Owner = &owner
		}
		if walletErr == nil {
			s.WalletAddress = &wallet
		}
		if counterErr != nil {
			s.Error = newOperationError(OpConnect, counterErr)
			return
		}
		s.Counter = counter
	})

	evt := events.New(events.TypeWalletConnected, OpConnect)
	if snap.WalletAddress != nil {
		evt.Account = snap.WalletAddress.Hex()
	}
	if snap.Counter != nil {
		evt.Counter = snap.Counter.String()
	}
	c.publish(ctx, evt)

	if counterErr != nil {
		c.record(ctx, OpConnect, start, counterErr)
		return counterErr
	}
	metrics.SetCounter(counter)
	c.record(ctx, OpConnect, start, nil)
	return nil
}

// Increment 提交 incrementCounter 并在确认后重新读取计数。
func (c *Controller) Increment(ctx context.Context) error {
	return c.write(ctx, OpIncrement, c.client.IncrementCounter)
}

// Decrement 提交 decrementCounter 并在确认后重新读取计数。
func (c *Controller) Decrement(ctx context.Context) error {
	return c.write(ctx, OpDecrement, c.client.DecrementCounter)
}

// Reset 提交 resetCounter 并在确认后重新读取计数。
func (c *Controller) Reset(ctx context.Context) error {
	return c.write(ctx, OpReset, c.client.ResetCounter)
}

// Refresh 由用户触发重新读取链上计数。
func (c *Controller) Refresh(ctx context.Context) error {
	start := time.Now()
	if err := c.begin(requireConnected); err != nil {
		return err
	}
	value, err := c.client.GetCounter(ctx)
	if err != nil {
		c.fail(ctx, OpRefresh, start, err, nil)
		return err
	}
	c.finish(func(s *State) { s.Counter = value })
	metrics.SetCounter(value)
	c.record(ctx, OpRefresh, start, nil)
	return nil
}

func (c *Controller) write(ctx context.Context, op string, submit func(context.Context) (contract.Receipt, error)) error {
	start := time.Now()
	if err := c.begin(requireConnected); err != nil {
		return err
	}

	receipt, err := submit(ctx)
	if err != nil {
		c.fail(ctx, op, start, err, nil)
		return err
	}

	// 交易已确认，重新读取不随调用方取消而放弃。
	value, err := c.client.GetCounter(context.WithoutCancel(ctx))
	if err != nil {
		c.fail(ctx, op, start, err, func(s *State) { s.LastTx = &receipt })
		return err
	}

	c.finish(func(s *State) {
		s.Counter = value
		s.LastTx = &receipt
	})
	metrics.SetCounter(value)

	evt := events.New(events.TypeCounterUpdated, op)
	evt.Counter = value.String()
	evt.TxHash = receipt.TxHash.Hex()
	evt.Block = receipt.Block
	c.publish(ctx, evt)
	c.record(ctx, op, start, nil)
	return nil
}

func requireConnected(s *State) error {
	if s.Connection != contract.Connected {
		return ErrNotConnected
	}
	return nil
}

// begin 在守卫通过后进入 Busy 并清除上一次错误；守卫失败时状态不变。
func (c *Controller) begin(guard func(*State) error) error {
	c.mu.Lock()
	if c.state.Busy {
		c.mu.Unlock()
		return ErrBusy
	}
	next := c.state
	if err := guard(&next); err != nil {
		c.mu.Unlock()
		return err
	}
	next.Busy = true
	next.Error = nil
	next.Revision++
	c.state = next
	c.commitLocked()
	return nil
}

// finish 回到 Idle 并应用 mutate，返回新的快照。
func (c *Controller) finish(mutate func(*State)) State {
	c.mu.Lock()
	if mutate != nil {
		mutate(&c.state)
	}
	c.state.Busy = false
	c.state.Revision++
	return c.commitLocked()
}

func (c *Controller) fail(ctx context.Context, op string, start time.Time, err error, mutate func(*State)) {
	c.finish(func(s *State) {
		if mutate != nil {
			mutate(s)
		}
		s.Error = newOperationError(op, err)
	})

	evt := events.New(events.TypeOperationFailed, op)
	evt.ErrorCode = string(xerrors.CodeOf(err))
	evt.Error = xerrors.DetailOf(err)
	c.publish(ctx, evt)
	c.record(ctx, op, start, err)
}

// commitLocked 在持有 mu 时调用：取快照，按顺序通知观察者，然后释放 mu。
func (c *Controller) commitLocked() State {
	snap := c.state.clone()
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range c.observers {
		fn(snap.clone())
	}
	return snap
}

func (c *Controller) record(ctx context.Context, op string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err == nil {
		metrics.ObserveOperation(op, metrics.ResultOK, elapsed)
		c.log.InfoContext(ctx, "操作完成", slog.String("operation", op), slog.Duration("elapsed", elapsed))
		return
	}
	metrics.ObserveOperation(op, string(xerrors.CodeOf(err)), elapsed)
	attrs := []any{
		slog.String("operation", op),
		slog.String("code", string(xerrors.CodeOf(err))),
		slog.String("error", err.Error()),
	}
	if xerrors.SeverityOf(err) == xerrors.SeverityCritical {
		c.log.ErrorContext(ctx, "操作失败", attrs...)
		return
	}
	c.log.WarnContext(ctx, "操作失败", attrs...)
}

func (c *Controller) publish(ctx context.Context, evt events.Event) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(pubCtx, evt); err != nil {
		c.log.Warn("发布事件失败",
			slog.String("type", string(evt.Type)),
			slog.String("event_id", evt.ID),
			slog.String("error", err.Error()))
	}
}
