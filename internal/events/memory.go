package events

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed 表示事件总线已关闭。
var ErrClosed = errors.New("事件总线已关闭")

// MemoryBus 使用 channel 在进程内传递事件，主要用于测试与单机部署。
//
// 关闭只通过 done 广播，ch 从不关闭，因此阻塞中的 Publish 不会持有锁，
// Close 也不会等待它们。
type MemoryBus struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryBus 创建一个内存事件总线。
func NewMemoryBus(size int) *MemoryBus {
	if size <= 0 {
		size = 64
	}
	return &MemoryBus{ch: make(chan Event, size), done: make(chan struct{})}
}

// Publish 投递事件；缓冲区满时阻塞直到 ctx 结束或总线关闭。
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	case b.ch <- event:
		return nil
	}
}

// Subscribe 按投递顺序把事件交给 handler，直到 ctx 结束或总线关闭。
// 关闭前已缓冲的事件仍会被投递。
func (b *MemoryBus) Subscribe(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-b.ch:
			_ = handler(ctx, event)
		case <-b.done:
			return b.drain(ctx, handler)
		}
	}
}

func (b *MemoryBus) drain(ctx context.Context, handler Handler) error {
	for {
		select {
		case event := <-b.ch:
			_ = handler(ctx, event)
		default:
			return nil
		}
	}
}

// Close 关闭内存总线，阻塞中的发布者立即返回 ErrClosed。
func (b *MemoryBus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
