// Package events 负责把计数器会话中的状态变化投递给外部订阅者。
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type 表示事件类型。
type Type string

const (
	// TypeCounterUpdated 在写交易确认并重新读取计数后发出。
	TypeCounterUpdated Type = "counter.updated"
	// TypeOperationFailed 在任意用户操作失败后发出。
	TypeOperationFailed Type = "operation.failed"
	// TypeWalletConnected 在钱包会话建立后发出。
	TypeWalletConnected Type = "wallet.connected"
)

// Event 是对外发布的一条记录。
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Action     string    `json:"action,omitempty"`
	Counter    string    `json:"counter,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Block      uint64    `json:"block,omitempty"`
	Account    string    `json:"account,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New 创建带唯一 ID 与时间戳的事件。
func New(typ Type, action string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	}
}

// Encode 返回事件的 JSON 编码。
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode 解析 JSON 编码的事件。
func Decode(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Handler 处理一条已投递的事件。
type Handler func(ctx context.Context, event Event) error

// Publisher 负责投递事件。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Subscriber 负责消费事件。
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// Bus 同时具备发布与订阅能力。
type Bus interface {
	Publisher
	Subscriber
}

// Discard 丢弃所有事件。
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
func (Discard) Close() error                         { return nil }
