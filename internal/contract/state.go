package contract

import (
	"fmt"

	"ChainCounter/internal/contracts/counter"
	"ChainCounter/internal/web3"
	"ChainCounter/internal/web3/wallet"

	"github.com/ethereum/go-ethereum/common"
)

// ConnectionState 描述合约客户端与钱包会话的连接状态。
type ConnectionState uint8

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", uint8(s))
	}
}

// MarshalText 以小写名称编码连接状态。
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 解析小写名称形式的连接状态。
func (s *ConnectionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "disconnected":
		*s = Disconnected
	case "connecting":
		*s = Connecting
	case "connected":
		*s = Connected
	default:
		return fmt.Errorf("未知的连接状态: %s", text)
	}
	return nil
}

// Receipt 汇总一笔已确认交易的关键信息。
type Receipt struct {
	Action  string      `json:"action"`
	TxHash  common.Hash `json:"tx_hash"`
	Block   uint64      `json:"block"`
	GasUsed uint64      `json:"gas_used"`
}

// connection 是连接状态的带标签表示，只有 *bound 持有会话资源。
type connection interface {
	state() ConnectionState
}

type disconnected struct{}

func (disconnected) state() ConnectionState { return Disconnected }

type connecting struct {
	previous connection
}

func (connecting) state() ConnectionState { return Connecting }

// bound 是一个已建立的会话：provider → signer → contract。
type bound struct {
	provider wallet.Provider
	backend  web3.Backend
	signer   *wallet.Signer
	contract *counter.Counter
}

func (*bound) state() ConnectionState { return Connected }
