package interaction

import (
	"encoding/json"
	"math/big"

	"ChainCounter/internal/contract"
	xerrors "ChainCounter/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

// OperationError 记录最近一次失败的操作，只保留最新一条。
type OperationError struct {
	Kind      xerrors.Code `json:"code"`
	Operation string       `json:"operation"`
	Message   string       `json:"message"`
}

func newOperationError(op string, err error) *OperationError {
	return &OperationError{
		Kind:      xerrors.CodeOf(err),
		Operation: op,
		Message:   xerrors.DetailOf(err),
	}
}

// State 是对外可观察的会话状态快照。
//
// Counter、Owner 与 WalletAddress 只在 Connection 为 Connected 时有效。
type State struct {
	Connection    contract.ConnectionState `json:"connection"`
	Busy          bool                     `json:"busy"`
	Counter       *big.Int                 `json:"-"`
	Owner         *common.Address          `json:"owner,omitempty"`
	WalletAddress *common.Address          `json:"wallet_address,omitempty"`
	LastTx        *contract.Receipt        `json:"last_tx,omitempty"`
	Error         *OperationError          `json:"error,omitempty"`
	Revision      uint64                   `json:"revision"`
}

// MarshalJSON 把计数值编码为十进制字符串，避免超出 JSON 数值精度。
func (s State) MarshalJSON() ([]byte, error) {
	type alias State
	var counter *string
	if s.Counter != nil {
		v := s.Counter.String()
		counter = &v
	}
	return json.Marshal(struct {
		alias
		Counter *string `json:"counter"`
	}{alias: alias(s), Counter: counter})
}

func (s State) clone() State {
	out := s
	if s.Counter != nil {
		out.Counter = new(big.Int).Set(s.Counter)
	}
	if s.Owner != nil {
		owner := *s.Owner
		out.Owner = &owner
	}
	if s.WalletAddress != nil {
		addr := *s.WalletAddress
		out.WalletAddress = &addr
	}
	if s.LastTx != nil {
		tx := *s.LastTx
		out.LastTx = &tx
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}
