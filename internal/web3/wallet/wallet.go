// Package wallet models the wallet-provider capability a session connects
// through: an execution environment that may host an injected provider,
// the provider itself, and the signer it hands out.
package wallet

import (
	"context"
	"errors"

	"ChainCounter/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrRequestRejected is returned when the wallet owner declines a request.
	ErrRequestRejected = errors.New("user rejected the request")
	// ErrUnknownAccount is returned when a signer is requested for an account
	// the provider does not manage.
	ErrUnknownAccount = errors.New("account not managed by wallet")
)

// Provider is the injected wallet capability.
type Provider interface {
	// RequestAccounts asks the wallet for account access. The first account
	// is the active one.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Signer returns a signer bound to account.
	Signer(ctx context.Context, account common.Address) (*Signer, error)
	// Backend exposes the chain the wallet is connected to.
	Backend() web3.Backend
}

// Environment is the execution context a session runs in.
type Environment interface {
	// IsBrowser reports whether the context can host a wallet session.
	IsBrowser() bool
	// Provider returns the injected wallet provider, if any.
	Provider() (Provider, bool)
}

// SignFunc signs tx for addr. ctx belongs to the submission being signed,
// so approval prompts follow that request rather than the session.
type SignFunc func(ctx context.Context, addr common.Address, tx *types.Transaction) (*types.Transaction, error)

// Signer is an authenticated identity able to sign transactions for Address.
type Signer struct {
	Address common.Address
	sign    SignFunc
}

// NewSigner builds a signer from a signing function.
func NewSigner(address common.Address, sign SignFunc) *Signer {
	return &Signer{Address: address, sign: sign}
}

// SignTx signs tx on behalf of the signer's address.
func (s *Signer) SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	if s == nil || s.sign == nil {
		return nil, errors.New("signer not initialised")
	}
	return s.sign(ctx, s.Address, tx)
}

// TransactOpts returns fresh transaction options for one submission. ctx is
// handed to the signing function as well as to the chain calls.
func (s *Signer) TransactOpts(ctx context.Context) *bind.TransactOpts {
	return &bind.TransactOpts{
		From:    s.Address,
		Context: ctx,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != s.Address {
				return nil, ErrUnknownAccount
			}
			return s.SignTx(ctx, tx)
		},
	}
}

type hostEnvironment struct {
	browser  bool
	provider Provider
}

// Browser returns an interactive environment. A nil provider models a
// browser without a wallet extension installed.
func Browser(provider Provider) Environment {
	return &hostEnvironment{browser: true, provider: provider}
}

// Headless returns an environment that cannot host a wallet session.
func Headless() Environment {
	return &hostEnvironment{}
}

func (e *hostEnvironment) IsBrowser() bool {
	return e != nil && e.browser
}

func (e *hostEnvironment) Provider() (Provider, bool) {
	if e == nil || e.provider == nil {
		return nil, false
	}
	return e.provider, true
}
