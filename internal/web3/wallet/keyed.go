package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"ChainCounter/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ApproveFunc decides whether a pending request goes ahead. Returning an
// error wrapping ErrRequestRejected models the user pressing "reject".
type ApproveFunc func(ctx context.Context, req Request) error

// Request describes what the wallet is being asked to do.
type Request struct {
	Kind    RequestKind
	Account common.Address
	Tx      *types.Transaction
}

// RequestKind distinguishes account access from transaction signing.
type RequestKind string

const (
	RequestAccounts RequestKind = "eth_requestAccounts"
	RequestSignTx   RequestKind = "eth_signTransaction"
)

// KeyedProvider is a wallet provider holding a single private key.
type KeyedProvider struct {
	backend web3.Backend
	key     *ecdsa.PrivateKey
	address common.Address
	approve ApproveFunc

	mu      sync.Mutex
	chainID *big.Int
}

// KeyedOption customises a KeyedProvider.
type KeyedOption func(*KeyedProvider)

// WithApproval installs a hook consulted before account access and before
// each signature.
func WithApproval(fn ApproveFunc) KeyedOption {
	return func(p *KeyedProvider) {
		p.approve = fn
	}
}

// NewKeyedProvider builds a provider that signs with key against backend.
func NewKeyedProvider(backend web3.Backend, key *ecdsa.PrivateKey, opts ...KeyedOption) (*KeyedProvider, error) {
	if backend == nil {
		return nil, errors.New("钱包缺少链访问后端")
	}
	if key == nil {
		return nil, errors.New("钱包私钥不能为空")
	}
	p := &KeyedProvider{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Address returns the account managed by the provider.
func (p *KeyedProvider) Address() common.Address {
	return p.address
}

// RequestAccounts implements Provider.
func (p *KeyedProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if err := p.check(ctx, Request{Kind: RequestAccounts, Account: p.address}); err != nil {
		return nil, err
	}
	return []common.Address{p.address}, nil
}

// Signer implements Provider. The chain ID is fetched once and cached; ctx
// only bounds that lookup.
func (p *KeyedProvider) Signer(ctx context.Context, account common.Address) (*Signer, error) {
	if account != p.address {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}
	chainID, err := p.loadChainID(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(p.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("创建交易签名器失败: %w", err)
	}
	sign := func(signCtx context.Context, addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if err := p.check(signCtx, Request{Kind: RequestSignTx, Account: addr, Tx: tx}); err != nil {
			return nil, err
		}
		return opts.Signer(addr, tx)
	}
	return NewSigner(p.address, sign), nil
}

// Backend implements Provider.
func (p *KeyedProvider) Backend() web3.Backend {
	return p.backend
}

func (p *KeyedProvider) check(ctx context.Context, req Request) error {
	if p.approve == nil {
		return nil
	}
	return p.approve(ctx, req)
}

func (p *KeyedProvider) loadChainID(ctx context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chainID != nil {
		return p.chainID, nil
	}
	id, err := p.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取链 ID 失败: %w", err)
	}
	p.chainID = id
	return id, nil
}

// ParsePrivateKey decodes a hex encoded secp256k1 key, with or without 0x.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return nil, errors.New("私钥为空")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	return key, nil
}

// LoadKeystore decrypts a V3 keystore file.
func LoadKeystore(path, password string) (*ecdsa.PrivateKey, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 keystore 失败: %w", err)
	}
	key, err := keystore.DecryptKey(content, password)
	if err != nil {
		return nil, fmt.Errorf("解密 keystore 失败: %w", err)
	}
	return key.PrivateKey, nil
}
