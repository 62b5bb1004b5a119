// Package chaintest spins up a simulated chain with a deployed counter
// contract for package tests.
package chaintest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"ChainCounter/internal/contracts/counter"
	"ChainCounter/internal/web3/ethereum"
	"ChainCounter/internal/web3/wallet"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

// Chain is a simulated network with one counter deployment.
type Chain struct {
	Client   *ethereum.Client
	Deployer *ecdsa.PrivateKey
	User     *ecdsa.PrivateKey
	Contract common.Address
}

// New starts a simulated backend, funds two accounts and deploys the counter
// with the given initial value. The backend is closed on test cleanup.
func New(t testing.TB, initial int64) *Chain {
	t.Helper()

	deployer := newKey(t)
	user := newKey(t)
	funds := new(big.Int).Mul(big.NewInt(100), big.NewInt(1_000_000_000_000_000_000))
	alloc := types.GenesisAlloc{
		crypto.PubkeyToAddress(deployer.PublicKey): {Balance: funds},
		crypto.PubkeyToAddress(user.PublicKey):     {Balance: funds},
	}
	backend := simulated.NewBackend(alloc, simulated.WithBlockGasLimit(8_000_000))
	client := ethereum.NewSimulatedClient("simulated", backend)
	t.Cleanup(client.Close)

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(deployer, chainID)
	if err != nil {
		t.Fatalf("new transactor: %v", err)
	}
	address, _, _, err := counter.DeployCounter(auth, client, big.NewInt(initial))
	if err != nil {
		t.Fatalf("deploy counter: %v", err)
	}

	return &Chain{Client: client, Deployer: deployer, User: user, Contract: address}
}

// Provider returns a keyed wallet provider for key on this chain.
func (c *Chain) Provider(t testing.TB, key *ecdsa.PrivateKey, opts ...wallet.KeyedOption) *wallet.KeyedProvider {
	t.Helper()
	p, err := wallet.NewKeyedProvider(c.Client, key, opts...)
	if err != nil {
		t.Fatalf("new keyed provider: %v", err)
	}
	return p
}

// Address returns the account address for key.
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}
