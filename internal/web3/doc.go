// Package web3 houses blockchain connectivity utilities: the chain backend
// abstraction shared by wallet providers and contract bindings, chain
// definition files, and the go-ethereum backed client in the ethereum
// subpackage.
package web3
