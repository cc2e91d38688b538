// Package wallet supplies the Wallet external collaborator (spec §1,
// §6): an owned key or remote signer exposing an Account capable of
// signing typed structured data.
package wallet

import "github.com/nrdlngr/x402mcp"

// Account is a signing identity returned by a Wallet.
type Account interface {
	// Address is the account's address on the given network family.
	Address() string

	// SignTypedData signs an EIP-712 typed-data structure built from
	// domain and the authorization fields, returning a hex-encoded
	// signature.
	SignTypedData(domain map[string]any, authorization x402mcp.Authorization) (string, error)
}

// Wallet vends the account used to sign payment authorizations.
type Wallet interface {
	GetAccount() (Account, error)
}
