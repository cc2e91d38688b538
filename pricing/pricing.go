// Package pricing implements the priced-amount <-> atomic-units
// conversion the core consumes as an external collaborator (spec §1).
// Real deployments would look decimals up per network/asset from an
// on-chain registry or a pricing service; this package supplies a
// static table sufficient to drive the server and client sides of the
// core plus a minimal interface other implementations can satisfy.
package pricing

import (
	"math"
	"math/big"

	"github.com/nrdlngr/x402mcp"
)

// Asset describes one priced asset on one network.
type Asset struct {
	Network  string
	Address  string
	Decimals int
	// Domain is the EIP-712-like typed-data domain used when signing
	// an authorization against this asset.
	Domain map[string]any
}

// Pricer converts between priced (human, floating point) units and
// atomic (integer, decimal-string) units for a given network.
type Pricer interface {
	// ToAtomicUnits converts a priced amount into the asset's atomic
	// representation, returning the asset address and signing domain.
	ToAtomicUnits(network string, amount float64) (atomicAmount string, asset Asset, err error)

	// ToPricedUnits converts an atomic-units decimal string back into
	// priced units for the given network, the inverse of
	// ToAtomicUnits. Used by the client responder to re-derive the
	// human amount for guardrail checks.
	ToPricedUnits(network string, atomicAmount string) (amount float64, err error)
}

// StaticPricer is a Pricer backed by a fixed table of assets per
// network. It is the default pricer used by the demo and tests.
type StaticPricer struct {
	assets map[string]Asset
}

// NewStaticPricer builds a StaticPricer from a list of assets, one
// per network.
func NewStaticPricer(assets ...Asset) *StaticPricer {
	p := &StaticPricer{assets: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		p.assets[a.Network] = a
	}
	return p
}

func (p *StaticPricer) lookup(network string) (Asset, error) {
	asset, ok := p.assets[network]
	if !ok {
		return Asset{}, x402mcp.NewErrorf(x402mcp.CodeConfigInvalid, "pricing: no asset configured for network %q", network)
	}
	return asset, nil
}

func (p *StaticPricer) ToAtomicUnits(network string, amount float64) (string, Asset, error) {
	asset, err := p.lookup(network)
	if err != nil {
		return "", Asset{}, err
	}
	if amount <= 0 {
		return "", Asset{}, x402mcp.NewErrorf(x402mcp.CodeConfigInvalid, "pricing: amount must be positive, got %v", amount)
	}
	scaled := amount * math.Pow10(asset.Decimals)
	atomic := new(big.Float).SetFloat64(scaled)
	rounded, _ := atomic.Int(nil)
	return rounded.String(), asset, nil
}

func (p *StaticPricer) ToPricedUnits(network string, atomicAmount string) (float64, error) {
	asset, err := p.lookup(network)
	if err != nil {
		return 0, err
	}
	value := new(big.Int)
	if _, ok := value.SetString(atomicAmount, 10); !ok {
		return 0, x402mcp.NewErrorf(x402mcp.CodeConfigInvalid, "pricing: invalid atomic amount %q", atomicAmount)
	}
	divisor := new(big.Float).SetFloat64(math.Pow10(asset.Decimals))
	quotient := new(big.Float).Quo(new(big.Float).SetInt(value), divisor)
	amount, _ := quotient.Float64()
	return amount, nil
}

// AssetByNetwork exposes the configured asset for a network, used by
// callers that need the signing domain without converting an amount.
func (p *StaticPricer) AssetByNetwork(network string) (Asset, error) {
	return p.lookup(network)
}
