package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/nrdlngr/x402mcp"
)

// ECDSAWallet is a Wallet backed by a single owned private key. It
// signs the "exact" scheme's authorization as EIP-712 typed data,
// mirroring the evm exact-scheme signer used on the facilitator side
// of the ecosystem.
type ECDSAWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewECDSAWalletFromHex builds an ECDSAWallet from a hex-encoded
// private key, with or without the "0x" prefix.
func NewECDSAWalletFromHex(hexKey string) (*ECDSAWallet, error) {
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &ECDSAWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// GetAccount implements Wallet. The ECDSAWallet is its own Account.
func (w *ECDSAWallet) GetAccount() (Account, error) {
	return w, nil
}

func (w *ECDSAWallet) Address() string {
	return w.address.Hex()
}

// SignTypedData signs the EIP-3009-style authorization using the
// network's typed-data domain, in the same hashing scheme as
// go-ethereum's apitypes.TypedData: keccak256(0x19 0x01 || domainHash
// || structHash).
func (w *ECDSAWallet) SignTypedData(domain map[string]any, auth x402mcp.Authorization) (string, error) {
	typedData, err := buildTypedData(domain, auth)
	if err != nil {
		return "", err
	}

	domainHash, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return "", fmt.Errorf("hash domain: %w", err)
	}
	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return "", fmt.Errorf("hash message: %w", err)
	}

	digest := crypto.Keccak256(
		[]byte{0x19, 0x01},
		domainHash,
		structHash,
	)

	signature, err := crypto.Sign(digest, w.key)
	if err != nil {
		return "", fmt.Errorf("sign digest: %w", err)
	}
	// go-ethereum's Sign returns a 0/1 recovery id; Ethereum wallets
	// conventionally expect 27/28 in the final signature byte.
	signature[64] += 27

	return "0x" + common.Bytes2Hex(signature), nil
}

// buildTypedData assembles the EIP-712 TransferWithAuthorization
// typed-data structure from the requirement's domain and the
// authorization fields.
func buildTypedData(domain map[string]any, auth x402mcp.Authorization) (apitypes.TypedData, error) {
	chainID, err := domainChainID(domain)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return apitypes.TypedData{}, fmt.Errorf("invalid authorization value %q", auth.Value)
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              stringField(domain, "name"),
			Version:           stringField(domain, "version"),
			ChainId:           chainID,
			VerifyingContract: stringField(domain, "verifyingContract"),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       value.String(),
			"validAfter":  fmt.Sprint(auth.ValidAfter),
			"validBefore": fmt.Sprint(auth.ValidBefore),
			"nonce":       auth.Nonce,
		},
	}, nil
}

func stringField(domain map[string]any, key string) string {
	if domain == nil {
		return ""
	}
	if v, ok := domain[key].(string); ok {
		return v
	}
	return ""
}

func domainChainID(domain map[string]any) (*math.HexOrDecimal256, error) {
	if domain == nil {
		return nil, fmt.Errorf("missing typed-data domain")
	}
	switch v := domain["chainId"].(type) {
	case float64:
		return math.NewHexOrDecimal256(int64(v)), nil
	case int:
		return math.NewHexOrDecimal256(int64(v)), nil
	case string:
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("invalid chainId %q", v)
		}
		return (*math.HexOrDecimal256)(n), nil
	default:
		return nil, fmt.Errorf("domain missing chainId")
	}
}
