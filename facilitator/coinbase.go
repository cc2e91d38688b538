package facilitator

import (
	"fmt"

	cdpjwt "github.com/coinbase/cdp-sdk/go/auth"
)

// CoinbaseFacilitatorURL is the Coinbase-hosted x402 facilitator's
// base URL, reachable once CDP API credentials are supplied.
const CoinbaseFacilitatorURL = "https://api.cdp.coinbase.com/platform/v2/x402"

const coinbaseRequestHost = "api.cdp.coinbase.com"

// CoinbaseAuthHeader builds an AuthHeaderFunc that authenticates
// every /verify and /settle call against a Coinbase-hosted
// facilitator with a per-request CDP JWT, matching the auth scheme
// Coinbase-hosted x402 facilitators require.
func CoinbaseAuthHeader(apiKeyID, apiKeySecret string) AuthHeaderFunc {
	return func(method, path string) (string, error) {
		token, err := cdpjwt.GenerateJWT(cdpjwt.JwtOptions{
			KeyID:         apiKeyID,
			KeySecret:     apiKeySecret,
			RequestMethod: method,
			RequestHost:   coinbaseRequestHost,
			RequestPath:   CoinbaseFacilitatorURL[len("https://"+coinbaseRequestHost):] + path,
		})
		if err != nil {
			return "", fmt.Errorf("generate CDP JWT: %w", err)
		}
		return "Bearer " + token, nil
	}
}
