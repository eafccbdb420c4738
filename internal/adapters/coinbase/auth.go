package coinbase

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// credentials holds a CDP API key. The private key is the EC key PEM
// from the Coinbase developer portal.
type credentials struct {
	keyName    string
	privateKey *ecdsa.PrivateKey
}

func newCredentials(keyName, privateKeyPEM string) (*credentials, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("coinbase: private key is not PEM")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("coinbase: parse EC private key: %w", err)
	}
	return &credentials{keyName: keyName, privateKey: key}, nil
}

// mintJWT signs a short-lived ES256 token scoped to one request. uri is
// "<METHOD> <host><path>" per the CDP auth scheme; empty for websocket
// auth.
func (c *credentials) mintJWT(uri string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": c.keyName,
		"iss": "cdp",
		"nbf": now.Unix(),
		"exp": now.Add(2 * time.Minute).Unix(),
	}
	if uri != "" {
		claims["uri"] = uri
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = c.keyName
	tok.Header["nonce"] = nonce()

	signed, err := tok.SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("coinbase: sign jwt: %w", err)
	}
	return signed, nil
}

func nonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
