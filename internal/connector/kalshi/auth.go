package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// wsAPIPath is the signed path component of the websocket handshake.
const wsAPIPath = "/trade-api/ws/v2"

// ParsePrivateKey loads an RSA private key from PEM-encoded bytes, accepting
// both PKCS#8 and PKCS#1 encodings.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return nil, fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		return pkcs1Key, nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	return rsaKey, nil
}

// AuthHeaders builds the Kalshi websocket handshake headers: an RSA-PSS
// SHA-256 signature over timestamp + method + path, base64 encoded.
func AuthHeaders(apiKeyID string, key *rsa.PrivateKey, at time.Time) (http.Header, error) {
	if apiKeyID == "" {
		return nil, fmt.Errorf("kalshi: api key id not configured")
	}
	if key == nil {
		return nil, fmt.Errorf("kalshi: RSA private key not configured")
	}

	ts := strconv.FormatInt(at.UnixMilli(), 10)
	message := ts + http.MethodGet + wsAPIPath

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return nil, fmt.Errorf("kalshi: RSA sign: %w", err)
	}

	header := http.Header{}
	header.Set("KALSHI-ACCESS-KEY", apiKeyID)
	header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
	header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	return header, nil
}
