package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestParsePrivateKeyPKCS8(t *testing.T) {
	key := testKey(t)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	parsed, err := ParsePrivateKey(pemBytes)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))
}

func TestParsePrivateKeyPKCS1(t *testing.T) {
	key := testKey(t)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	parsed, err := ParsePrivateKey(pemBytes)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))
}

func TestParsePrivateKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePrivateKey([]byte("not a key"))
	assert.Error(t, err)
}

func TestAuthHeadersSignature(t *testing.T) {
	key := testKey(t)
	at := time.UnixMilli(1700000000000)

	header, err := AuthHeaders("key-id", key, at)
	require.NoError(t, err)

	assert.Equal(t, "key-id", header.Get("KALSHI-ACCESS-KEY"))
	assert.Equal(t, "1700000000000", header.Get("KALSHI-ACCESS-TIMESTAMP"))

	sig, err := base64.StdEncoding.DecodeString(header.Get("KALSHI-ACCESS-SIGNATURE"))
	require.NoError(t, err)

	message := header.Get("KALSHI-ACCESS-TIMESTAMP") + http.MethodGet + "/trade-api/ws/v2"
	hash := sha256.Sum256([]byte(message))
	err = rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, hash[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	assert.NoError(t, err)
}

func TestAuthHeadersRequiresCredentials(t *testing.T) {
	key := testKey(t)

	_, err := AuthHeaders("", key, time.Now())
	assert.Error(t, err)

	_, err = AuthHeaders("key-id", nil, time.Now())
	assert.Error(t, err)
}
