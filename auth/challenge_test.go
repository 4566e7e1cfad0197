package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeypair(t *testing.T) (wallet string, priv ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub), priv
}

func sign(priv ed25519.PrivateKey, message string) string {
	return base58.Encode(ed25519.Sign(priv, []byte(message)))
}

func TestVerifyRoundTrip(t *testing.T) {
	a := NewAuthenticator()
	wallet, priv := testKeypair(t)

	ch := a.IssueChallenge(wallet)
	assert.Contains(t, ch.Message, MessagePrefix)
	assert.Contains(t, ch.Message, "Nonce: "+ch.Nonce)

	ok, reason := a.Verify(wallet, ch.Message, sign(priv, ch.Message))
	assert.True(t, ok, reason)
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	a := NewAuthenticator()
	wallet, _ := testKeypair(t)
	_, otherPriv := testKeypair(t)

	ch := a.IssueChallenge(wallet)
	ok, reason := a.Verify(wallet, ch.Message, sign(otherPriv, ch.Message))
	assert.False(t, ok)
	assert.Equal(t, "invalid signature", reason)
}

func TestVerifyRejectsExpiredMessage(t *testing.T) {
	issued := time.Now()
	a := &Authenticator{Now: func() time.Time { return issued }}
	wallet, priv := testKeypair(t)
	ch := a.IssueChallenge(wallet)
	sig := sign(priv, ch.Message)

	// Correct signature, but verified 6 minutes later.
	a.Now = func() time.Time { return issued.Add(6 * time.Minute) }
	ok, reason := a.Verify(wallet, ch.Message, sig)
	assert.False(t, ok)
	assert.Equal(t, "message expired or invalid timestamp", reason)

	// Future-dated messages fail the same way.
	a.Now = func() time.Time { return issued.Add(-6 * time.Minute) }
	ok, _ = a.Verify(wallet, ch.Message, sig)
	assert.False(t, ok)
}

func TestVerifyFailsClosedOnGarbage(t *testing.T) {
	a := NewAuthenticator()
	wallet, priv := testKeypair(t)

	cases := []struct {
		name              string
		wallet, msg, sig  string
	}{
		{"empty message", wallet, "", "sig"},
		{"missing prefix", wallet, "hello\nNonce: x\nTimestamp: 1", "sig"},
		{"missing timestamp", wallet, MessagePrefix + "\nNonce: x\nNope", "sig"},
		{"bad timestamp", wallet, MessagePrefix + "\nNonce: x\nTimestamp: soon", "sig"},
		{"bad wallet", "not-base58!!", MessagePrefix + "\nNonce: x\nTimestamp: 1", "sig"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := a.Verify(tc.wallet, tc.msg, tc.sig)
			assert.False(t, ok)
			assert.NotEmpty(t, reason)
		})
	}

	// A valid current message with a truncated signature.
	ch := a.IssueChallenge(wallet)
	full := sign(priv, ch.Message)
	ok, reason := a.Verify(wallet, ch.Message, full[:10])
	assert.False(t, ok)
	assert.Equal(t, "invalid signature encoding", reason)
}

func TestValidWalletAddress(t *testing.T) {
	wallet, _ := testKeypair(t)
	assert.True(t, ValidWalletAddress(wallet))
	assert.False(t, ValidWalletAddress("tooshort"))
	assert.False(t, ValidWalletAddress(""))
	assert.False(t, ValidWalletAddress(fmt.Sprintf("%s0OIl", wallet))) // illegal base58 chars
}
