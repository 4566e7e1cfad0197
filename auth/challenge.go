// Package auth implements the wallet-signature challenge/response flow.
// A caller fetches a challenge message, signs it with their Solana
// wallet key, and presents wallet+message+signature on authenticated
// calls. Nothing is persisted; freshness comes from the embedded
// timestamp.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// MessagePrefix anchors every challenge; verification rejects messages
// that do not carry it.
const MessagePrefix = "Sign this message to authenticate with OSINT.market"

// MaxAge is how long a signed challenge stays valid.
const MaxAge = 5 * time.Minute

// Challenge is an issued authentication message.
type Challenge struct {
	Message string `json:"message"`
	Nonce   string `json:"nonce"`
	Wallet  string `json:"wallet"`
}

// Authenticator issues and verifies wallet challenges. The clock is
// injectable for tests; zero value uses time.Now.
type Authenticator struct {
	Now func() time.Time
}

func NewAuthenticator() *Authenticator {
	return &Authenticator{Now: time.Now}
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// IssueChallenge builds a fresh challenge for the wallet.
func (a *Authenticator) IssueChallenge(wallet string) Challenge {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	nonce := hex.EncodeToString(buf)

	msg := fmt.Sprintf("%s\nNonce: %s\nTimestamp: %d",
		MessagePrefix, nonce, a.now().UnixMilli())

	return Challenge{Message: msg, Nonce: nonce, Wallet: wallet}
}

// Verify checks message format, freshness and the ed25519 signature.
// Fails closed: every failure path returns ok=false with a reason,
// never an error or panic.
func (a *Authenticator) Verify(wallet, message, signature string) (bool, string) {
	lines := strings.Split(message, "\n")
	if len(lines) < 3 {
		return false, "invalid message format"
	}
	if !strings.Contains(lines[0], "OSINT.market") {
		return false, "invalid message prefix"
	}

	var tsLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "Timestamp:") {
			tsLine = l
			break
		}
	}
	if tsLine == "" {
		return false, "missing timestamp"
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(tsLine, "Timestamp:")), 10, 64)
	if err != nil {
		return false, "invalid timestamp"
	}
	age := a.now().Sub(time.UnixMilli(ts))
	if age > MaxAge || age < -MaxAge {
		return false, "message expired or invalid timestamp"
	}

	pub := base58.Decode(wallet)
	if len(pub) != ed25519.PublicKeySize {
		return false, "invalid wallet address"
	}
	sig := base58.Decode(signature)
	if len(sig) != ed25519.SignatureSize {
		return false, "invalid signature encoding"
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig) {
		return false, "invalid signature"
	}
	return true, ""
}

// ValidWalletAddress reports whether addr decodes to a 32-byte key.
func ValidWalletAddress(addr string) bool {
	return len(base58.Decode(addr)) == ed25519.PublicKeySize
}
