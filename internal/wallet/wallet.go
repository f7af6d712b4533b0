// Package wallet holds the local ed25519 signing key for a trading account.
package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// KeySigner signs payment intents with an in-memory ed25519 key. The
// account address is the base58 public key.
type KeySigner struct {
	priv solana.PrivateKey
	pub  solana.PublicKey
}

// NewKeySigner parses secret as a base58-encoded 64-byte key or a JSON
// byte array.
func NewKeySigner(secret string) (*KeySigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("wallet: secret is required")
	}
	priv, err := parsePrivateKey(secret)
	if err != nil {
		return nil, err
	}
	return &KeySigner{priv: priv, pub: priv.PublicKey()}, nil
}

// NewKeySignerFromEnv reads WALLET_SECRET. It returns (nil, nil) when the
// variable is unset so callers can run read-only.
func NewKeySignerFromEnv() (*KeySigner, error) {
	secret := os.Getenv("WALLET_SECRET")
	if strings.TrimSpace(secret) == "" {
		return nil, nil
	}
	return NewKeySigner(secret)
}

// GenerateKeySigner creates a signer with a fresh random key.
func GenerateKeySigner() (*KeySigner, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: generate key: %w", err)
	}
	return &KeySigner{priv: priv, pub: priv.PublicKey()}, nil
}

// Account is empty for a nil signer.
func (s *KeySigner) Account() string {
	if s == nil {
		return ""
	}
	return s.pub.String()
}

func (s *KeySigner) PublicKey() solana.PublicKey { return s.pub }

// String never includes key material.
func (s *KeySigner) String() string { return "KeySigner(" + s.pub.String() + ")" }

func parsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d", i)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(ed25519.PrivateKey(b)), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: secret is not valid base58")
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(ed25519.PrivateKey(raw)), nil
}
