package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

// envelope is the signed wire form carried in SignedBlob.TxBlob.
type envelope struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
}

// Sign serializes intent canonically and signs it. The intent's account
// must match the signer.
func (s *KeySigner) Sign(ctx context.Context, intent models.PaymentIntent) (models.SignedBlob, error) {
	if err := ctx.Err(); err != nil {
		return models.SignedBlob{}, err
	}
	if intent.Account != s.Account() {
		return models.SignedBlob{}, fmt.Errorf("wallet: intent account %s does not match signer %s", intent.Account, s.Account())
	}

	payload, err := intent.CanonicalBytes()
	if err != nil {
		return models.SignedBlob{}, fmt.Errorf("wallet: serialize intent: %w", err)
	}

	sig, err := s.priv.Sign(payload)
	if err != nil {
		return models.SignedBlob{}, fmt.Errorf("wallet: sign: %w", err)
	}

	raw, err := json.Marshal(envelope{
		Payload:   base64.StdEncoding.EncodeToString(payload),
		Signature: sig.String(),
		PublicKey: s.pub.String(),
	})
	if err != nil {
		return models.SignedBlob{}, fmt.Errorf("wallet: encode envelope: %w", err)
	}

	sum := sha256.Sum256(raw)
	return models.SignedBlob{
		TxBlob:    hex.EncodeToString(raw),
		Hash:      strings.ToUpper(hex.EncodeToString(sum[:])),
		PublicKey: s.pub.String(),
	}, nil
}

// Verify checks a blob's signature and returns the signed intent.
func Verify(blob models.SignedBlob) (models.PaymentIntent, error) {
	raw, err := hex.DecodeString(blob.TxBlob)
	if err != nil {
		return models.PaymentIntent{}, fmt.Errorf("wallet: blob is not hex: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.PaymentIntent{}, fmt.Errorf("wallet: decode envelope: %w", err)
	}

	pub, err := solana.PublicKeyFromBase58(env.PublicKey)
	if err != nil {
		return models.PaymentIntent{}, fmt.Errorf("wallet: bad public key: %w", err)
	}
	sig, err := solana.SignatureFromBase58(env.Signature)
	if err != nil {
		return models.PaymentIntent{}, fmt.Errorf("wallet: bad signature: %w", err)
	}
	payload, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		return models.PaymentIntent{}, fmt.Errorf("wallet: bad payload: %w", err)
	}
	if !sig.Verify(pub, payload) {
		return models.PaymentIntent{}, fmt.Errorf("wallet: signature does not verify")
	}

	var intent models.PaymentIntent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return models.PaymentIntent{}, fmt.Errorf("wallet: decode intent: %w", err)
	}
	if intent.Account != pub.String() {
		return models.PaymentIntent{}, fmt.Errorf("wallet: intent account does not match signing key")
	}
	return intent, nil
}
