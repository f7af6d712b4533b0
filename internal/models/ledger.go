package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PaymentIntent is the unsigned cross-currency payment built from a trade
// request. The account pays itself: it spends at most SendMax of SendAsset
// and must receive at least DeliverMin of DeliverAsset.
type PaymentIntent struct {
	TransactionType string          `json:"transaction_type"`
	Account         string          `json:"account"`
	Destination     string          `json:"destination"`
	Amount          decimal.Decimal `json:"amount"`
	DeliverAsset    Asset           `json:"deliver_asset"`
	DeliverMin      decimal.Decimal `json:"deliver_min"`
	SendMax         decimal.Decimal `json:"send_max"`
	SendAsset       Asset           `json:"send_asset"`
	PartialPayment  bool            `json:"partial_payment"`
	TradeID         string          `json:"trade_id"`
	AttemptNumber   int             `json:"attempt_number"`
}

// CanonicalBytes is the exact payload that gets signed.
func (p PaymentIntent) CanonicalBytes() ([]byte, error) {
	return json.Marshal(p)
}

// SignedBlob is an opaque signed transaction ready for submission.
type SignedBlob struct {
	TxBlob    string `json:"tx_blob"`
	Hash      string `json:"hash"`
	PublicKey string `json:"public_key"`
}

// SubmitResult is the final ledger answer for one submission.
type SubmitResult struct {
	ResultCode      string           `json:"result_code"`
	TxHash          string           `json:"tx_hash"`
	DeliveredAmount *decimal.Decimal `json:"delivered_amount,omitempty"`
	Fee             decimal.Decimal  `json:"fee"`
	LedgerIndex     uint64           `json:"ledger_index,omitempty"`
	Validated       bool             `json:"validated"`
}
