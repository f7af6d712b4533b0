package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

type pingResult struct {
	Status      string `json:"status"`
	LedgerIndex uint64 `json:"ledger_index"`
}

type poolParams struct {
	Issuer       string `json:"issuer"`
	CurrencyCode string `json:"currency_code"`
}

type poolInfoResult struct {
	BaseReserve   string     `json:"base_reserve"`
	QuoteReserve  string     `json:"quote_reserve"`
	TradingFeeBps uint32     `json:"trading_fee_bps"`
	LedgerIndex   uint64     `json:"ledger_index"`
	AsOf          *time.Time `json:"as_of,omitempty"`
}

type submitParams struct {
	TxBlob string `json:"tx_blob"`
}

type submitResult struct {
	EngineResult string `json:"engine_result"`
	TxHash       string `json:"tx_hash"`
	Accepted     bool   `json:"accepted"`
}

type txStatusParams struct {
	TxHash string `json:"tx_hash"`
}

type txStatusResult struct {
	Validated       bool   `json:"validated"`
	ResultCode      string `json:"result_code"`
	DeliveredAmount string `json:"delivered_amount,omitempty"`
	Fee             string `json:"fee,omitempty"`
	LedgerIndex     uint64 `json:"ledger_index"`
}

func (s txStatusResult) toResult(hash string) (models.SubmitResult, error) {
	res := models.SubmitResult{
		ResultCode:  s.ResultCode,
		TxHash:      hash,
		LedgerIndex: s.LedgerIndex,
		Validated:   true,
	}
	if s.DeliveredAmount != "" {
		d, err := decimal.NewFromString(s.DeliveredAmount)
		if err != nil {
			return models.SubmitResult{}, fmt.Errorf("invalid delivered amount %q: %w", s.DeliveredAmount, err)
		}
		res.DeliveredAmount = &d
	}
	if s.Fee != "" {
		fee, err := decimal.NewFromString(s.Fee)
		if err != nil {
			return models.SubmitResult{}, fmt.Errorf("invalid fee %q: %w", s.Fee, err)
		}
		res.Fee = fee
	}
	return res, nil
}
