package swapengine

import (
	"strings"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

const paymentTransactionType = "Payment"

// BuildIntent turns a validated request and its estimate into the unsigned
// self-payment that performs the swap.
func BuildIntent(account, tradeID string, attemptNumber int, req models.TradeRequest, est models.TradeEstimate) (models.PaymentIntent, Bounds, error) {
	if strings.TrimSpace(account) == "" {
		return models.PaymentIntent{}, Bounds{}, models.NewError(models.KindMissingCredential, "signer has no account")
	}
	if err := ValidateRequest(req); err != nil {
		return models.PaymentIntent{}, Bounds{}, err
	}
	bounds, err := ComputeBounds(req, est)
	if err != nil {
		return models.PaymentIntent{}, Bounds{}, err
	}

	return models.PaymentIntent{
		TransactionType: paymentTransactionType,
		Account:         account,
		Destination:     account,
		Amount:          est.OutputAmount,
		DeliverAsset:    req.ReceiveAsset(),
		DeliverMin:      bounds.DeliverMin,
		SendMax:         bounds.SendMax,
		SendAsset:       req.SpendAsset(),
		PartialPayment:  true,
		TradeID:         tradeID,
		AttemptNumber:   attemptNumber,
	}, bounds, nil
}
