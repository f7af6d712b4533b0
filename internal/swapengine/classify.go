package swapengine

import (
	"strings"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

const resultSuccess = "tesSUCCESS"

var resultKinds = map[string]models.ErrorKind{
	"tecPATH_PARTIAL": models.KindSlippageExhausted,
	"tecPATH_DRY":     models.KindSlippageExhausted,

	"tecUNFUNDED_PAYMENT":      models.KindInsufficientFunds,
	"tecUNFUNDED":              models.KindInsufficientFunds,
	"tecINSUFFICIENT_FUNDS":    models.KindInsufficientFunds,
	"tecINSUFFICIENT_RESERVE":  models.KindInsufficientFunds,
	"terINSUF_FEE_B":           models.KindInsufficientFunds,
	"tecNO_LINE":               models.KindNoTrustline,
	"tecNO_LINE_INSUF_RESERVE": models.KindNoTrustline,
	"terNO_LINE":               models.KindNoTrustline,
	"tecNO_AUTH":               models.KindUnauthorized,
	"tecNO_PERMISSION":         models.KindUnauthorized,
	"tecFROZEN":                models.KindUnauthorized,
	"terNO_AUTH":               models.KindUnauthorized,
	"tefBAD_AUTH":              models.KindUnauthorized,
	"tefMAX_LEDGER":            models.KindExpired,
	"tefPAST_SEQ":              models.KindExpired,
	"tefALREADY":               models.KindExpired,
}

// ClassifyResult maps a ledger result code to an outcome and, for
// failures, an error kind. Unlisted tem/tef codes are treated as expired
// or malformed transactions.
func ClassifyResult(code string) (models.Outcome, models.ErrorKind) {
	if code == resultSuccess {
		return models.OutcomeSuccess, ""
	}
	kind, ok := resultKinds[code]
	if !ok {
		switch {
		case strings.HasPrefix(code, "tem"), strings.HasPrefix(code, "tef"):
			kind = models.KindExpired
		default:
			kind = models.KindUnknown
		}
	}
	if kind.Retryable() {
		return models.OutcomeFailedRetryable, kind
	}
	return models.OutcomeFailedTerminal, kind
}
