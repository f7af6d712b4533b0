// Package ledger talks to the ledger gateway over JSON-RPC: pool reserves,
// signed transaction submission and validation polling.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/rpc"
)

const (
	methodPing       = "ping"
	methodPoolInfo   = "pool_info"
	methodSubmit     = "submit_signed_transaction"
	methodTxStatus   = "transaction_status"
	codeQueued       = "terQUEUED"
	rpcTxnNotFound   = -32004
	defaultPollFirst = 500 * time.Millisecond
	defaultPollMax   = 4 * time.Second
)

type Config struct {
	RPC             rpc.ClientConfig
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	Logger          *logrus.Logger
}

// Client implements the engine's ledger boundary against a gateway node.
type Client struct {
	rpc     *rpc.Client
	logger  *logrus.Logger
	pollMin time.Duration
	pollMax time.Duration
	now     func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.RPC.BaseURL) == "" {
		return nil, fmt.Errorf("ledger: RPC URL is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.RPC.Logger == nil {
		cfg.RPC.Logger = cfg.Logger
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollFirst
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		cfg.MaxPollInterval = defaultPollMax
	}

	return &Client{
		rpc:     rpc.NewClient(cfg.RPC),
		logger:  cfg.Logger,
		pollMin: cfg.PollInterval,
		pollMax: cfg.MaxPollInterval,
		now:     time.Now,
	}, nil
}

// Connect checks the gateway is reachable and synced.
func (c *Client) Connect(ctx context.Context) error {
	var resp pingResult
	if err := c.rpc.Call(ctx, methodPing, nil, &resp); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return fmt.Errorf("gateway not ready: %s", resp.Status)
	}
	return nil
}

// PoolInfo fetches the current reserves of the pool for pair.
func (c *Client) PoolInfo(ctx context.Context, pair models.Pair) (models.PoolReserves, error) {
	params := []any{poolParams{Issuer: pair.Issuer, CurrencyCode: pair.CurrencyCode}}

	var resp poolInfoResult
	if err := c.rpc.Call(ctx, methodPoolInfo, params, &resp); err != nil {
		return models.PoolReserves{}, fmt.Errorf("pool_info %s: %w", pair, err)
	}

	base, err := decimal.NewFromString(resp.BaseReserve)
	if err != nil {
		return models.PoolReserves{}, fmt.Errorf("pool_info %s: invalid base reserve %q: %w", pair, resp.BaseReserve, err)
	}
	quote, err := decimal.NewFromString(resp.QuoteReserve)
	if err != nil {
		return models.PoolReserves{}, fmt.Errorf("pool_info %s: invalid quote reserve %q: %w", pair, resp.QuoteReserve, err)
	}

	asOf := c.now()
	if resp.AsOf != nil && !resp.AsOf.IsZero() {
		asOf = *resp.AsOf
	}

	return models.PoolReserves{
		Pair:          pair,
		BaseReserve:   base,
		QuoteReserve:  quote,
		TradingFeeBps: resp.TradingFeeBps,
		AsOf:          asOf,
	}, nil
}

// SubmitSignedTransaction submits blob exactly once and waits for a final
// result. Codes that mean the transaction was never applied are returned
// straight away; everything else is polled until validated or ctx ends.
func (c *Client) SubmitSignedTransaction(ctx context.Context, blob models.SignedBlob) (models.SubmitResult, error) {
	var sub submitResult
	if err := c.rpc.CallOnce(ctx, methodSubmit, []any{submitParams{TxBlob: blob.TxBlob}}, &sub); err != nil {
		return models.SubmitResult{}, fmt.Errorf("submit failed: %w", err)
	}

	hash := sub.TxHash
	if hash == "" {
		hash = blob.Hash
	}

	log := c.logger.WithFields(logrus.Fields{
		"tx_hash":       hash,
		"engine_result": sub.EngineResult,
	})

	if isFinalPreliminary(sub.EngineResult) {
		log.Debug("submission rejected before apply")
		return models.SubmitResult{ResultCode: sub.EngineResult, TxHash: hash}, nil
	}

	log.Debug("submission accepted, waiting for validation")
	return c.waitValidated(ctx, hash)
}

func (c *Client) waitValidated(ctx context.Context, hash string) (models.SubmitResult, error) {
	backoff := c.pollMin

	for {
		status, err := c.transactionStatus(ctx, hash)
		if err != nil {
			return models.SubmitResult{}, err
		}
		if status != nil && status.Validated {
			return status.toResult(hash)
		}

		select {
		case <-ctx.Done():
			return models.SubmitResult{}, fmt.Errorf("waiting for %s: %w", hash, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
			if backoff > c.pollMax {
				backoff = c.pollMax
			}
		}
	}
}

// transactionStatus returns nil when the gateway has not seen hash yet.
func (c *Client) transactionStatus(ctx context.Context, hash string) (*txStatusResult, error) {
	var resp txStatusResult
	err := c.rpc.Call(ctx, methodTxStatus, []any{txStatusParams{TxHash: hash}}, &resp)
	if err != nil {
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == rpcTxnNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("transaction_status %s: %w", hash, err)
	}
	return &resp, nil
}

func (c *Client) Close() error { return nil }

// isFinalPreliminary reports codes the ledger returns for transactions that
// were not applied and will not be.
func isFinalPreliminary(code string) bool {
	if code == "" || code == codeQueued {
		return false
	}
	for _, prefix := range []string{"tem", "tef", "tel", "ter"} {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}
