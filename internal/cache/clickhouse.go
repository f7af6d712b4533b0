package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore is the durable trade attempt history.
type ClickHouseStore struct {
	conn driver.Conn
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test connection
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseStore{conn: conn}, nil
}

// EnsureSchema creates the attempts table if missing.
func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id String,
			trade_id String,
			attempt_number UInt8,
			account String,
			direction LowCardinality(String),
			issuer String,
			currency_code String,
			input_amount String,
			tolerance_bps UInt32,
			output_amount String,
			price_impact_bps String,
			deliver_min String,
			send_max String,
			submitted Bool,
			outcome LowCardinality(String),
			error_kind LowCardinality(String),
			result_code String,
			tx_hash String,
			delivered_amount String,
			fee String,
			started_at DateTime64(3),
			finished_at DateTime64(3)
		) ENGINE = MergeTree
		ORDER BY (trade_id, attempt_number, started_at)
	`, constants.ClickHouseTableAttempts)

	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", constants.ClickHouseTableAttempts, err)
	}
	return nil
}

func (c *ClickHouseStore) RecordAttempt(ctx context.Context, attempt *models.TradeAttempt) error {
	return c.InsertAttempt(ctx, attempt)
}

func (c *ClickHouseStore) InsertAttempt(ctx context.Context, a *models.TradeAttempt) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, trade_id, attempt_number, account, direction, issuer, currency_code,
			input_amount, tolerance_bps, output_amount, price_impact_bps,
			deliver_min, send_max, submitted, outcome, error_kind, result_code,
			tx_hash, delivered_amount, fee, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, constants.ClickHouseTableAttempts)

	delivered := ""
	if a.DeliveredAmount != nil {
		delivered = a.DeliveredAmount.String()
	}

	err := c.conn.Exec(ctx, query,
		a.ID,
		a.TradeID,
		uint8(a.AttemptNumber),
		a.Account,
		string(a.Request.Direction),
		a.Request.Pair.Issuer,
		a.Request.Pair.CurrencyCode,
		a.Request.InputAmount.String(),
		a.Request.SlippageToleranceBps,
		a.Estimate.OutputAmount.String(),
		a.Estimate.PriceImpactBps.String(),
		a.DeliverMin.String(),
		a.SendMax.String(),
		a.Submitted,
		string(a.Outcome),
		string(a.ErrorKind),
		a.ResultCode,
		a.TxHash,
		delivered,
		a.Fee.String(),
		a.StartedAt,
		a.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

type attemptRow struct {
	ID              string    `ch:"id"`
	TradeID         string    `ch:"trade_id"`
	AttemptNumber   uint8     `ch:"attempt_number"`
	Account         string    `ch:"account"`
	Direction       string    `ch:"direction"`
	Issuer          string    `ch:"issuer"`
	CurrencyCode    string    `ch:"currency_code"`
	InputAmount     string    `ch:"input_amount"`
	ToleranceBps    uint32    `ch:"tolerance_bps"`
	OutputAmount    string    `ch:"output_amount"`
	PriceImpactBps  string    `ch:"price_impact_bps"`
	DeliverMin      string    `ch:"deliver_min"`
	SendMax         string    `ch:"send_max"`
	Submitted       bool      `ch:"submitted"`
	Outcome         string    `ch:"outcome"`
	ErrorKind       string    `ch:"error_kind"`
	ResultCode      string    `ch:"result_code"`
	TxHash          string    `ch:"tx_hash"`
	DeliveredAmount string    `ch:"delivered_amount"`
	Fee             string    `ch:"fee"`
	StartedAt       time.Time `ch:"started_at"`
	FinishedAt      time.Time `ch:"finished_at"`
}

func (r attemptRow) toAttempt() *models.TradeAttempt {
	a := &models.TradeAttempt{
		ID:            r.ID,
		TradeID:       r.TradeID,
		AttemptNumber: int(r.AttemptNumber),
		Account:       r.Account,
		Request: models.TradeRequest{
			Direction:            models.Direction(r.Direction),
			InputAmount:          parseDecimal(r.InputAmount),
			SlippageToleranceBps: r.ToleranceBps,
			Pair:                 models.Pair{Issuer: r.Issuer, CurrencyCode: r.CurrencyCode},
		},
		Estimate: models.TradeEstimate{
			OutputAmount:   parseDecimal(r.OutputAmount),
			PriceImpactBps: parseDecimal(r.PriceImpactBps),
		},
		DeliverMin: parseDecimal(r.DeliverMin),
		SendMax:    parseDecimal(r.SendMax),
		Submitted:  r.Submitted,
		Outcome:    models.Outcome(r.Outcome),
		ErrorKind:  models.ErrorKind(r.ErrorKind),
		ResultCode: r.ResultCode,
		TxHash:     r.TxHash,
		Fee:        parseDecimal(r.Fee),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.DeliveredAmount != "" {
		d := parseDecimal(r.DeliveredAmount)
		a.DeliveredAmount = &d
	}
	return a
}

func (c *ClickHouseStore) AttemptsForTrade(ctx context.Context, tradeID string) ([]*models.TradeAttempt, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE trade_id = ? ORDER BY attempt_number`, constants.ClickHouseTableAttempts)

	var rows []attemptRow
	if err := c.conn.Select(ctx, &rows, query, tradeID); err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}

	out := make([]*models.TradeAttempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toAttempt())
	}
	return out, nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
