package command

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/constants"
)

// attemptsSchemaDescription mirrors the table created by
// cache.ClickHouseStore.EnsureSchema.
var attemptsSchemaDescription = fmt.Sprintf(`
Table: %s

Columns:
  - id               String    -- attempt id
  - trade_id         String    -- logical trade id, shared by its retries
  - attempt_number   UInt8     -- 0 for the initial submission, 1 and 2 automatic retries, 3 the manual retry
  - account          String    -- trader account
  - direction        String    -- "buy" (spend XRP) or "sell" (spend token)
  - currency_code    String    -- issued currency of the pool
  - input_amount     String    -- decimal amount spent, use toDecimal64OrZero(input_amount, 6)
  - tolerance_bps    UInt32    -- slippage tolerance in basis points
  - outcome          String    -- success, failed_terminal, failed_retryable
  - error_kind       String    -- e.g. slippage_exhausted, insufficient_funds
  - result_code      String    -- ledger result code
  - delivered_amount String    -- decimal amount received on success
  - started_at       DateTime64(3)
  - finished_at      DateTime64(3)
`, constants.ClickHouseTableAttempts)

type AnalystConfig struct {
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string
	Logger             *logrus.Logger
}

// Analyst answers questions about trade history with LLM generated,
// read-only SQL over the attempts table.
type Analyst struct {
	llm    llms.Model
	db     *sql.DB
	logger *logrus.Logger
}

// NewAnalyst shares the parser's LLM and opens its own ClickHouse handle.
func NewAnalyst(ctx context.Context, p *Parser, cfg AnalystConfig) (*Analyst, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		},
	})
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse from analyst: %w", err)
	}

	return &Analyst{llm: p.llm, db: db, logger: cfg.Logger}, nil
}

func (a *Analyst) Close() error {
	return a.db.Close()
}

type AskResult struct {
	SQL    string
	Answer string
}

func (a *Analyst) Ask(ctx context.Context, question string) (*AskResult, error) {
	prompt := fmt.Sprintf(`
You are an expert ClickHouse SQL generator.

Use ONLY the following table:
%s

Rules:
- Return a single SELECT query in ClickHouse SQL, no explanation.
- Use started_at for time filtering.
- Never modify data.

User question:
%s
`, attemptsSchemaDescription, question)

	resp, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, llms.WithMaxTokens(512))
	if err != nil {
		return nil, fmt.Errorf("LLM SQL generation failed: %w", err)
	}

	query := sanitizeSQL(resp)
	if err := validateSQL(query); err != nil {
		return nil, err
	}
	a.logger.WithField("sql", query).Debug("generated SQL from question")

	rowsJSON, err := a.runQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	summary := fmt.Sprintf(`
You summarise trade execution history.

Question: %s
SQL: %s
Results (JSON array, may be empty): %s

Answer concisely. If there are no rows, say no data was found.
`, question, query, rowsJSON)

	answer, err := llms.GenerateFromSinglePrompt(ctx, a.llm, summary, llms.WithMaxTokens(512))
	if err != nil {
		return nil, fmt.Errorf("LLM summarisation failed: %w", err)
	}

	return &AskResult{SQL: query, Answer: strings.TrimSpace(answer)}, nil
}

func (a *Analyst) runQuery(ctx context.Context, query string) (string, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to get columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("row iteration error: %w", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rows to JSON: %w", err)
	}
	return string(data), nil
}

func sanitizeSQL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
		if strings.HasPrefix(strings.ToLower(s), "sql") {
			s = s[3:]
		}
		if idx := strings.Index(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, ";"))
}

// validateSQL only lets single SELECT statements over the attempts table through.
func validateSQL(s string) error {
	if s == "" {
		return fmt.Errorf("empty SQL generated by LLM")
	}

	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT queries are allowed")
	}
	for _, kw := range []string{
		"INSERT ", "UPDATE ", "DELETE ", "DROP ", "ALTER ", "TRUNCATE ",
		"CREATE ", "RENAME ", "ATTACH ", "DETACH ", "SYSTEM ", "GRANT ",
	} {
		if strings.Contains(upper, kw) {
			return fmt.Errorf("disallowed SQL keyword %q in generated query", strings.TrimSpace(kw))
		}
	}
	if strings.Contains(s, ";") {
		return fmt.Errorf("multiple statements or semicolons are not allowed")
	}
	if !strings.Contains(upper, strings.ToUpper(constants.ClickHouseTableAttempts)) {
		return fmt.Errorf("query must target %s", constants.ClickHouseTableAttempts)
	}
	return nil
}
