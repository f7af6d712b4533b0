package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/prefs"
)

// Command is a structured trade instruction, as typed by a user or
// produced by the LLM parser.
type Command struct {
	Direction   string          `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	TokenSymbol string          `json:"token_symbol"`
	SlippageBps *uint32         `json:"slippage_bps,omitempty"`
}

// PreferenceSource supplies a trader's default tolerance. prefs.Store
// satisfies it; a missing preference is reported as prefs.ErrNotFound.
type PreferenceSource interface {
	SlippageBps(ctx context.Context, account string) (uint32, error)
}

// Mapper turns commands into validated trade requests.
type Mapper struct {
	registry   *amm.PairRegistry
	prefs      PreferenceSource
	defaultBps uint32
	logger     *logrus.Logger
}

type MapperConfig struct {
	Registry    *amm.PairRegistry
	Preferences PreferenceSource
	DefaultBps  uint32
	Logger      *logrus.Logger
}

func NewMapper(cfg MapperConfig) (*Mapper, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("command: pair registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.DefaultBps == 0 {
		cfg.DefaultBps = constants.DefaultSlippageBps
	}
	if err := models.ValidateTolerance(cfg.DefaultBps); err != nil {
		return nil, fmt.Errorf("command: default tolerance: %w", err)
	}
	return &Mapper{
		registry:   cfg.Registry,
		prefs:      cfg.Preferences,
		defaultBps: cfg.DefaultBps,
		logger:     cfg.Logger,
	}, nil
}

// ToTradeRequest validates cmd and resolves its pair and tolerance. The
// tolerance comes from the command, else the account's stored preference,
// else the configured default.
func (m *Mapper) ToTradeRequest(ctx context.Context, account string, cmd Command) (models.TradeRequest, error) {
	dir, err := models.ParseDirection(cmd.Direction)
	if err != nil {
		return models.TradeRequest{}, err
	}

	rp, err := m.registry.FindBySymbol(cmd.TokenSymbol)
	if err != nil {
		return models.TradeRequest{}, models.WrapError(models.KindInvalidReserves, err)
	}

	if err := models.ValidateAmount("amount", cmd.Amount); err != nil {
		return models.TradeRequest{}, err
	}

	bps := m.ToleranceFor(ctx, account)
	if cmd.SlippageBps != nil {
		bps = *cmd.SlippageBps
	}
	if err := models.ValidateTolerance(bps); err != nil {
		return models.TradeRequest{}, err
	}

	return models.TradeRequest{
		Direction:            dir,
		InputAmount:          cmd.Amount,
		SlippageToleranceBps: bps,
		Pair:                 rp.Pair,
	}, nil
}

// ToleranceFor returns the account's stored tolerance or the default.
func (m *Mapper) ToleranceFor(ctx context.Context, account string) uint32 {
	if m.prefs == nil || account == "" {
		return m.defaultBps
	}
	bps, err := m.prefs.SlippageBps(ctx, account)
	if err != nil {
		if !errors.Is(err, prefs.ErrNotFound) {
			m.logger.WithError(err).WithField("account", account).Warn("failed to read trade preference")
		}
		return m.defaultBps
	}
	return bps
}
