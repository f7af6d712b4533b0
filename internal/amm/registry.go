package amm

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

// PairConfig is one entry in the pairs JSON file.
type PairConfig struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name,omitempty"`
	Issuer       string `json:"issuer"`
	CurrencyCode string `json:"currency_code"`
}

// RegisteredPair is a validated, tradable pair.
type RegisteredPair struct {
	Symbol string      `json:"symbol"`
	Name   string      `json:"name,omitempty"`
	Pair   models.Pair `json:"pair"`
}

// PairRegistry holds all configured pairs keyed by symbol.
type PairRegistry struct {
	bySymbol map[string]RegisteredPair
}

// NewPairRegistry loads pairs from a JSON file.
func NewPairRegistry(configPath string) (*PairRegistry, error) {
	configs, err := LoadPairsFromJSON(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pairs: %w", err)
	}
	return NewPairRegistryFromConfigs(configs)
}

// LoadPairsFromJSON reads pair configurations without validating them.
func LoadPairsFromJSON(path string) ([]PairConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configs []PairConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return configs, nil
}

func NewPairRegistryFromConfigs(configs []PairConfig) (*PairRegistry, error) {
	r := &PairRegistry{bySymbol: make(map[string]RegisteredPair, len(configs))}
	for i, cfg := range configs {
		p, err := parsePairConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("pair %d (%s): %w", i, cfg.Symbol, err)
		}
		if _, dup := r.bySymbol[p.Symbol]; dup {
			return nil, fmt.Errorf("pair %d: duplicate symbol %s", i, p.Symbol)
		}
		r.bySymbol[p.Symbol] = p
	}
	return r, nil
}

func parsePairConfig(cfg PairConfig) (RegisteredPair, error) {
	symbol := normalizeSymbol(cfg.Symbol)
	if symbol == "" {
		return RegisteredPair{}, fmt.Errorf("symbol is required")
	}
	pair := models.Pair{
		Issuer:       strings.TrimSpace(cfg.Issuer),
		CurrencyCode: strings.TrimSpace(cfg.CurrencyCode),
	}
	if err := pair.Validate(); err != nil {
		return RegisteredPair{}, err
	}
	return RegisteredPair{Symbol: symbol, Name: cfg.Name, Pair: pair}, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// FindBySymbol looks a pair up by symbol, case-insensitively.
func (r *PairRegistry) FindBySymbol(symbol string) (RegisteredPair, error) {
	p, ok := r.bySymbol[normalizeSymbol(symbol)]
	if !ok {
		return RegisteredPair{}, fmt.Errorf("no pair configured for symbol %s", symbol)
	}
	return p, nil
}

// FindByPair returns the registered entry for a pair, if any.
func (r *PairRegistry) FindByPair(pair models.Pair) (RegisteredPair, bool) {
	for _, p := range r.bySymbol {
		if p.Pair == pair {
			return p, true
		}
	}
	return RegisteredPair{}, false
}

// All returns every pair sorted by symbol.
func (r *PairRegistry) All() []RegisteredPair {
	out := make([]RegisteredPair, 0, len(r.bySymbol))
	for _, p := range r.bySymbol {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols lists the tradable symbols in sorted order.
func (r *PairRegistry) Symbols() []string {
	all := r.All()
	out := make([]string, 0, len(all))
	for _, p := range all {
		out = append(out, p.Symbol)
	}
	return out
}

func (r *PairRegistry) Count() int {
	return len(r.bySymbol)
}
