// Package rules holds the asset rule set that drives pair pruning and ticker variations.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/pinevolume/internal/exchange"
)

//go:embed default.yaml
var defaultRules []byte

// Preferences controls which whitelisted-quote pairs an exchange prunes
type Preferences struct {
	PruneFiatQuotePairs   bool `yaml:"prune_fiat_quote_pairs"`
	PruneCryptoQuotePairs bool `yaml:"prune_crypto_quote_pairs"`
}

// DifferenceRule removes base assets listed on Primary from every Secondary
type DifferenceRule struct {
	Primary     exchange.Exchange
	Secondaries []exchange.Exchange
}

// Set is the immutable asset rule set loaded once per run
type Set struct {
	PruningPreferences [exchange.Count]Preferences
	DifferencePruning  []DifferenceRule

	ExcludedCryptoQuoteAssets      map[string]struct{}
	ExcludedFiatQuoteAssets        map[string]struct{}
	ExcludedCryptoPairedBaseAssets map[string]struct{}
	ExcludedFiatPairedBaseAssets   map[string]struct{}

	TickerVariations map[string]string
}

type document struct {
	PruningPreferences map[string]*Preferences `yaml:"pruning_preferences"`
	DifferencePruning  []struct {
		Primary     string   `yaml:"primary"`
		Secondaries []string `yaml:"secondaries"`
	} `yaml:"difference_pruning"`
	ExcludedCryptoQuoteAssets      []string          `yaml:"excluded_crypto_quote_assets"`
	ExcludedFiatQuoteAssets        []string          `yaml:"excluded_fiat_quote_assets"`
	ExcludedCryptoPairedBaseAssets []string          `yaml:"excluded_crypto_paired_base_assets"`
	ExcludedFiatPairedBaseAssets   []string          `yaml:"excluded_fiat_paired_base_assets"`
	TickerVariations               map[string]string `yaml:"ticker_variations"`
}

// Default returns the embedded rule set
func Default() (*Set, error) {
	return Parse(defaultRules)
}

// Load reads and validates a rule set from a YAML file
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse decodes a YAML rule set and validates it
func Parse(data []byte) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	set := &Set{
		ExcludedCryptoQuoteAssets:      toSet(doc.ExcludedCryptoQuoteAssets),
		ExcludedFiatQuoteAssets:        toSet(doc.ExcludedFiatQuoteAssets),
		ExcludedCryptoPairedBaseAssets: toSet(doc.ExcludedCryptoPairedBaseAssets),
		ExcludedFiatPairedBaseAssets:   toSet(doc.ExcludedFiatPairedBaseAssets),
		TickerVariations:               doc.TickerVariations,
	}
	if set.TickerVariations == nil {
		set.TickerVariations = map[string]string{}
	}

	var seen [exchange.Count]bool
	for name, prefs := range doc.PruningPreferences {
		ex, err := exchange.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("pruning_preferences: %w", err)
		}
		if prefs != nil {
			set.PruningPreferences[ex] = *prefs
		}
		seen[ex] = true
	}
	for _, ex := range exchange.All() {
		if !seen[ex] {
			return nil, fmt.Errorf("pruning_preferences: missing entry for %s", ex)
		}
	}

	for i, raw := range doc.DifferencePruning {
		primary, err := exchange.Parse(raw.Primary)
		if err != nil {
			return nil, fmt.Errorf("difference_pruning[%d]: %w", i, err)
		}
		rule := DifferenceRule{Primary: primary}
		for _, name := range raw.Secondaries {
			secondary, err := exchange.Parse(name)
			if err != nil {
				return nil, fmt.Errorf("difference_pruning[%d]: %w", i, err)
			}
			rule.Secondaries = append(rule.Secondaries, secondary)
		}
		set.DifferencePruning = append(set.DifferencePruning, rule)
	}

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	return set, nil
}

// Validate ensures the rule set is internally consistent
func (s *Set) Validate() error {
	if len(s.ExcludedCryptoQuoteAssets) == 0 && len(s.ExcludedFiatQuoteAssets) == 0 {
		return fmt.Errorf("quote asset whitelists are both empty")
	}
	for symbol := range s.ExcludedCryptoQuoteAssets {
		if _, ok := s.ExcludedFiatQuoteAssets[symbol]; ok {
			return fmt.Errorf("quote asset %s is listed as both crypto and fiat", symbol)
		}
	}

	for _, group := range []map[string]struct{}{
		s.ExcludedCryptoQuoteAssets,
		s.ExcludedFiatQuoteAssets,
		s.ExcludedCryptoPairedBaseAssets,
		s.ExcludedFiatPairedBaseAssets,
	} {
		for symbol := range group {
			if err := checkSymbol(symbol); err != nil {
				return err
			}
		}
	}

	primaries := make(map[exchange.Exchange]bool)
	for _, rule := range s.DifferencePruning {
		if !rule.Primary.Valid() {
			return fmt.Errorf("difference pruning references %s", rule.Primary)
		}
		if primaries[rule.Primary] {
			return fmt.Errorf("difference pruning lists primary %s twice", rule.Primary)
		}
		primaries[rule.Primary] = true
		if len(rule.Secondaries) == 0 {
			return fmt.Errorf("difference pruning for %s has no secondaries", rule.Primary)
		}
		for _, secondary := range rule.Secondaries {
			if !secondary.Valid() {
				return fmt.Errorf("difference pruning for %s references %s", rule.Primary, secondary)
			}
			if secondary == rule.Primary {
				return fmt.Errorf("difference pruning for %s lists itself as a secondary", rule.Primary)
			}
		}
	}

	for from, to := range s.TickerVariations {
		if err := checkSymbol(from); err != nil {
			return err
		}
		if err := checkSymbol(to); err != nil {
			return err
		}
		if from == to {
			return fmt.Errorf("ticker variation %s maps to itself", from)
		}
		if back, ok := s.TickerVariations[to]; !ok || back != from {
			return fmt.Errorf("ticker variation %s -> %s has no reverse entry", from, to)
		}
	}

	return nil
}

// Preferences returns the pruning preferences for ex
func (s *Set) Preferences(ex exchange.Exchange) Preferences {
	return s.PruningPreferences[ex]
}

// IsCryptoQuote reports whether symbol is a whitelisted crypto quote asset
func (s *Set) IsCryptoQuote(symbol string) bool {
	_, ok := s.ExcludedCryptoQuoteAssets[symbol]
	return ok
}

// IsFiatQuote reports whether symbol is a whitelisted fiat quote asset
func (s *Set) IsFiatQuote(symbol string) bool {
	_, ok := s.ExcludedFiatQuoteAssets[symbol]
	return ok
}

// IsCryptoExemptBase reports whether base is exempt from crypto-quote and difference pruning
func (s *Set) IsCryptoExemptBase(base string) bool {
	_, ok := s.ExcludedCryptoPairedBaseAssets[base]
	return ok
}

// IsFiatExemptBase reports whether base is exempt from fiat-quote pruning
func (s *Set) IsFiatExemptBase(base string) bool {
	_, ok := s.ExcludedFiatPairedBaseAssets[base]
	return ok
}

// Variation returns the alternate ticker name of symbol, if one is known
func (s *Set) Variation(symbol string) (string, bool) {
	v, ok := s.TickerVariations[symbol]
	return v, ok
}

// Symbols returns the members of a symbol set in sorted order
func Symbols(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for symbol := range set {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func toSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		set[symbol] = struct{}{}
	}
	return set
}

func checkSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("empty asset symbol")
	}
	if strings.ToUpper(symbol) != symbol {
		return fmt.Errorf("asset symbol %q must be upper case", symbol)
	}
	return nil
}
