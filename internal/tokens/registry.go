// Package tokens holds the static token registry resolved from configuration.
package tokens

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"intent-orchestrator/internal/common/config"
)

// Token is one registered token with its resolvable names.
type Token struct {
	Symbol   string
	Address  common.Address
	Aliases  []string
	Decimals int
}

// Registry maps symbols and aliases to on-chain addresses. Built once at
// startup and read-only afterwards, so it is safe to share by reference.
type Registry struct {
	bySymbol  map[string]Token
	byAddress map[common.Address]Token
	ordered   []Token
}

// NewRegistry builds a registry from config entries. Entries with malformed
// addresses are skipped rather than rejected so one bad row in config does
// not take down the whole service.
func NewRegistry(entries []config.TokenConfig) *Registry {
	r := &Registry{
		bySymbol:  make(map[string]Token, len(entries)),
		byAddress: make(map[common.Address]Token, len(entries)),
	}
	for _, e := range entries {
		if !common.IsHexAddress(e.Address) {
			continue
		}
		tok := Token{
			Symbol:   e.Symbol,
			Address:  common.HexToAddress(e.Address),
			Aliases:  e.Aliases,
			Decimals: e.Decimals,
		}
		r.bySymbol[strings.ToLower(e.Symbol)] = tok
		for _, alias := range e.Aliases {
			key := strings.ToLower(alias)
			if _, exists := r.bySymbol[key]; !exists {
				r.bySymbol[key] = tok
			}
		}
		if _, exists := r.byAddress[tok.Address]; !exists {
			r.byAddress[tok.Address] = tok
		}
		r.ordered = append(r.ordered, tok)
	}
	return r
}

// Resolve maps a symbol, alias, or literal address string to an address.
// Literal addresses pass through verbatim, accepted case-insensitively.
func (r *Registry) Resolve(input string) (common.Address, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, false
	}
	if common.IsHexAddress(input) {
		return common.HexToAddress(input), true
	}
	tok, ok := r.bySymbol[strings.ToLower(input)]
	if !ok {
		return common.Address{}, false
	}
	return tok.Address, true
}

// SymbolFor returns the registered symbol for an address, or the hex form
// of the address itself when unregistered. Never fails.
func (r *Registry) SymbolFor(addr common.Address) string {
	if tok, ok := r.byAddress[addr]; ok {
		return tok.Symbol
	}
	return addr.Hex()
}

// DecimalsFor returns configured decimals for an address, with ok=false
// when the token is unregistered and decimals must be read on-chain.
func (r *Registry) DecimalsFor(addr common.Address) (int, bool) {
	tok, ok := r.byAddress[addr]
	if !ok || tok.Decimals == 0 {
		return 0, false
	}
	return tok.Decimals, true
}

// Known reports whether the input resolves to a registered token or is a
// literal address. Used by capability predicates.
func (r *Registry) Known(input string) bool {
	_, ok := r.Resolve(input)
	return ok
}

// List returns the registered tokens in configuration order.
func (r *Registry) List() []Token {
	out := make([]Token, len(r.ordered))
	copy(out, r.ordered)
	return out
}
