package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"intent-orchestrator/internal/intent"
)

const tokenPat = `(0x[0-9a-fA-F]{40}|[A-Za-z][A-Za-z0-9]*)`

const arrowPat = `(?:->|>|→|\s+(?:to|ke)\s+)`

const amountPat = `([0-9][0-9.,]*)`

var (
	// <verb> <amount> <tokenA> <arrow> <tokenB>
	reSwapAmountFirst = regexp.MustCompile(`(?i)(?:swap|tukar|convert|exchange)\s+` + amountPat + `\s*` + tokenPat + `\s*` + arrowPat + `\s*` + tokenPat)
	// <tokenA> <arrow> <tokenB>, optionally followed by <amount>. The amount
	// group is optional so a pair without one still names only "amount" as
	// missing instead of failing the whole grammar.
	reSwapTokensFirst = regexp.MustCompile(`(?i)` + tokenPat + `\s*` + arrowPat + `\s*` + tokenPat + `(?:.*?` + amountPat + `)?`)

	reSlippage = regexp.MustCompile(`(?i)\bslip(?:page)?\s*:?\s*([0-9][0-9.,]*)\s*%?`)
)

// DefaultSlippagePct is applied when the user did not name a tolerance.
const DefaultSlippagePct = 0.5

// parseSwap attempts both documented swap orderings: amount-first, then
// tokens-first. The orderings can disagree on inputs carrying two numbers;
// the amount-first attempt deliberately wins.
func (p *Parser) parseSwap(text string) intent.ParseResult {
	slippage, hasSlippage := ParseSlippage(text)

	// The slippage clause carries its own number. Strip it before the swap
	// grammars run so that number can never be read as the amount.
	scan := reSlippage.ReplaceAllString(text, " ")

	var amountStr, tokenInStr, tokenOutStr string
	if m := reSwapAmountFirst.FindStringSubmatch(scan); m != nil {
		amountStr, tokenInStr, tokenOutStr = m[1], m[2], m[3]
	} else if m := reSwapTokensFirst.FindStringSubmatch(scan); m != nil {
		tokenInStr, tokenOutStr, amountStr = m[1], m[2], m[3]
	}

	var missing []string
	var swapIntent intent.SwapIntent

	if tokenInStr == "" {
		missing = append(missing, "token in")
	} else if addr, ok := p.registry.Resolve(tokenInStr); ok {
		swapIntent.TokenIn = addr
	} else {
		missing = append(missing, fmt.Sprintf("token in (%q is not a supported token)", tokenInStr))
	}

	if tokenOutStr == "" {
		missing = append(missing, "token out")
	} else if addr, ok := p.registry.Resolve(tokenOutStr); ok {
		swapIntent.TokenOut = addr
	} else {
		missing = append(missing, fmt.Sprintf("token out (%q is not a supported token)", tokenOutStr))
	}

	if amount, ok := ParseAmount(amountStr); ok {
		swapIntent.Amount = amount
	} else {
		missing = append(missing, "amount")
	}

	if len(missing) > 0 {
		return intent.Ask(
			fmt.Sprintf("I couldn't work out the %s for this swap. Try something like: %s", strings.Join(missing, ", "), swapExample),
			swapExample,
		)
	}

	swapIntent.SlippagePct = slippage
	swapIntent.HasSlippage = hasSlippage

	if err := swapIntent.Validate(); err != nil {
		return intent.Ask(
			fmt.Sprintf("That swap doesn't add up (%v). Try something like: %s", err, swapExample),
			swapExample,
		)
	}

	displaySlippage := slippage
	if !hasSlippage {
		displaySlippage = DefaultSlippagePct
	}
	plan := intent.NewSwapPlan(
		swapIntent.Amount,
		p.registry.SymbolFor(swapIntent.TokenIn),
		p.registry.SymbolFor(swapIntent.TokenOut),
		displaySlippage,
	)
	return intent.Ok(swapIntent, plan)
}

// ParseSlippage extracts an optional slippage clause. Its absence never
// fails a parse.
func ParseSlippage(text string) (float64, bool) {
	m := reSlippage.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	val, ok := ParseAmount(m[1])
	if !ok || val > 100 {
		return 0, false
	}
	return val, true
}

// ParseAmount normalizes comma decimal separators and requires a positive
// finite value.
func ParseAmount(raw string) (float64, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val <= 0 || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}
