// Package parser implements the one-shot prompt interpreter: stateless pure
// functions from free text to a structured intent, a clarification question,
// or a failure.
package parser

import (
	"regexp"
	"strings"

	"intent-orchestrator/internal/intent"
	"intent-orchestrator/internal/tokens"
)

var swapTriggers = []string{"swap", "tukar", "convert", "exchange"}

var registerTriggers = []string{"register", "registrasi", "mint", "daftarkan"}

// Symbol arrows qualify a trigger-less prompt for the swap fallback. The word
// arrows ("to", "ke") are accepted inside swap patterns but are too common in
// plain sentences to act as a trigger on their own.
var symbolArrows = []string{"->", ">", "→"}

const (
	swapExample     = `Swap 1 WIP > USDC slippage 0.5%`
	registerExample = `Register this image IP, title "Sunset" by-nc`
)

// Parser turns raw prompts into parse results. It holds only the read-only
// token registry and is safe for concurrent use.
type Parser struct {
	registry *tokens.Registry
}

func New(registry *tokens.Registry) *Parser {
	return &Parser{registry: registry}
}

// Decide interprets one prompt. It is a pure function of its input: the same
// text always produces a structurally identical result.
func (p *Parser) Decide(text string) intent.ParseResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return p.askBothFlows()
	}

	swapIdx := earliestTrigger(trimmed, swapTriggers)
	registerIdx := earliestTrigger(trimmed, registerTriggers)

	switch {
	case swapIdx >= 0 && (registerIdx < 0 || swapIdx <= registerIdx):
		return p.parseSwap(trimmed)
	case registerIdx >= 0:
		return p.parseRegister(trimmed)
	}

	// No trigger word, but an arrow separator still reads as a swap request.
	for _, arrow := range symbolArrows {
		if strings.Contains(trimmed, arrow) {
			return p.parseSwap("swap " + trimmed)
		}
	}

	return p.askBothFlows()
}

func (p *Parser) askBothFlows() intent.ParseResult {
	return intent.Ask(
		"I can swap tokens or register IP for you. What would you like to do?",
		swapExample,
		registerExample,
	)
}

// earliestTrigger returns the byte offset of the first whole-word occurrence
// of any trigger, or -1.
func earliestTrigger(text string, triggers []string) int {
	lower := strings.ToLower(text)
	best := -1
	for _, trigger := range triggers {
		idx := indexWord(lower, trigger)
		if idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best
}

// indexWord finds trigger as a standalone word inside lower-cased text.
func indexWord(lower, word string) int {
	offset := 0
	for {
		idx := strings.Index(lower[offset:], word)
		if idx < 0 {
			return -1
		}
		abs := offset + idx
		beforeOK := abs == 0 || !isWordChar(lower[abs-1])
		afterIdx := abs + len(word)
		afterOK := afterIdx >= len(lower) || !isWordChar(lower[afterIdx])
		if beforeOK && afterOK {
			return abs
		}
		offset = abs + len(word)
		if offset >= len(lower) {
			return -1
		}
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
