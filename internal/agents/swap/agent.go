// Package swap implements the token-swap execution agent.
package swap

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"intent-orchestrator/internal/agents"
	ierr "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/common/logger"
	"intent-orchestrator/internal/intent"
	"intent-orchestrator/internal/parser"
	"intent-orchestrator/internal/services/aggregator"
	"intent-orchestrator/internal/services/chain"
	"intent-orchestrator/internal/tokens"
)

// QuoteService fetches swap routes.
type QuoteService interface {
	Quote(ctx context.Context, req aggregator.QuoteRequest) (*aggregator.QuoteResponse, error)
}

// ChainService is the on-chain surface the swap needs.
type ChainService interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	ExecuteSwap(ctx context.Context, target common.Address, callData []byte, value *big.Int) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error)
}

var triggerKeywords = []string{"swap", "tukar", "convert", "exchange"}

var arrowMarkers = []string{"->", ">", "→"}

// Agent executes token swaps: quote, approve, swap, confirm.
type Agent struct {
	parser   *parser.Parser
	registry *tokens.Registry
	quotes   QuoteService
	chain    ChainService
	log      logger.Logger
}

func New(p *parser.Parser, registry *tokens.Registry, quotes QuoteService, chainSvc ChainService, log logger.Logger) *Agent {
	return &Agent{
		parser:   p,
		registry: registry,
		quotes:   quotes,
		chain:    chainSvc,
		log:      log,
	}
}

func (a *Agent) Name() string        { return "swap-agent" }
func (a *Agent) Description() string { return "Swaps one token for another at the best available route" }
func (a *Agent) Priority() int       { return 10 }

func (a *Agent) TriggerKeywords() []string {
	out := make([]string, len(triggerKeywords))
	copy(out, triggerKeywords)
	return out
}

// CanHandle accepts swap vocabulary, or an arrow separator next to at least
// one token the registry recognizes.
func (a *Agent) CanHandle(prompt string, _ agents.PromptContext) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range triggerKeywords {
		if containsWord(lower, kw) {
			return true
		}
	}
	hasArrow := false
	for _, arrow := range arrowMarkers {
		if strings.Contains(prompt, arrow) {
			hasArrow = true
			break
		}
	}
	if !hasArrow {
		return false
	}
	for _, field := range strings.Fields(strings.NewReplacer("->", " ", ">", " ", "→", " ").Replace(prompt)) {
		if a.registry.Known(field) {
			return true
		}
	}
	return false
}

func (a *Agent) Parse(_ context.Context, prompt string, _ agents.PromptContext) intent.ParseResult {
	return a.parser.Decide(prompt)
}

func (a *Agent) Help() agents.AgentHelp {
	return agents.AgentHelp{
		Examples: []string{
			`Swap 1 WIP > USDC slippage 0.5%`,
			`tukar 2,5 WIP ke USDC`,
		},
		ParameterSchema: parameterSchema,
	}
}

var parameterSchema = json.RawMessage(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["tokenIn", "tokenOut", "amount"],
  "properties": {
    "tokenIn": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
    "tokenOut": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
    "amount": {"type": "number", "exclusiveMinimum": 0},
    "slippagePct": {"type": "number", "minimum": 0, "maximum": 100},
    "hasSlippage": {"type": "boolean"}
  },
  "additionalProperties": false
}`)

// Execute runs the full swap pipeline. Collaborator errors come back inside
// the result, never as a panic or a returned error.
func (a *Agent) Execute(ctx context.Context, in intent.Intent, _ agents.PromptContext) intent.ExecutionResult {
	swapIntent, ok := in.(intent.SwapIntent)
	if !ok {
		return intent.ExecFailure(ierr.NewInvalidIntentError(fmt.Sprintf("swap agent cannot execute %s intent", in.Kind())), "")
	}
	if err := swapIntent.Validate(); err != nil {
		return intent.ExecFailure(ierr.NewInvalidIntentError(err.Error()), "")
	}

	decimals, err := a.tokenDecimals(ctx, swapIntent.TokenIn)
	if err != nil {
		return intent.ExecFailure(err, "could not read the input token's decimals")
	}
	amountWei := toBaseUnits(swapIntent.Amount, decimals)

	slippage := swapIntent.SlippagePct
	if !swapIntent.HasSlippage {
		slippage = parser.DefaultSlippagePct
	}

	quote, err := a.quotes.Quote(ctx, aggregator.QuoteRequest{
		TokenIn:     swapIntent.TokenIn.Hex(),
		TokenOut:    swapIntent.TokenOut.Hex(),
		AmountWei:   amountWei.String(),
		SlippagePct: slippage,
	})
	if err != nil {
		return intent.ExecFailure(err, "quote lookup failed")
	}

	if len(quote.UniversalRoutes) == 0 {
		return intent.ExecFailure(ierr.NewNoRouteError(swapIntent.TokenIn.Hex(), swapIntent.TokenOut.Hex()), "")
	}
	route := quote.UniversalRoutes[0]
	target := common.HexToAddress(route.Target)

	approveHash, err := a.chain.Approve(ctx, swapIntent.TokenIn, target, amountWei)
	if err != nil {
		return intent.ExecFailure(err, "token approval failed")
	}
	approveReceipt, err := a.chain.WaitForReceipt(ctx, approveHash)
	if err != nil {
		return intent.ExecFailure(err, "waiting for the approval receipt failed")
	}
	switch approveReceipt.State {
	case chain.ReceiptReverted:
		return intent.ExecFailure(ierr.NewApprovalFailedError(fmt.Errorf("approval %s reverted", approveHash.Hex())), "")
	case chain.ReceiptPending:
		return intent.ExecFailure(ierr.NewTxStillPendingError(approveHash.Hex()), "the approval has not confirmed yet; retry once it lands")
	}

	value := big.NewInt(0)
	if route.Value != "" {
		parsed, okVal := new(big.Int).SetString(route.Value, 10)
		if !okVal {
			return intent.ExecFailure(ierr.NewSwapFailedError(fmt.Errorf("route value %q is not a base-10 integer", route.Value)), "")
		}
		value = parsed
	}

	swapHash, err := a.chain.ExecuteSwap(ctx, target, common.FromHex(route.CallData), value)
	if err != nil {
		return intent.ExecFailure(err, "swap transaction failed to send")
	}
	swapReceipt, err := a.chain.WaitForReceipt(ctx, swapHash)
	if err != nil {
		return intent.ExecFailure(err, "waiting for the swap receipt failed")
	}

	symbolIn := a.registry.SymbolFor(swapIntent.TokenIn)
	symbolOut := a.registry.SymbolFor(swapIntent.TokenOut)
	data := map[string]interface{}{
		"tokenIn":   swapIntent.TokenIn.Hex(),
		"tokenOut":  swapIntent.TokenOut.Hex(),
		"amountIn":  swapIntent.Amount,
		"amountOut": quote.AmountOut,
		"slippage":  slippage,
	}

	switch swapReceipt.State {
	case chain.ReceiptReverted:
		return intent.ExecFailure(ierr.NewSwapFailedError(fmt.Errorf("swap %s reverted", swapHash.Hex())), "")
	case chain.ReceiptPending:
		return intent.ExecSuccess(
			fmt.Sprintf("Swap of %g %s for %s submitted; confirmation is still pending", swapIntent.Amount, symbolIn, symbolOut),
			data,
			swapHash.Hex(),
		)
	}

	data["blockNumber"] = swapReceipt.BlockNumber
	data["gasUsed"] = swapReceipt.GasUsed
	return intent.ExecSuccess(
		fmt.Sprintf("Swapped %g %s for %s", swapIntent.Amount, symbolIn, symbolOut),
		data,
		swapHash.Hex(),
	)
}

func (a *Agent) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	if dec, ok := a.registry.DecimalsFor(token); ok {
		return uint8(dec), nil
	}
	return a.chain.Decimals(ctx, token)
}

// toBaseUnits converts a display amount into the token's base units.
func toBaseUnits(amount float64, decimals uint8) *big.Int {
	f := new(big.Float).SetFloat64(amount)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Mul(f, scale)
	wei, _ := f.Int(nil)
	return wei
}

func containsWord(lower, word string) bool {
	idx := 0
	for {
		pos := strings.Index(lower[idx:], word)
		if pos < 0 {
			return false
		}
		abs := idx + pos
		beforeOK := abs == 0 || !isWordChar(lower[abs-1])
		end := abs + len(word)
		afterOK := end >= len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = end
		if idx >= len(lower) {
			return false
		}
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
