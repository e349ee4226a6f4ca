// Package intent defines the structured intent model shared by the one-shot
// parser, the dialogue engine, and the execution agents.
package intent

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// Kind discriminates the intent union.
type Kind string

const (
	KindSwap     Kind = "swap"
	KindRegister Kind = "register"
)

// Intent is the structured, validated representation of what the user wants
// done. Exactly two implementations exist: SwapIntent and RegisterIntent.
type Intent interface {
	Kind() Kind
	Validate() error
}

// SwapIntent describes a token swap.
type SwapIntent struct {
	TokenIn     common.Address `json:"tokenIn"`
	TokenOut    common.Address `json:"tokenOut"`
	Amount      float64        `json:"amount"`
	SlippagePct float64        `json:"slippagePct"`
	HasSlippage bool           `json:"hasSlippage"`
}

func (s SwapIntent) Kind() Kind { return KindSwap }

func (s SwapIntent) Validate() error {
	if s.TokenIn == (common.Address{}) {
		return fmt.Errorf("tokenIn is required")
	}
	if s.TokenOut == (common.Address{}) {
		return fmt.Errorf("tokenOut is required")
	}
	if s.TokenIn == s.TokenOut {
		return fmt.Errorf("tokenIn and tokenOut must differ")
	}
	if s.Amount <= 0 || math.IsInf(s.Amount, 0) || math.IsNaN(s.Amount) {
		return fmt.Errorf("amount must be a positive finite number")
	}
	if s.HasSlippage && (s.SlippagePct < 0 || s.SlippagePct > 100) {
		return fmt.Errorf("slippage must be between 0 and 100")
	}
	return nil
}

// RegisterIntent describes an IP registration of an attached asset.
type RegisterIntent struct {
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	License     LicenseCode   `json:"license,omitempty"`
	PILType     LicensePolicy `json:"pilType,omitempty"`
	AIDetected  bool          `json:"aiDetected"`
}

func (r RegisterIntent) Kind() Kind { return KindRegister }

func (r RegisterIntent) Validate() error {
	if r.License != "" && !r.License.Valid() {
		return fmt.Errorf("unknown license code %q", r.License)
	}
	if r.PILType != "" && !r.PILType.Valid() {
		return fmt.Errorf("unknown license policy %q", r.PILType)
	}
	return nil
}

// Plan is the ordered, human-readable description of how an intent will be
// executed. It is shown for confirmation and is not itself executable.
type Plan struct {
	Steps []string `json:"steps"`
}

// NewSwapPlan builds the fixed five-step swap plan.
func NewSwapPlan(amount float64, symbolIn, symbolOut string, slippagePct float64) Plan {
	return Plan{Steps: []string{
		fmt.Sprintf("Swap %g %s for %s (max slippage %g%%)", amount, symbolIn, symbolOut, slippagePct),
		fmt.Sprintf("Fetch best route quote for %s -> %s from the aggregator", symbolIn, symbolOut),
		fmt.Sprintf("Approve the router to spend %g %s", amount, symbolIn),
		"Execute the swap transaction and wait for confirmation",
		"Display the swap result",
	}}
}

// NewRegisterPlan builds the fixed six-step registration plan.
func NewRegisterPlan(title string) Plan {
	display := title
	if display == "" {
		display = "the attached asset"
	}
	return Plan{Steps: []string{
		"Check the attached file",
		fmt.Sprintf("Upload %s to IPFS", display),
		"Build IP and NFT metadata",
		"Upload metadata to IPFS",
		"Mint the NFT and register it as IP",
		"Display the registration result",
	}}
}

// ParseStatus discriminates ParseResult.
type ParseStatus string

const (
	StatusOk   ParseStatus = "ok"
	StatusAsk  ParseStatus = "need_info"
	StatusFail ParseStatus = "failure"
)

// ParseResult is the outcome of interpreting one prompt: a resolved intent
// with its plan, a clarification question, or a structural failure.
type ParseResult struct {
	Status      ParseStatus `json:"status"`
	Intent      Intent      `json:"intent,omitempty"`
	Plan        Plan        `json:"plan,omitempty"`
	Question    string      `json:"question,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
	Reason      string      `json:"reason,omitempty"`
}

// Ok builds a successful parse result.
func Ok(in Intent, plan Plan) ParseResult {
	return ParseResult{Status: StatusOk, Intent: in, Plan: plan}
}

// Ask builds a clarification request.
func Ask(question string, suggestions ...string) ParseResult {
	return ParseResult{Status: StatusAsk, Question: question, Suggestions: suggestions}
}

// Fail builds a structural parse failure.
func Fail(reason string) ParseResult {
	return ParseResult{Status: StatusFail, Reason: reason}
}

// ExecutionResult is the outcome of running an intent against external
// collaborators. Collaborator errors are carried here, never thrown.
type ExecutionResult struct {
	OK      bool                   `json:"ok"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	TxRef   string                 `json:"txRef,omitempty"`
	Err     error                  `json:"-"`
	Details string                 `json:"details,omitempty"`
}

// ExecSuccess builds a successful execution result.
func ExecSuccess(message string, data map[string]interface{}, txRef string) ExecutionResult {
	return ExecutionResult{OK: true, Message: message, Data: data, TxRef: txRef}
}

// ExecFailure builds a failed execution result.
func ExecFailure(err error, details string) ExecutionResult {
	return ExecutionResult{OK: false, Err: err, Details: details}
}
