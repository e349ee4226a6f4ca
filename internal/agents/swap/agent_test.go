package swap

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intent-orchestrator/internal/agents"
	"intent-orchestrator/internal/common/config"
	stderrors "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/common/logger"
	"intent-orchestrator/internal/intent"
	"intent-orchestrator/internal/parser"
	"intent-orchestrator/internal/services/aggregator"
	"intent-orchestrator/internal/services/chain"
	"intent-orchestrator/internal/tokens"
)

var (
	wip  = common.HexToAddress("0x1514000000000000000000000000000000000000")
	usdc = common.HexToAddress("0xF1815bd50389c46847f0Bda824eC8da914045D14")
)

type fakeQuotes struct {
	lastReq  aggregator.QuoteRequest
	response *aggregator.QuoteResponse
	err      error
}

func (f *fakeQuotes) Quote(_ context.Context, req aggregator.QuoteRequest) (*aggregator.QuoteResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type fakeChain struct {
	decimals        uint8
	decimalsErr     error
	approveErr      error
	swapErr         error
	approveReceipt  chain.ReceiptState
	swapReceipt     chain.ReceiptState
	approvedAmount  *big.Int
	approvedSpender common.Address
	swapTarget      common.Address
	sent            int
}

func (f *fakeChain) Decimals(context.Context, common.Address) (uint8, error) {
	return f.decimals, f.decimalsErr
}

func (f *fakeChain) Approve(_ context.Context, _, spender common.Address, amount *big.Int) (common.Hash, error) {
	if f.approveErr != nil {
		return common.Hash{}, f.approveErr
	}
	f.approvedSpender = spender
	f.approvedAmount = amount
	f.sent++
	return common.HexToHash("0x01"), nil
}

func (f *fakeChain) ExecuteSwap(_ context.Context, target common.Address, _ []byte, _ *big.Int) (common.Hash, error) {
	if f.swapErr != nil {
		return common.Hash{}, f.swapErr
	}
	f.swapTarget = target
	f.sent++
	return common.HexToHash("0x02"), nil
}

func (f *fakeChain) WaitForReceipt(_ context.Context, hash common.Hash) (*chain.Receipt, error) {
	state := f.approveReceipt
	if hash == common.HexToHash("0x02") {
		state = f.swapReceipt
	}
	if state == "" {
		state = chain.ReceiptSuccess
	}
	return &chain.Receipt{State: state, TxHash: hash, BlockNumber: 100, GasUsed: 21000}, nil
}

func testAgent(t *testing.T, quotes *fakeQuotes, chainSvc *fakeChain) *Agent {
	t.Helper()
	registry := tokens.NewRegistry([]config.TokenConfig{
		{Symbol: "WIP", Address: wip.Hex(), Decimals: 18},
		{Symbol: "USDC", Address: usdc.Hex(), Decimals: 6},
	})
	return New(parser.New(registry), registry, quotes, chainSvc, logger.NewTestLogger(t))
}

func routedResponse() *aggregator.QuoteResponse {
	return &aggregator.QuoteResponse{
		AmountOut: "987000",
		UniversalRoutes: []aggregator.Route{
			{Target: "0x000000000000000000000000000000000000beef", CallData: "0xdeadbeef", Value: "0"},
		},
	}
}

func validIntent() intent.SwapIntent {
	return intent.SwapIntent{TokenIn: wip, TokenOut: usdc, Amount: 1.5}
}

func TestExecuteHappyPath(t *testing.T) {
	quotes := &fakeQuotes{response: routedResponse()}
	chainSvc := &fakeChain{decimals: 18}
	agent := testAgent(t, quotes, chainSvc)

	result := agent.Execute(context.Background(), validIntent(), agents.PromptContext{})
	require.True(t, result.OK, "details: %s", result.Details)

	assert.Equal(t, common.HexToHash("0x02").Hex(), result.TxRef)
	assert.Equal(t, 2, chainSvc.sent)
	assert.Equal(t, common.HexToAddress("0x000000000000000000000000000000000000beef"), chainSvc.approvedSpender)
	assert.Equal(t, chainSvc.approvedSpender, chainSvc.swapTarget)

	// 1.5 WIP at 18 decimals.
	expected, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, expected, chainSvc.approvedAmount)

	// Slippage defaults when the intent carried none.
	assert.Equal(t, 0.5, quotes.lastReq.SlippagePct)
	assert.Equal(t, "987000", result.Data["amountOut"])
}

func TestExecuteUsesCollectedSlippage(t *testing.T) {
	quotes := &fakeQuotes{response: routedResponse()}
	agent := testAgent(t, quotes, &fakeChain{})

	in := validIntent()
	in.SlippagePct = 2
	in.HasSlippage = true

	result := agent.Execute(context.Background(), in, agents.PromptContext{})
	require.True(t, result.OK)
	assert.Equal(t, 2.0, quotes.lastReq.SlippagePct)
}

func TestExecuteRejectsWrongIntentKind(t *testing.T) {
	agent := testAgent(t, &fakeQuotes{}, &fakeChain{})

	result := agent.Execute(context.Background(), intent.RegisterIntent{Title: "Sunset"}, agents.PromptContext{})
	require.False(t, result.OK)
	assert.Equal(t, stderrors.ErrCodeInvalidIntent, stderrors.CodeOf(result.Err))
}

func TestExecuteWrapsQuoteFailure(t *testing.T) {
	quotes := &fakeQuotes{err: stderrors.NewQuoteTimeoutError()}
	agent := testAgent(t, quotes, &fakeChain{})

	result := agent.Execute(context.Background(), validIntent(), agents.PromptContext{})
	require.False(t, result.OK)
	assert.Equal(t, stderrors.ErrCodeQuoteTimeout, stderrors.CodeOf(result.Err))
}

func TestExecuteRejectsQuoteWithoutRoutes(t *testing.T) {
	quotes := &fakeQuotes{response: &aggregator.QuoteResponse{AmountOut: "0"}}
	chainSvc := &fakeChain{}
	agent := testAgent(t, quotes, chainSvc)

	result := agent.Execute(context.Background(), validIntent(), agents.PromptContext{})
	require.False(t, result.OK)
	assert.Equal(t, stderrors.ErrCodeNoRoute, stderrors.CodeOf(result.Err))
	assert.Equal(t, 0, chainSvc.sent)
}

func TestExecuteStopsWhenApprovalReverts(t *testing.T) {
	chainSvc := &fakeChain{approveReceipt: chain.ReceiptReverted}
	agent := testAgent(t, &fakeQuotes{response: routedResponse()}, chainSvc)

	result := agent.Execute(context.Background(), validIntent(), agents.PromptContext{})
	require.False(t, result.OK)
	assert.Equal(t, stderrors.ErrCodeApprovalFailed, stderrors.CodeOf(result.Err))
	assert.Equal(t, 1, chainSvc.sent)
}

func TestExecuteReportsPendingApprovalAsRetryable(t *testing.T) {
	chainSvc := &fakeChain{approveReceipt: chain.ReceiptPending}
	agent := testAgent(t, &fakeQuotes{response: routedResponse()}, chainSvc)

	result := agent.Execute(context.Background(), validIntent(), agents.PromptContext{})
	require.False(t, result.OK)
	assert.Equal(t, stderrors.ErrCodeTxStillPending, stderrors.CodeOf(result.Err))
}

func TestExecutePendingSwapIsNotAFailure(t *testing.T) {
	chainSvc := &fakeChain{swapReceipt: chain.ReceiptPending}
	agent := testAgent(t, &fakeQuotes{response: routedResponse()}, chainSvc)

	result := agent.Execute(context.Background(), validIntent(), agents.PromptContext{})
	require.True(t, result.OK)
	assert.Contains(t, result.Message, "pending")
	assert.Equal(t, common.HexToHash("0x02").Hex(), result.TxRef)
}

func TestCanHandle(t *testing.T) {
	agent := testAgent(t, &fakeQuotes{}, &fakeChain{})

	tests := []struct {
		name   string
		prompt string
		want   bool
	}{
		{name: "swap keyword", prompt: "please swap something", want: true},
		{name: "indonesian keyword", prompt: "tukar token saya", want: true},
		{name: "arrow with known token", prompt: "WIP -> USDC 2", want: true},
		{name: "arrow with unknown tokens", prompt: "FOO -> BAR 2", want: false},
		{name: "no trigger at all", prompt: "register this image", want: false},
		{name: "keyword inside another word", prompt: "swapped opinions over lunch", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agent.CanHandle(tt.prompt, agents.PromptContext{}))
		})
	}
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   float64
		decimals uint8
		want     string
	}{
		{amount: 1, decimals: 18, want: "1000000000000000000"},
		{amount: 2.5, decimals: 6, want: "2500000"},
		{amount: 0.000001, decimals: 6, want: "1"},
	}

	for _, tt := range tests {
		got := toBaseUnits(tt.amount, tt.decimals)
		assert.Equal(t, tt.want, got.String(), "amount %v decimals %d", tt.amount, tt.decimals)
	}
}
