package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intent-orchestrator/internal/agents"
	"intent-orchestrator/internal/common/config"
	"intent-orchestrator/internal/common/logger"
	"intent-orchestrator/internal/dialogue"
	"intent-orchestrator/internal/intent"
	"intent-orchestrator/internal/orchestrator"
	"intent-orchestrator/internal/services/detector"
	"intent-orchestrator/internal/tokens"
)

type fakeBrain struct {
	outcome    orchestrator.Outcome
	execResult intent.ExecutionResult
	execErr    error

	executedAgent  string
	executedIntent intent.Intent
	executedCtx    agents.PromptContext
}

func (f *fakeBrain) ProcessPrompt(_ context.Context, _ string, _ agents.PromptContext) orchestrator.Outcome {
	return f.outcome
}

func (f *fakeBrain) ExecuteIntent(_ context.Context, agentName string, in intent.Intent, pctx agents.PromptContext) (intent.ExecutionResult, error) {
	f.executedAgent = agentName
	f.executedIntent = in
	f.executedCtx = pctx
	return f.execResult, f.execErr
}

type fakeClassifier struct {
	verdict detector.Verdict
	calls   int
}

func (f *fakeClassifier) Detect(context.Context, []byte) detector.Verdict {
	f.calls++
	return f.verdict
}

func testRegistry() *tokens.Registry {
	return tokens.NewRegistry([]config.TokenConfig{
		{Symbol: "WIP", Address: "0x1514000000000000000000000000000000000000", Decimals: 18, Aliases: []string{"wrapped ip"}},
		{Symbol: "USDC", Address: "0xF1815bd50389c46847f0Bda824eC8da914045D14", Decimals: 6},
	})
}

func testHandler(t *testing.T, brain Brain, classifier FileClassifier) *Handler {
	t.Helper()
	kinds := map[intent.Kind]string{
		intent.KindSwap:     "swap-agent",
		intent.KindRegister: "register-agent",
	}
	return NewHandler("chat.prompt", brain, testRegistry(), classifier, nil, kinds, logger.NewTestLogger(t))
}

func TestHandleMessageCreatesSessionAndGreets(t *testing.T) {
	h := testHandler(t, &fakeBrain{}, nil)

	resp := h.Handle(context.Background(), ChatRequest{Type: TypeMessage, Text: "hello"})
	require.NotEmpty(t, resp.SessionID)
	require.NotNil(t, resp.Reply)
	assert.Empty(t, resp.Error)

	again := h.Handle(context.Background(), ChatRequest{Type: TypeMessage, SessionID: resp.SessionID, Text: "swap tokens"})
	assert.Equal(t, resp.SessionID, again.SessionID)
}

func TestHandleDialoguePlanThenConfirm(t *testing.T) {
	brain := &fakeBrain{execResult: intent.ExecSuccess("swapped", nil, "0xabc")}
	h := testHandler(t, brain, nil)

	first := h.Handle(context.Background(), ChatRequest{Type: TypeMessage, Text: "I want to swap"})
	sid := first.SessionID
	require.NotNil(t, first.Reply)
	assert.Equal(t, dialogue.ReplyAwaitingText, first.Reply.Kind)

	resp := h.Handle(context.Background(), ChatRequest{
		Type: TypeMessage, SessionID: sid, Text: "1.5 WIP to USDC",
	})
	require.NotNil(t, resp.Reply)
	require.Equal(t, dialogue.ReplyPlan, resp.Reply.Kind)
	require.NotNil(t, resp.Reply.Intent)

	confirm := h.Handle(context.Background(), ChatRequest{Type: TypeConfirm, SessionID: sid})
	require.NotNil(t, confirm.Execution)
	assert.True(t, confirm.Execution.OK)
	assert.Equal(t, "swap-agent", brain.executedAgent)
	assert.Equal(t, intent.KindSwap, brain.executedIntent.Kind())
	assert.Equal(t, sid, brain.executedCtx.SessionID)

	second := h.Handle(context.Background(), ChatRequest{Type: TypeConfirm, SessionID: sid})
	assert.NotEmpty(t, second.Error)
}

func TestHandleMessageAfterPlanDropsPending(t *testing.T) {
	brain := &fakeBrain{execResult: intent.ExecSuccess("swapped", nil, "0xabc")}
	h := testHandler(t, brain, nil)

	first := h.Handle(context.Background(), ChatRequest{Type: TypeMessage, Text: "I want to swap"})
	sid := first.SessionID

	plan := h.Handle(context.Background(), ChatRequest{Type: TypeMessage, SessionID: sid, Text: "1.5 WIP to USDC"})
	require.Equal(t, dialogue.ReplyPlan, plan.Reply.Kind)

	moved := h.Handle(context.Background(), ChatRequest{Type: TypeMessage, SessionID: sid, Text: "actually never mind"})
	require.NotNil(t, moved.Reply)
	assert.NotEqual(t, dialogue.ReplyPlan, moved.Reply.Kind)

	confirm := h.Handle(context.Background(), ChatRequest{Type: TypeConfirm, SessionID: sid})
	assert.NotEmpty(t, confirm.Error)
	assert.Empty(t, brain.executedAgent)
}

func TestHandleConfirmWithoutPlanErrors(t *testing.T) {
	h := testHandler(t, &fakeBrain{}, nil)

	resp := h.Handle(context.Background(), ChatRequest{Type: TypeConfirm})
	assert.NotEmpty(t, resp.Error)
	assert.Nil(t, resp.Execution)
}

func TestHandleFileClassifiesAndKeepsAttachment(t *testing.T) {
	classifier := &fakeClassifier{verdict: detector.Verdict{IsAI: true, Confidence: 0.9}}
	brain := &fakeBrain{execResult: intent.ExecSuccess("registered", nil, "0xdef")}
	h := testHandler(t, brain, classifier)

	first := h.Handle(context.Background(), ChatRequest{Type: TypeMessage, Text: "register my image as IP"})
	sid := first.SessionID

	resp := h.Handle(context.Background(), ChatRequest{
		Type: TypeFile, SessionID: sid, FileName: "art.png", FileData: []byte{1, 2, 3},
	})
	require.NotNil(t, resp.Reply)
	assert.Equal(t, 1, classifier.calls)

	h.Handle(context.Background(), ChatRequest{Type: TypeMessage, SessionID: sid, Text: "Sunset Study"})
	h.Handle(context.Background(), ChatRequest{Type: TypeMessage, SessionID: sid, Text: "a digital painting of a sunset over water"})
	plan := h.Handle(context.Background(), ChatRequest{Type: TypeMessage, SessionID: sid, Text: "Commercial use"})
	require.NotNil(t, plan.Reply)
	require.Equal(t, dialogue.ReplyPlan, plan.Reply.Kind)

	confirm := h.Handle(context.Background(), ChatRequest{Type: TypeConfirm, SessionID: sid})
	require.NotNil(t, confirm.Execution)
	assert.Equal(t, "register-agent", brain.executedAgent)
	require.NotNil(t, brain.executedCtx.Attachment)
	assert.Equal(t, "art.png", brain.executedCtx.Attachment.Name)
}

func TestHandleFileWithoutDataErrors(t *testing.T) {
	h := testHandler(t, &fakeBrain{}, nil)

	resp := h.Handle(context.Background(), ChatRequest{Type: TypeFile, FileName: "art.png"})
	assert.NotEmpty(t, resp.Error)
}

func TestHandlePromptStashesHandledIntent(t *testing.T) {
	swapIn := intent.SwapIntent{Amount: 1}
	brain := &fakeBrain{
		outcome: orchestrator.Outcome{
			Status: orchestrator.Handled,
			Agent:  "swap-agent",
			Result: intent.Ok(swapIn, intent.NewSwapPlan(1, "WIP", "USDC", 0.5)),
		},
		execResult: intent.ExecSuccess("swapped", nil, "0xabc"),
	}
	h := testHandler(t, brain, nil)

	resp := h.Handle(context.Background(), ChatRequest{Type: TypePrompt, Text: "swap 1 WIP > USDC"})
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, orchestrator.Handled, resp.Outcome.Status)

	confirm := h.Handle(context.Background(), ChatRequest{Type: TypeConfirm, SessionID: resp.SessionID})
	require.NotNil(t, confirm.Execution)
	assert.Equal(t, "swap-agent", brain.executedAgent)
}

func TestHandleResetClearsPending(t *testing.T) {
	brain := &fakeBrain{
		outcome: orchestrator.Outcome{
			Status: orchestrator.Handled,
			Agent:  "swap-agent",
			Result: intent.Ok(intent.SwapIntent{Amount: 1}, intent.Plan{}),
		},
	}
	h := testHandler(t, brain, nil)

	resp := h.Handle(context.Background(), ChatRequest{Type: TypePrompt, Text: "swap 1 WIP > USDC"})
	sid := resp.SessionID

	reset := h.Handle(context.Background(), ChatRequest{Type: TypeReset, SessionID: sid})
	require.NotNil(t, reset.Reply)

	confirm := h.Handle(context.Background(), ChatRequest{Type: TypeConfirm, SessionID: sid})
	assert.NotEmpty(t, confirm.Error)
}

func TestHandleUnknownTypeErrors(t *testing.T) {
	h := testHandler(t, &fakeBrain{}, nil)

	resp := h.Handle(context.Background(), ChatRequest{Type: "dance"})
	assert.NotEmpty(t, resp.Error)
}
