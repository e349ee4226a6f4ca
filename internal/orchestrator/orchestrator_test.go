package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intent-orchestrator/internal/agents"
	"intent-orchestrator/internal/common/config"
	stderrors "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/common/logger"
	"intent-orchestrator/internal/history"
	"intent-orchestrator/internal/intent"
)

type stubAgent struct {
	name     string
	priority int
	handles  bool
	parse    func(prompt string) intent.ParseResult
	execute  func(in intent.Intent) intent.ExecutionResult
	schema   json.RawMessage
}

func (s *stubAgent) Name() string              { return s.name }
func (s *stubAgent) Description() string       { return "stub" }
func (s *stubAgent) Priority() int             { return s.priority }
func (s *stubAgent) TriggerKeywords() []string { return nil }

func (s *stubAgent) CanHandle(string, agents.PromptContext) bool { return s.handles }

func (s *stubAgent) Parse(_ context.Context, prompt string, _ agents.PromptContext) intent.ParseResult {
	if s.parse == nil {
		return intent.Ask("what would you like to do?")
	}
	return s.parse(prompt)
}

func (s *stubAgent) Execute(_ context.Context, in intent.Intent, _ agents.PromptContext) intent.ExecutionResult {
	if s.execute == nil {
		return intent.ExecSuccess("done", nil, "")
	}
	return s.execute(in)
}

func (s *stubAgent) Help() agents.AgentHelp {
	return agents.AgentHelp{Examples: []string{"stub example"}, ParameterSchema: s.schema}
}

type recordingHistory struct {
	prompts    []history.PromptRecord
	executions []history.ExecutionRecord
}

func (r *recordingHistory) SavePrompt(_ context.Context, rec history.PromptRecord) error {
	r.prompts = append(r.prompts, rec)
	return nil
}

func (r *recordingHistory) SaveExecution(_ context.Context, rec history.ExecutionRecord) error {
	r.executions = append(r.executions, rec)
	return nil
}

func newOrchestrator(t *testing.T, hist HistoryRecorder, stubs ...*stubAgent) *Orchestrator {
	t.Helper()
	registry := agents.NewRegistry(logger.NewTestLogger(t))
	for _, s := range stubs {
		registry.Register(s)
	}
	return New(registry, config.OrchestratorConfig{}, hist, nil, logger.NewTestLogger(t))
}

func swapIntentFixture() intent.SwapIntent {
	return intent.SwapIntent{
		TokenIn:  common.HexToAddress("0x1514000000000000000000000000000000000000"),
		TokenOut: common.HexToAddress("0xF1815bd50389c46847f0Bda824eC8da914045D14"),
		Amount:   1,
	}
}

func TestProcessPromptDispatchesHighestPrecedenceAgent(t *testing.T) {
	hist := &recordingHistory{}
	o := newOrchestrator(t, hist,
		&stubAgent{name: "low", priority: 20, handles: true},
		&stubAgent{name: "high", priority: 5, handles: true, parse: func(string) intent.ParseResult {
			return intent.Ok(swapIntentFixture(), intent.NewSwapPlan(1, "WIP", "USDC", 0.5))
		}},
	)

	outcome := o.ProcessPrompt(context.Background(), "swap 1 WIP > USDC", agents.PromptContext{SessionID: "s1"})
	assert.Equal(t, Handled, outcome.Status)
	assert.Equal(t, "high", outcome.Agent)
	assert.Equal(t, intent.StatusOk, outcome.Result.Status)

	require.Len(t, hist.prompts, 1)
	assert.Equal(t, "handled", hist.prompts[0].Outcome)
	assert.Equal(t, "high", hist.prompts[0].Agent)
}

func TestProcessPromptUnknownWhenNoAgentClaims(t *testing.T) {
	o := newOrchestrator(t, nil, &stubAgent{name: "picky", priority: 1, handles: false})

	outcome := o.ProcessPrompt(context.Background(), "what is the weather", agents.PromptContext{})
	assert.Equal(t, Unknown, outcome.Status)
	assert.NotEmpty(t, outcome.Help)
	assert.Empty(t, outcome.Agent)
}

func TestProcessPromptSurfacesParseFailureVerbatim(t *testing.T) {
	o := newOrchestrator(t, nil,
		&stubAgent{name: "first", priority: 1, handles: true, parse: func(string) intent.ParseResult {
			return intent.Fail("input matches no supported pattern")
		}},
		&stubAgent{name: "second", priority: 2, handles: true},
	)

	outcome := o.ProcessPrompt(context.Background(), "anything", agents.PromptContext{})
	assert.Equal(t, Handled, outcome.Status)
	assert.Equal(t, "first", outcome.Agent)
	assert.Equal(t, intent.StatusFail, outcome.Result.Status)
	assert.Equal(t, "input matches no supported pattern", outcome.Result.Reason)
}

func TestProcessPromptFallsThroughPanickingParser(t *testing.T) {
	o := newOrchestrator(t, nil,
		&stubAgent{name: "broken", priority: 1, handles: true, parse: func(string) intent.ParseResult {
			panic("parser exploded")
		}},
		&stubAgent{name: "working", priority: 2, handles: true},
	)

	outcome := o.ProcessPrompt(context.Background(), "anything", agents.PromptContext{})
	assert.Equal(t, Handled, outcome.Status)
	assert.Equal(t, "working", outcome.Agent)
}

func TestProcessPromptAmbiguousWhenAllCapablePanic(t *testing.T) {
	exploding := func(string) intent.ParseResult { panic("no") }
	o := newOrchestrator(t, nil,
		&stubAgent{name: "a", priority: 1, handles: true, parse: exploding},
		&stubAgent{name: "b", priority: 2, handles: true, parse: exploding},
	)

	outcome := o.ProcessPrompt(context.Background(), "anything", agents.PromptContext{})
	assert.Equal(t, Ambiguous, outcome.Status)
	assert.Equal(t, []string{"a", "b"}, outcome.Candidates)
	assert.NotEmpty(t, outcome.Help)
}

func TestProcessPromptNeverPanics(t *testing.T) {
	o := newOrchestrator(t, nil,
		&stubAgent{name: "panicky", priority: 1, handles: true, parse: func(string) intent.ParseResult {
			panic("parser exploded")
		}},
	)

	inputs := []string{
		"",
		"   ",
		"swap",
		"swap -1 WIP > WIP",
		"\x00\xff garbage",
		"𝕤𝕨𝕒𝕡 unicode soup → →",
	}
	for _, input := range inputs {
		assert.NotPanics(t, func() {
			outcome := o.ProcessPrompt(context.Background(), input, agents.PromptContext{})
			assert.Equal(t, Unknown, outcome.Status, "input %q", input)
		})
	}
}

func TestExecuteIntentUnknownAgentIsTheOnlyError(t *testing.T) {
	o := newOrchestrator(t, nil, &stubAgent{name: "real", priority: 1})

	_, err := o.ExecuteIntent(context.Background(), "ghost", swapIntentFixture(), agents.PromptContext{})
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeAgentNotFound, stderrors.CodeOf(err))
}

func TestExecuteIntentRunsAgent(t *testing.T) {
	hist := &recordingHistory{}
	o := newOrchestrator(t, hist, &stubAgent{name: "real", priority: 1, execute: func(intent.Intent) intent.ExecutionResult {
		return intent.ExecSuccess("swapped", nil, "0xabc")
	}})

	result, err := o.ExecuteIntent(context.Background(), "real", swapIntentFixture(), agents.PromptContext{SessionID: "s1"})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, "0xabc", result.TxRef)

	require.Len(t, hist.executions, 1)
	assert.Equal(t, "success", hist.executions[0].Status)
	assert.Equal(t, "swap", hist.executions[0].Kind)
	assert.Equal(t, "0xabc", hist.executions[0].TxRef)
}

func TestExecuteIntentValidatesSchemaBeforeRunning(t *testing.T) {
	executed := false
	schema := json.RawMessage(`{
		"type": "object",
		"required": ["amount"],
		"properties": {"amount": {"type": "number", "minimum": 100}}
	}`)
	o := newOrchestrator(t, nil, &stubAgent{name: "strict", priority: 1, schema: schema, execute: func(intent.Intent) intent.ExecutionResult {
		executed = true
		return intent.ExecSuccess("ran", nil, "")
	}})

	result, err := o.ExecuteIntent(context.Background(), "strict", swapIntentFixture(), agents.PromptContext{})
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.False(t, executed)
	assert.Equal(t, stderrors.ErrCodeSchemaValidation, stderrors.CodeOf(result.Err))
}

func TestExecuteIntentRecoversAgentPanic(t *testing.T) {
	o := newOrchestrator(t, nil, &stubAgent{name: "bomb", priority: 1, execute: func(intent.Intent) intent.ExecutionResult {
		panic("execution exploded")
	}})

	result, err := o.ExecuteIntent(context.Background(), "bomb", swapIntentFixture(), agents.PromptContext{})
	require.NoError(t, err)
	assert.False(t, result.OK)
	require.NotNil(t, result.Err)
}

func TestExecuteIntentFailureRecordedInHistory(t *testing.T) {
	hist := &recordingHistory{}
	o := newOrchestrator(t, hist, &stubAgent{name: "real", priority: 1, execute: func(intent.Intent) intent.ExecutionResult {
		return intent.ExecFailure(stderrors.NewSwapFailedError(assert.AnError), "reverted")
	}})

	result, err := o.ExecuteIntent(context.Background(), "real", swapIntentFixture(), agents.PromptContext{SessionID: "s1"})
	require.NoError(t, err)
	assert.False(t, result.OK)

	require.Len(t, hist.executions, 1)
	assert.Equal(t, "failure", hist.executions[0].Status)
	assert.NotEmpty(t, hist.executions[0].Details)
}
