// Package orchestrator routes prompts to capable agents and drives intent
// execution with pre-flight payload validation.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"intent-orchestrator/internal/agents"
	"intent-orchestrator/internal/common/config"
	ierr "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/common/logger"
	"intent-orchestrator/internal/common/metrics"
	"intent-orchestrator/internal/common/observability"
	"intent-orchestrator/internal/history"
	"intent-orchestrator/internal/intent"
)

// OutcomeStatus classifies what happened to a processed prompt.
type OutcomeStatus string

const (
	// Handled: exactly one agent was dispatched and produced a parse result.
	Handled OutcomeStatus = "handled"
	// Unknown: no agent claimed the prompt.
	Unknown OutcomeStatus = "unknown"
	// Ambiguous: capable agents existed but none produced a usable result.
	Ambiguous OutcomeStatus = "ambiguous"
)

// Outcome is the result of processing one prompt.
type Outcome struct {
	Status     OutcomeStatus      `json:"status"`
	Agent      string             `json:"agent,omitempty"`
	Result     intent.ParseResult `json:"result,omitempty"`
	Help       string             `json:"help,omitempty"`
	Candidates []string           `json:"candidates,omitempty"`
}

// HistoryRecorder is the slice of the history store the orchestrator needs.
type HistoryRecorder interface {
	SavePrompt(ctx context.Context, rec history.PromptRecord) error
	SaveExecution(ctx context.Context, rec history.ExecutionRecord) error
}

// Orchestrator coordinates agent selection, parsing, and execution.
type Orchestrator struct {
	registry       *agents.Registry
	hist           HistoryRecorder
	obs            *observability.Observability
	parseTimeout   time.Duration
	executeTimeout time.Duration
	log            logger.Logger
}

func New(registry *agents.Registry, cfg config.OrchestratorConfig, hist HistoryRecorder, obs *observability.Observability, log logger.Logger) *Orchestrator {
	parseTimeout := time.Duration(cfg.ParseTimeout) * time.Millisecond
	if parseTimeout <= 0 {
		parseTimeout = 5 * time.Second
	}
	executeTimeout := time.Duration(cfg.ExecuteTimeout) * time.Millisecond
	if executeTimeout <= 0 {
		executeTimeout = 3 * time.Minute
	}
	return &Orchestrator{
		registry:       registry,
		hist:           hist,
		obs:            obs,
		parseTimeout:   parseTimeout,
		executeTimeout: executeTimeout,
		log:            log,
	}
}

// ProcessPrompt routes one prompt. It never panics and never returns an
// error: every input, however malformed, maps to an Outcome. The highest
// precedence capable agent answers, including with a failure result, which
// is carried to the caller unchanged. Only a panicking Parse is skipped in
// favor of the next capable agent; when every capable agent panics the
// prompt is demoted to Unknown or Ambiguous with help attached.
func (o *Orchestrator) ProcessPrompt(ctx context.Context, prompt string, pctx agents.PromptContext) Outcome {
	start := time.Now()
	outcome := o.processPrompt(ctx, prompt, pctx)

	metrics.PromptsProcessed.WithLabelValues(string(outcome.Status)).Inc()
	if o.obs != nil {
		o.obs.RecordPromptProcessed(ctx, string(outcome.Status))
		o.obs.RecordPromptDuration(ctx, time.Since(start), string(outcome.Status))
	}
	o.recordPrompt(ctx, pctx.SessionID, prompt, outcome)
	return outcome
}

func (o *Orchestrator) processPrompt(ctx context.Context, prompt string, pctx agents.PromptContext) Outcome {
	capable := o.registry.FindCapable(prompt, pctx)
	if len(capable) == 0 {
		return Outcome{Status: Unknown, Help: o.registry.HelpListing()}
	}

	var candidates []string
	for _, agent := range capable {
		candidates = append(candidates, agent.Name())
	}

	for _, agent := range capable {
		metrics.AgentDispatches.WithLabelValues(agent.Name()).Inc()

		result, ok := o.safeParse(ctx, agent, prompt, pctx)
		if !ok {
			o.log.Warn("agent parse did not produce a usable result", map[string]interface{}{
				"agent":  agent.Name(),
				"reason": result.Reason,
			})
			continue
		}
		if result.Status == intent.StatusFail {
			o.log.Warn("agent parse failed", map[string]interface{}{
				"agent":  agent.Name(),
				"reason": result.Reason,
			})
		}
		return Outcome{Status: Handled, Agent: agent.Name(), Result: result, Candidates: candidates}
	}

	status := Unknown
	if len(capable) > 1 {
		status = Ambiguous
	}
	return Outcome{Status: status, Help: o.registry.HelpListing(), Candidates: candidates}
}

func (o *Orchestrator) safeParse(ctx context.Context, agent agents.Agent, prompt string, pctx agents.PromptContext) (result intent.ParseResult, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			o.log.Error("agent parse panicked", map[string]interface{}{
				"agent": agent.Name(),
				"panic": fmt.Sprintf("%v", rec),
			})
			result = intent.Fail("internal parse failure")
			ok = false
		}
	}()

	parseCtx, cancel := context.WithTimeout(ctx, o.parseTimeout)
	defer cancel()
	return agent.Parse(parseCtx, prompt, pctx), true
}

// ExecuteIntent runs a parsed intent on the named agent. The only error it
// can return is an unknown agent name; everything else, including schema
// rejection, comes back inside the ExecutionResult.
func (o *Orchestrator) ExecuteIntent(ctx context.Context, agentName string, in intent.Intent, pctx agents.PromptContext) (intent.ExecutionResult, error) {
	agent, ok := o.registry.Get(agentName)
	if !ok {
		return intent.ExecutionResult{}, ierr.NewAgentNotFoundError(agentName)
	}

	start := time.Now()
	result := o.execute(ctx, agent, in, pctx)
	elapsed := time.Since(start)

	status := "success"
	if !result.OK {
		status = "failure"
	}
	metrics.ExecutionsTotal.WithLabelValues(agent.Name(), status).Inc()
	metrics.ExecutionDuration.WithLabelValues(agent.Name()).Observe(elapsed.Seconds())

	o.recordExecution(ctx, pctx.SessionID, agent.Name(), in, result)
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, agent agents.Agent, in intent.Intent, pctx agents.PromptContext) (result intent.ExecutionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			o.log.Error("agent execute panicked", map[string]interface{}{
				"agent": agent.Name(),
				"panic": fmt.Sprintf("%v", rec),
			})
			result = intent.ExecFailure(
				ierr.NewInvalidIntentError(fmt.Sprintf("execution aborted: %v", rec)),
				"the agent hit an internal fault before completing",
			)
		}
	}()

	if err := o.validateAgainstSchema(agent, in); err != nil {
		return intent.ExecFailure(err, "the intent payload did not pass the agent's schema")
	}

	execCtx, cancel := context.WithTimeout(ctx, o.executeTimeout)
	defer cancel()
	return agent.Execute(execCtx, in, pctx)
}

// validateAgainstSchema checks the intent's JSON form against the owning
// agent's parameter schema before any side effect runs.
func (o *Orchestrator) validateAgainstSchema(agent agents.Agent, in intent.Intent) error {
	schema := agent.Help().ParameterSchema
	if len(schema) == 0 {
		return nil
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return ierr.NewSchemaValidationError(agent.Name(), fmt.Sprintf("encode intent: %v", err))
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		return ierr.NewSchemaValidationError(agent.Name(), err.Error())
	}
	if !result.Valid() {
		details := ""
		for _, desc := range result.Errors() {
			if details != "" {
				details += "; "
			}
			details += desc.String()
		}
		return ierr.NewSchemaValidationError(agent.Name(), details)
	}
	return nil
}

func (o *Orchestrator) recordPrompt(ctx context.Context, sessionID, prompt string, outcome Outcome) {
	if o.hist == nil {
		return
	}
	err := o.hist.SavePrompt(ctx, history.PromptRecord{
		SessionID: sessionID,
		Prompt:    prompt,
		Outcome:   string(outcome.Status),
		Agent:     outcome.Agent,
	})
	if err != nil {
		o.log.WithError(err).Warn("failed to record prompt history", map[string]interface{}{
			"session_id": sessionID,
		})
	}
}

func (o *Orchestrator) recordExecution(ctx context.Context, sessionID, agentName string, in intent.Intent, result intent.ExecutionResult) {
	if o.hist == nil {
		return
	}
	status := "success"
	details := ""
	if !result.OK {
		status = "failure"
		if result.Err != nil {
			details = result.Err.Error()
		}
	}
	err := o.hist.SaveExecution(ctx, history.ExecutionRecord{
		SessionID: sessionID,
		Agent:     agentName,
		Kind:      string(in.Kind()),
		Status:    status,
		TxRef:     result.TxRef,
		Details:   details,
	})
	if err != nil {
		o.log.WithError(err).Warn("failed to record execution history", map[string]interface{}{
			"session_id": sessionID,
			"agent":      agentName,
		})
	}
}
