// Package agents defines the execution-agent contract and the priority
// registry the orchestrator dispatches through.
package agents

import (
	"context"
	"encoding/json"

	"intent-orchestrator/internal/intent"
)

// Attachment is a file delivered alongside a prompt.
type Attachment struct {
	Name string
	Data []byte
}

// PromptContext carries the per-request surroundings of a prompt: which
// session it belongs to and any attached file.
type PromptContext struct {
	SessionID  string
	Attachment *Attachment
}

// AgentHelp describes what an agent can do, for the aggregated help listing
// and for pre-execution payload validation.
type AgentHelp struct {
	Examples        []string
	ParameterSchema json.RawMessage
}

// Agent is one executable capability. CanHandle must be cheap and free of
// side effects; Parse and Execute carry the real work.
type Agent interface {
	Name() string
	Description() string
	Priority() int
	TriggerKeywords() []string
	CanHandle(prompt string, pctx PromptContext) bool
	Parse(ctx context.Context, prompt string, pctx PromptContext) intent.ParseResult
	Execute(ctx context.Context, in intent.Intent, pctx PromptContext) intent.ExecutionResult
	Help() AgentHelp
}
