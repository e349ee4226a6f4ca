package agents

import (
	"fmt"
	"sort"
	"strings"

	"intent-orchestrator/internal/common/logger"
)

// Registry holds the registered agents in dispatch order: ascending
// priority, registration order breaking ties. Built at startup and
// read-only afterwards.
type Registry struct {
	agents []Agent
	byName map[string]Agent
	log    logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		byName: make(map[string]Agent),
		log:    log,
	}
}

// Register adds an agent. Later registrations with a duplicate name replace
// nothing; the first wins and the duplicate is logged and dropped.
func (r *Registry) Register(agent Agent) {
	if _, exists := r.byName[agent.Name()]; exists {
		r.log.Warn("duplicate agent registration ignored", map[string]interface{}{
			"agent": agent.Name(),
		})
		return
	}
	r.byName[agent.Name()] = agent
	r.agents = append(r.agents, agent)
	sort.SliceStable(r.agents, func(i, j int) bool {
		return r.agents[i].Priority() < r.agents[j].Priority()
	})
}

// Get returns the agent registered under name.
func (r *Registry) Get(name string) (Agent, bool) {
	agent, ok := r.byName[name]
	return agent, ok
}

// All returns the agents in dispatch order.
func (r *Registry) All() []Agent {
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// FindCapable returns every agent whose CanHandle accepts the prompt, in
// dispatch order. A panic inside one agent's CanHandle is recovered and
// logged so a single faulty agent never blocks the others.
func (r *Registry) FindCapable(prompt string, pctx PromptContext) []Agent {
	var capable []Agent
	for _, agent := range r.agents {
		if r.safeCanHandle(agent, prompt, pctx) {
			capable = append(capable, agent)
		}
	}
	return capable
}

func (r *Registry) safeCanHandle(agent Agent, prompt string, pctx PromptContext) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("agent CanHandle panicked", map[string]interface{}{
				"agent": agent.Name(),
				"panic": fmt.Sprintf("%v", rec),
			})
			ok = false
		}
	}()
	return agent.CanHandle(prompt, pctx)
}

// HelpListing renders the aggregated capability overview shown when no
// agent claims a prompt or the user asks for help.
func (r *Registry) HelpListing() string {
	var b strings.Builder
	b.WriteString("Here's what I can do:\n")
	for _, agent := range r.agents {
		fmt.Fprintf(&b, "\n%s: %s\n", agent.Name(), agent.Description())
		for _, example := range agent.Help().Examples {
			fmt.Fprintf(&b, "  e.g. %s\n", example)
		}
	}
	return b.String()
}
