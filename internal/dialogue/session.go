// Package dialogue implements the guided multi-turn collection flow: a
// per-chat state machine that gathers the same intent fields the one-shot
// parser extracts, one question at a time.
package dialogue

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"intent-orchestrator/internal/common/logger"
	"intent-orchestrator/internal/common/metrics"
	"intent-orchestrator/internal/intent"
	"intent-orchestrator/internal/parser"
	"intent-orchestrator/internal/tokens"
)

// State is one discrete step of a guided flow.
type State string

const (
	StateGreeting            State = "greeting"
	StateAwaitingFile        State = "awaiting-file"
	StateAwaitingName        State = "awaiting-name"
	StateAwaitingDescription State = "awaiting-description"
	StateAwaitingLicense     State = "awaiting-license"
	StateReady               State = "ready"
	StateAwaitingTokens      State = "awaiting-tokens"
	StateAwaitingAmount      State = "awaiting-amount"
	StateSwapReady           State = "swap-ready"
)

// Flow marks which top-level task the session is collecting for.
type Flow string

const (
	FlowNone     Flow = "none"
	FlowRegister Flow = "register"
	FlowSwap     Flow = "swap"
)

// DetectionResult is the AI-provenance verdict attached to a delivered file.
type DetectionResult struct {
	IsAI       bool    `json:"isAI"`
	Confidence float64 `json:"confidence"`
}

// FileRef is the attached asset under registration.
type FileRef struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
}

// ReplyKind discriminates Reply.
type ReplyKind string

const (
	ReplyMessage      ReplyKind = "message"
	ReplyAwaitingFile ReplyKind = "awaiting_file"
	ReplyAwaitingText ReplyKind = "awaiting_input"
	ReplyPlan         ReplyKind = "plan"
)

// Reply is what the session says back after consuming one user turn.
type Reply struct {
	Kind    ReplyKind     `json:"kind"`
	Text    string        `json:"text"`
	Options []string      `json:"options,omitempty"`
	Intent  intent.Intent `json:"intent,omitempty"`
	Plan    intent.Plan   `json:"plan,omitempty"`
}

// collected accumulates the fields gathered so far. Fields are only written
// by the state whose turn collects them.
type collected struct {
	File        *FileRef
	Detection   *DetectionResult
	Name        string
	Description string
	License     *intent.LicenseOption
	TokenInRaw  string
	TokenOutRaw string
	Amount      float64
	HasAmount   bool
	Slippage    float64
	HasSlippage bool
}

// Session is one chat's state machine. It is owned by a single chat and is
// not safe for concurrent use; the transport serializes turns per session.
type Session struct {
	ID         string
	state      State
	flow       Flow
	data       collected
	transcript []Turn
	registry   *tokens.Registry
	log        logger.Logger
	store      Store
}

// Option configures a Session at construction.
type Option func(*Session)

// WithStore attaches a transcript store. The machine itself never requires
// one; a nil store keeps the session memory-only.
func WithStore(store Store) Option {
	return func(s *Session) { s.store = store }
}

// WithID fixes the session ID, used when resuming a stored session.
func WithID(id string) Option {
	return func(s *Session) { s.ID = id }
}

func NewSession(registry *tokens.Registry, log logger.Logger, opts ...Option) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		state:    StateGreeting,
		flow:     FlowNone,
		registry: registry,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State { return s.state }
func (s *Session) Flow() Flow   { return s.flow }

// Reset returns the session to its initial shape, clearing everything
// collected. The session ID survives.
func (s *Session) Reset() {
	s.state = StateGreeting
	s.flow = FlowNone
	s.data = collected{}
	s.transcript = nil
}

var (
	swapKeywords     = []string{"swap", "tukar", "convert", "exchange", "trade"}
	registerKeywords = []string{"register", "registrasi", "mint", "daftarkan", "upload"}
)

const greetingText = "Hi! I can swap tokens or register your work as IP. " +
	"Say \"swap\" to trade tokens or \"register\" to protect an asset."

// HandleMessage consumes one text turn. Malformed input at any awaiting
// state re-prompts without advancing; this method never returns an error.
func (s *Session) HandleMessage(ctx context.Context, text string) Reply {
	from := s.state
	reply := s.step(strings.TrimSpace(text))
	s.recordTransition(from)
	s.persist(ctx, text, reply)
	return reply
}

// HandleFile consumes a delivered file, optionally carrying an AI-detection
// verdict. Outside awaiting-file the attachment is acknowledged but the
// current question is repeated.
func (s *Session) HandleFile(ctx context.Context, name string, data []byte, det *DetectionResult) Reply {
	from := s.state
	var reply Reply
	if s.state != StateAwaitingFile {
		reply = s.reprompt()
	} else {
		s.data.File = &FileRef{Name: name, Data: data}
		s.data.Detection = det
		s.state = StateAwaitingName
		reply = Reply{Kind: ReplyAwaitingText, Text: "Got the file. What should this work be called?"}
	}
	s.recordTransition(from)
	s.persist(ctx, "[file] "+name, reply)
	return reply
}

func (s *Session) recordTransition(from State) {
	if from != s.state {
		metrics.DialogueTransitions.WithLabelValues(string(from), string(s.state)).Inc()
	}
}

func (s *Session) step(text string) Reply {
	switch s.state {
	case StateGreeting:
		return s.stepGreeting(text)
	case StateAwaitingFile:
		return Reply{Kind: ReplyAwaitingFile, Text: "Please attach the file you want to register."}
	case StateAwaitingName:
		return s.stepName(text)
	case StateAwaitingDescription:
		return s.stepDescription(text)
	case StateAwaitingLicense:
		return s.stepLicense(text)
	case StateAwaitingTokens:
		return s.stepTokens(text)
	case StateAwaitingAmount:
		return s.stepAmount(text)
	case StateReady, StateSwapReady:
		return Reply{Kind: ReplyMessage, Text: "This flow is finished. Start a new chat to do something else."}
	}
	return Reply{Kind: ReplyMessage, Text: greetingText}
}

func (s *Session) stepGreeting(text string) Reply {
	lower := strings.ToLower(text)
	if containsAnyWord(lower, registerKeywords) {
		s.flow = FlowRegister
		s.state = StateAwaitingFile
		return Reply{Kind: ReplyAwaitingFile, Text: "Great, let's register your work. Please attach the file."}
	}
	if containsAnyWord(lower, swapKeywords) {
		s.flow = FlowSwap
		s.state = StateAwaitingTokens
		return Reply{
			Kind: ReplyAwaitingText,
			Text: "Which tokens would you like to swap? For example: WIP to USDC 2.5",
		}
	}
	return Reply{Kind: ReplyMessage, Text: greetingText}
}

func (s *Session) stepName(text string) Reply {
	if text == "" {
		return Reply{Kind: ReplyAwaitingText, Text: "What should this work be called?"}
	}
	s.data.Name = text
	s.state = StateAwaitingDescription
	return Reply{Kind: ReplyAwaitingText, Text: fmt.Sprintf("Nice, %q it is. Describe the work in a sentence or two.", text)}
}

func (s *Session) stepDescription(text string) Reply {
	if text == "" {
		return Reply{Kind: ReplyAwaitingText, Text: "Describe the work in a sentence or two."}
	}
	s.data.Description = text
	s.state = StateAwaitingLicense
	options := s.licenseOptions()
	labels := make([]string, len(options))
	for i, opt := range options {
		labels[i] = opt.Label
	}
	prompt := "How would you like to license it?"
	if s.aiDetected() {
		prompt = "This looks AI-generated, so licenses that allow AI training are not available. " + prompt
	}
	return Reply{Kind: ReplyAwaitingText, Text: prompt, Options: labels}
}

func (s *Session) stepLicense(text string) Reply {
	options := s.licenseOptions()
	for i := range options {
		if strings.EqualFold(text, options[i].Label) || strings.EqualFold(text, string(options[i].Code)) {
			s.data.License = &options[i]
			s.state = StateReady
			return s.emitRegisterPlan()
		}
	}
	labels := make([]string, len(options))
	for i, opt := range options {
		labels[i] = opt.Label
	}
	return Reply{
		Kind:    ReplyAwaitingText,
		Text:    fmt.Sprintf("I don't recognize %q as one of the offered licenses. Please pick one.", text),
		Options: labels,
	}
}

func (s *Session) stepTokens(text string) Reply {
	inRaw, outRaw, amountRaw, ok := parseTokenPair(text)
	if !ok {
		return Reply{
			Kind: ReplyAwaitingText,
			Text: "I couldn't read a token pair there. Try something like: WIP to USDC 2.5",
		}
	}

	if _, resolved := s.registry.Resolve(inRaw); !resolved {
		return s.unsupportedToken(inRaw)
	}
	if _, resolved := s.registry.Resolve(outRaw); !resolved {
		return s.unsupportedToken(outRaw)
	}

	s.data.TokenInRaw = inRaw
	s.data.TokenOutRaw = outRaw
	if slip, has := parser.ParseSlippage(text); has {
		s.data.Slippage = slip
		s.data.HasSlippage = true
	}

	if amountRaw != "" {
		if amount, valid := parser.ParseAmount(amountRaw); valid {
			s.data.Amount = amount
			s.data.HasAmount = true
			s.state = StateSwapReady
			return s.emitSwapPlan()
		}
	}

	s.state = StateAwaitingAmount
	tokenIn, _ := s.registry.Resolve(inRaw)
	return Reply{
		Kind: ReplyAwaitingText,
		Text: fmt.Sprintf("How much %s do you want to swap?", s.registry.SymbolFor(tokenIn)),
	}
}

func (s *Session) stepAmount(text string) Reply {
	amount, valid := parser.ParseAmount(text)
	if !valid {
		return Reply{Kind: ReplyAwaitingText, Text: "Please give me a positive number, like 2.5"}
	}

	if _, resolved := s.registry.Resolve(s.data.TokenInRaw); !resolved {
		return s.unsupportedToken(s.data.TokenInRaw)
	}
	if _, resolved := s.registry.Resolve(s.data.TokenOutRaw); !resolved {
		return s.unsupportedToken(s.data.TokenOutRaw)
	}

	s.data.Amount = amount
	s.data.HasAmount = true
	s.state = StateSwapReady
	return s.emitSwapPlan()
}

func (s *Session) emitSwapPlan() Reply {
	tokenIn, _ := s.registry.Resolve(s.data.TokenInRaw)
	tokenOut, _ := s.registry.Resolve(s.data.TokenOutRaw)

	swap := intent.SwapIntent{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Amount:      s.data.Amount,
		SlippagePct: s.data.Slippage,
		HasSlippage: s.data.HasSlippage,
	}
	slippage := swap.SlippagePct
	if !swap.HasSlippage {
		slippage = parser.DefaultSlippagePct
	}
	plan := intent.NewSwapPlan(swap.Amount, s.registry.SymbolFor(tokenIn), s.registry.SymbolFor(tokenOut), slippage)
	return Reply{
		Kind:   ReplyPlan,
		Text:   "Here's the swap I'll run. Confirm to execute.",
		Intent: swap,
		Plan:   plan,
	}
}

func (s *Session) emitRegisterPlan() Reply {
	reg := intent.RegisterIntent{
		Title:       s.data.Name,
		Description: s.data.Description,
		License:     s.data.License.Code,
		PILType:     s.data.License.Policy,
		AIDetected:  s.aiDetected(),
	}
	return Reply{
		Kind:   ReplyPlan,
		Text:   "Here's the registration I'll run. Confirm to execute.",
		Intent: reg,
		Plan:   intent.NewRegisterPlan(reg.Title),
	}
}

// licenseOptions returns the menu for this session. Assets detected as
// AI-generated lose the options that would allow AI training.
func (s *Session) licenseOptions() []intent.LicenseOption {
	if !s.aiDetected() {
		return intent.LicenseMenu
	}
	out := make([]intent.LicenseOption, 0, len(intent.LicenseMenu))
	for _, opt := range intent.LicenseMenu {
		if !opt.AllowsAITraining {
			out = append(out, opt)
		}
	}
	return out
}

func (s *Session) aiDetected() bool {
	return s.data.Detection != nil && s.data.Detection.IsAI
}

func (s *Session) unsupportedToken(raw string) Reply {
	return Reply{
		Kind: ReplyAwaitingText,
		Text: fmt.Sprintf("%q is not a token I support. Please pick another.", raw),
	}
}

func (s *Session) reprompt() Reply {
	return s.step("")
}

func (s *Session) persist(ctx context.Context, userText string, reply Reply) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.Snapshot(userText, reply.Text)); err != nil {
		s.log.WithError(err).Warn("failed to persist session snapshot", map[string]interface{}{
			"session_id": s.ID,
		})
	}
}

func containsAnyWord(lower string, words []string) bool {
	for _, w := range words {
		if idx := strings.Index(lower, w); idx >= 0 {
			before := idx == 0 || !isWordByte(lower[idx-1])
			afterIdx := idx + len(w)
			after := afterIdx >= len(lower) || !isWordByte(lower[afterIdx])
			if before && after {
				return true
			}
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

var (
	pairToken  = `(0x[0-9a-fA-F]{40}|[A-Za-z][A-Za-z0-9]*)`
	pairArrow  = `(?:\s*(?:->|>|→)\s*|\s+(?:to|ke)\s+)`
	pairAmount = `([0-9][0-9.,]*)`

	// A to B [amount]
	rePairFirst = regexp.MustCompile(`(?i)^` + pairToken + pairArrow + pairToken + `(?:\s+` + pairAmount + `)?`)
	// amount A to B
	reAmountFirst = regexp.MustCompile(`(?i)^` + pairAmount + `\s+` + pairToken + pairArrow + pairToken)
	// swap A B [amount]
	reVerbPair = regexp.MustCompile(`(?i)^(?:swap|tukar)\s+` + pairToken + `\s+` + pairToken + `(?:\s+` + pairAmount + `)?`)

	reVerbPrefix = regexp.MustCompile(`(?i)^(?:swap|tukar)\s+`)
)

// parseTokenPair reads a token pair in any of the three accepted word
// orders, returning the raw token spellings and an optional amount string.
// A leading verb is stripped before the arrow patterns run so that the word
// arrows ("to", "ke") are never mistaken for a token.
func parseTokenPair(text string) (inRaw, outRaw, amountRaw string, ok bool) {
	text = strings.TrimSpace(text)
	stripped := reVerbPrefix.ReplaceAllString(text, "")

	if m := rePairFirst.FindStringSubmatch(stripped); m != nil {
		return m[1], m[2], m[3], true
	}
	if m := reAmountFirst.FindStringSubmatch(stripped); m != nil {
		return m[2], m[3], m[1], true
	}
	if m := reVerbPair.FindStringSubmatch(text); m != nil {
		return m[1], m[2], m[3], true
	}
	return "", "", "", false
}
