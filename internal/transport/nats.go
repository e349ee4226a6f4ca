// Package transport exposes the chat surface over NATS request/reply.
// Each request is served on its own goroutine; turns within one session
// are serialized by a per-session mutex.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"intent-orchestrator/internal/agents"
	"intent-orchestrator/internal/common/logger"
	"intent-orchestrator/internal/dialogue"
	"intent-orchestrator/internal/intent"
	"intent-orchestrator/internal/orchestrator"
	"intent-orchestrator/internal/services/detector"
	"intent-orchestrator/internal/tokens"
)

// Request types accepted on the chat subject.
const (
	TypeMessage = "message"
	TypePrompt  = "prompt"
	TypeFile    = "file"
	TypeConfirm = "confirm"
	TypeReset   = "reset"
)

// ChatRequest is the inbound JSON envelope. FileData travels base64-encoded
// by virtue of encoding/json's []byte handling.
type ChatRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	FileData  []byte `json:"fileData,omitempty"`
}

// ChatResponse is the outbound JSON envelope. Exactly one of Reply, Outcome,
// or Execution carries the payload for the matching request type; Error is
// set for malformed envelopes.
type ChatResponse struct {
	SessionID string                  `json:"sessionId"`
	Reply     *dialogue.Reply         `json:"reply,omitempty"`
	Outcome   *orchestrator.Outcome   `json:"outcome,omitempty"`
	Execution *intent.ExecutionResult `json:"execution,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Brain is the slice of the orchestrator the transport dispatches to.
type Brain interface {
	ProcessPrompt(ctx context.Context, prompt string, pctx agents.PromptContext) orchestrator.Outcome
	ExecuteIntent(ctx context.Context, agentName string, in intent.Intent, pctx agents.PromptContext) (intent.ExecutionResult, error)
}

// FileClassifier attaches an AI-provenance verdict to delivered files.
type FileClassifier interface {
	Detect(ctx context.Context, image []byte) detector.Verdict
}

// sessionEntry pairs a dialogue session with its turn lock and the pending
// confirmation state left by the last plan-producing turn.
type sessionEntry struct {
	mu           sync.Mutex
	session      *dialogue.Session
	attachment   *agents.Attachment
	pendingIn    intent.Intent
	pendingAgent string
}

// Handler serves the chat subject. Sessions are created on first sight of a
// session ID and rehydrated from the store when a snapshot exists.
type Handler struct {
	subject     string
	brain       Brain
	registry    *tokens.Registry
	classifier  FileClassifier
	store       dialogue.Store
	agentByKind map[intent.Kind]string
	log         logger.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewHandler(subject string, brain Brain, registry *tokens.Registry, classifier FileClassifier, store dialogue.Store, agentByKind map[intent.Kind]string, log logger.Logger) *Handler {
	return &Handler{
		subject:     subject,
		brain:       brain,
		registry:    registry,
		classifier:  classifier,
		store:       store,
		agentByKind: agentByKind,
		log:         log,
		sessions:    make(map[string]*sessionEntry),
	}
}

// Start subscribes on the chat subject. Each message is served on its own
// goroutine; per-session ordering comes from the entry mutex, not from NATS.
func (h *Handler) Start(nc *nats.Conn) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(h.subject, func(msg *nats.Msg) {
		go h.serve(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", h.subject, err)
	}
	h.log.Info("chat handler listening", map[string]interface{}{"subject": h.subject})
	return sub, nil
}

func (h *Handler) serve(msg *nats.Msg) {
	var req ChatRequest
	resp := ChatResponse{}
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		resp.Error = "malformed request envelope"
	} else {
		resp = h.Handle(context.Background(), req)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		h.log.WithError(err).Error("failed to encode chat response", nil)
		return
	}
	if err := msg.Respond(payload); err != nil {
		h.log.WithError(err).Warn("failed to respond on chat subject", map[string]interface{}{
			"subject": h.subject,
		})
	}
}

// Handle processes one chat envelope. It is the transport's whole behavior;
// Start only adds the NATS plumbing around it.
func (h *Handler) Handle(ctx context.Context, req ChatRequest) ChatResponse {
	entry := h.entryFor(ctx, req.SessionID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	sessionID := entry.session.ID

	switch req.Type {
	case TypeMessage:
		reply := entry.session.HandleMessage(ctx, req.Text)
		h.stashPending(entry, reply)
		return ChatResponse{SessionID: sessionID, Reply: &reply}

	case TypeFile:
		if len(req.FileData) == 0 {
			return ChatResponse{SessionID: sessionID, Error: "file request carries no data"}
		}
		var det *dialogue.DetectionResult
		if h.classifier != nil {
			verdict := h.classifier.Detect(ctx, req.FileData)
			det = &dialogue.DetectionResult{IsAI: verdict.IsAI, Confidence: verdict.Confidence}
		}
		entry.attachment = &agents.Attachment{Name: req.FileName, Data: req.FileData}
		reply := entry.session.HandleFile(ctx, req.FileName, req.FileData, det)
		h.stashPending(entry, reply)
		return ChatResponse{SessionID: sessionID, Reply: &reply}

	case TypePrompt:
		pctx := agents.PromptContext{SessionID: sessionID, Attachment: entry.attachment}
		outcome := h.brain.ProcessPrompt(ctx, req.Text, pctx)
		if outcome.Status == orchestrator.Handled && outcome.Result.Status == intent.StatusOk {
			entry.pendingIn = outcome.Result.Intent
			entry.pendingAgent = outcome.Agent
		}
		return ChatResponse{SessionID: sessionID, Outcome: &outcome}

	case TypeConfirm:
		if entry.pendingIn == nil {
			return ChatResponse{SessionID: sessionID, Error: "nothing to confirm in this session"}
		}
		pctx := agents.PromptContext{SessionID: sessionID, Attachment: entry.attachment}
		result, err := h.brain.ExecuteIntent(ctx, entry.pendingAgent, entry.pendingIn, pctx)
		if err != nil {
			return ChatResponse{SessionID: sessionID, Error: err.Error()}
		}
		entry.pendingIn = nil
		entry.pendingAgent = ""
		return ChatResponse{SessionID: sessionID, Execution: &result}

	case TypeReset:
		entry.session.Reset()
		entry.pendingIn = nil
		entry.pendingAgent = ""
		entry.attachment = nil
		if h.store != nil {
			if err := h.store.Delete(ctx, sessionID); err != nil {
				h.log.WithError(err).Warn("failed to drop stored session", map[string]interface{}{
					"session_id": sessionID,
				})
			}
		}
		return ChatResponse{SessionID: sessionID, Reply: &dialogue.Reply{
			Kind: dialogue.ReplyMessage,
			Text: "Session reset. What would you like to do?",
		}}

	default:
		return ChatResponse{SessionID: sessionID, Error: fmt.Sprintf("unknown request type %q", req.Type)}
	}
}

// stashPending records a plan-producing reply so a later confirm can execute
// it. Non-plan replies drop any stale pending intent; the user moved on.
func (h *Handler) stashPending(entry *sessionEntry, reply dialogue.Reply) {
	if reply.Kind != dialogue.ReplyPlan || reply.Intent == nil {
		entry.pendingIn = nil
		entry.pendingAgent = ""
		return
	}
	entry.pendingIn = reply.Intent
	entry.pendingAgent = h.agentByKind[reply.Intent.Kind()]
}

// entryFor returns the session entry for an ID, creating it on first sight.
// A missing ID gets a fresh session whose generated ID the client carries on
// subsequent requests. Stored snapshots are rehydrated once at creation.
func (h *Handler) entryFor(ctx context.Context, id string) *sessionEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id != "" {
		if entry, ok := h.sessions[id]; ok {
			return entry
		}
	}

	opts := []dialogue.Option{}
	if h.store != nil {
		opts = append(opts, dialogue.WithStore(h.store))
	}
	if id != "" {
		opts = append(opts, dialogue.WithID(id))
	}
	session := dialogue.NewSession(h.registry, h.log, opts...)

	if id != "" && h.store != nil {
		snap, err := h.store.Load(ctx, id)
		if err != nil {
			h.log.WithError(err).Warn("failed to load stored session", map[string]interface{}{
				"session_id": id,
			})
		} else if snap != nil {
			session.Restore(snap)
		}
	}

	entry := &sessionEntry{session: session}
	h.sessions[session.ID] = entry
	return entry
}
