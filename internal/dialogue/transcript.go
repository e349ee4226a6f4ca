package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"intent-orchestrator/internal/common/database"
	ierr "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/intent"
)

// Turn is one transcript entry.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Snapshot is the storable view of a session: its position in the flow, the
// fields collected so far, and the chat transcript. File bytes are not
// stored, only the file name.
type Snapshot struct {
	ID          string              `json:"id"`
	State       State               `json:"state"`
	Flow        Flow                `json:"flow"`
	FileName    string              `json:"fileName,omitempty"`
	Detection   *DetectionResult    `json:"detection,omitempty"`
	Name        string              `json:"name,omitempty"`
	Description string              `json:"description,omitempty"`
	License     intent.LicenseCode  `json:"license,omitempty"`
	TokenIn     string              `json:"tokenIn,omitempty"`
	TokenOut    string              `json:"tokenOut,omitempty"`
	Amount      float64             `json:"amount,omitempty"`
	HasAmount   bool                `json:"hasAmount,omitempty"`
	Slippage    float64             `json:"slippage,omitempty"`
	HasSlippage bool                `json:"hasSlippage,omitempty"`
	Transcript  []Turn              `json:"transcript,omitempty"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// Store persists session snapshots across process restarts. Save failures
// are surfaced as errors but never interrupt a dialogue turn.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, id string) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// Snapshot builds the storable view of the session, appending the latest
// exchange to the carried transcript.
func (s *Session) Snapshot(userText, replyText string) *Snapshot {
	now := time.Now().UTC()
	s.transcript = append(s.transcript,
		Turn{Role: "user", Text: userText, At: now},
		Turn{Role: "assistant", Text: replyText, At: now},
	)
	snap := &Snapshot{
		ID:          s.ID,
		State:       s.state,
		Flow:        s.flow,
		Name:        s.data.Name,
		Description: s.data.Description,
		TokenIn:     s.data.TokenInRaw,
		TokenOut:    s.data.TokenOutRaw,
		Amount:      s.data.Amount,
		HasAmount:   s.data.HasAmount,
		Slippage:    s.data.Slippage,
		HasSlippage: s.data.HasSlippage,
		Detection:   s.data.Detection,
		Transcript:  s.transcript,
		UpdatedAt:   now,
	}
	if s.data.File != nil {
		snap.FileName = s.data.File.Name
	}
	if s.data.License != nil {
		snap.License = s.data.License.Code
	}
	return snap
}

// Restore rehydrates collected fields from a snapshot. The attached file's
// bytes are gone after a restart, so a register flow that had a file falls
// back to awaiting-file.
func (s *Session) Restore(snap *Snapshot) {
	s.ID = snap.ID
	s.state = snap.State
	s.flow = snap.Flow
	s.transcript = snap.Transcript
	s.data = collected{
		Name:        snap.Name,
		Description: snap.Description,
		Detection:   snap.Detection,
		TokenInRaw:  snap.TokenIn,
		TokenOutRaw: snap.TokenOut,
		Amount:      snap.Amount,
		HasAmount:   snap.HasAmount,
		Slippage:    snap.Slippage,
		HasSlippage: snap.HasSlippage,
	}
	if snap.License != "" {
		for i := range intent.LicenseMenu {
			if intent.LicenseMenu[i].Code == snap.License {
				s.data.License = &intent.LicenseMenu[i]
				break
			}
		}
	}
	if snap.FileName != "" && s.flow == FlowRegister && s.state != StateReady {
		s.state = StateAwaitingFile
	}
}

// RedisStore keeps snapshots in Redis under session:<id> with a TTL.
type RedisStore struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisStore(client *database.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string { return "session:" + id }

func (r *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return ierr.NewSessionStoreError(fmt.Errorf("marshal session %s: %w", snap.ID, err))
	}
	if err := r.client.Set(ctx, sessionKey(snap.ID), payload, r.ttl); err != nil {
		return ierr.NewSessionStoreError(fmt.Errorf("save session %s: %w", snap.ID, err))
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	raw, err := r.client.Get(ctx, sessionKey(id))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, ierr.NewSessionStoreError(fmt.Errorf("load session %s: %w", id, err))
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, ierr.NewSessionStoreError(fmt.Errorf("decode session %s: %w", id, err))
	}
	return &snap, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)); err != nil {
		return ierr.NewSessionStoreError(fmt.Errorf("delete session %s: %w", id, err))
	}
	return nil
}
