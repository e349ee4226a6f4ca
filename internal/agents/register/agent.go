// Package register implements the IP-registration execution agent.
package register

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"intent-orchestrator/internal/agents"
	ierr "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/common/logger"
	"intent-orchestrator/internal/intent"
	"intent-orchestrator/internal/parser"
	"intent-orchestrator/internal/services/chain"
	"intent-orchestrator/internal/services/detector"
	"intent-orchestrator/internal/services/ipfs"
)

// PinService uploads files and JSON documents to IPFS.
type PinService interface {
	UploadFile(ctx context.Context, name string, data []byte) (*ipfs.PinResult, error)
	UploadJSON(ctx context.Context, v interface{}) (*ipfs.PinResult, error)
}

// DetectService classifies the attached image's provenance.
type DetectService interface {
	Detect(ctx context.Context, image []byte) detector.Verdict
}

// MintService registers the uploaded asset on-chain.
type MintService interface {
	MintAndRegister(ctx context.Context, ipMetadataURI string, ipMetadataJSON []byte, nftMetadataURI string, nftMetadataJSON []byte) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error)
	From() common.Address
}

var triggerKeywords = []string{"register", "registrasi", "mint", "daftarkan"}

var assetKeywords = []string{"ip", "nft", "image", "photo", "picture", "art", "artwork", "file", "gambar"}

// Agent executes registrations: detect, pin, build metadata, mint.
type Agent struct {
	parser *parser.Parser
	pins   PinService
	detect DetectService
	minter MintService
	log    logger.Logger
}

func New(p *parser.Parser, pins PinService, detect DetectService, minter MintService, log logger.Logger) *Agent {
	return &Agent{
		parser: p,
		pins:   pins,
		detect: detect,
		minter: minter,
		log:    log,
	}
}

func (a *Agent) Name() string { return "register-agent" }

func (a *Agent) Description() string {
	return "Registers an attached asset as IP: uploads it, builds metadata, and mints"
}

func (a *Agent) Priority() int { return 20 }

func (a *Agent) TriggerKeywords() []string {
	out := make([]string, len(triggerKeywords))
	copy(out, triggerKeywords)
	return out
}

// CanHandle accepts registration vocabulary combined with either an actual
// attachment or asset vocabulary in the prompt.
func (a *Agent) CanHandle(prompt string, pctx agents.PromptContext) bool {
	lower := strings.ToLower(prompt)
	triggered := false
	for _, kw := range triggerKeywords {
		if containsWord(lower, kw) {
			triggered = true
			break
		}
	}
	if !triggered {
		return false
	}
	if pctx.Attachment != nil {
		return true
	}
	for _, kw := range assetKeywords {
		if containsWord(lower, kw) {
			return true
		}
	}
	return false
}

func (a *Agent) Parse(_ context.Context, prompt string, _ agents.PromptContext) intent.ParseResult {
	return a.parser.Decide(prompt)
}

func (a *Agent) Help() agents.AgentHelp {
	return agents.AgentHelp{
		Examples: []string{
			`Register this image IP, title "Sunset" by-nc`,
			`daftarkan gambar ini, judul "Senja" cc0`,
		},
		ParameterSchema: parameterSchema,
	}
}

var parameterSchema = json.RawMessage(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "description": {"type": "string"},
    "license": {"type": "string", "enum": ["cc0", "by", "by-nc", "by-nd", "by-sa", "arr"]},
    "pilType": {"type": "string", "enum": ["open-use", "non-commercial", "commercial", "commercial-remix"]},
    "aiDetected": {"type": "boolean"}
  },
  "additionalProperties": false
}`)

// Execute runs the registration pipeline against the attached file. Every
// collaborator error is wrapped into the result.
func (a *Agent) Execute(ctx context.Context, in intent.Intent, pctx agents.PromptContext) intent.ExecutionResult {
	regIntent, ok := in.(intent.RegisterIntent)
	if !ok {
		return intent.ExecFailure(ierr.NewInvalidIntentError(fmt.Sprintf("register agent cannot execute %s intent", in.Kind())), "")
	}
	if err := regIntent.Validate(); err != nil {
		return intent.ExecFailure(ierr.NewInvalidIntentError(err.Error()), "")
	}
	if pctx.Attachment == nil || len(pctx.Attachment.Data) == 0 {
		return intent.ExecFailure(ierr.NewFileMissingError(), "attach the file you want to register and try again")
	}

	if !regIntent.AIDetected && a.detect != nil {
		verdict := a.detect.Detect(ctx, pctx.Attachment.Data)
		regIntent.AIDetected = verdict.IsAI
	}

	filePin, err := a.pins.UploadFile(ctx, pctx.Attachment.Name, pctx.Attachment.Data)
	if err != nil {
		return intent.ExecFailure(err, "uploading the asset failed")
	}

	title := regIntent.Title
	if title == "" {
		title = pctx.Attachment.Name
	}

	ipMetadata := map[string]interface{}{
		"title":       title,
		"description": regIntent.Description,
		"image":       filePin.URL,
		"mediaUrl":    filePin.URL,
		"aiGenerated": regIntent.AIDetected,
		"createdAt":   time.Now().UTC().Format(time.RFC3339),
		"creators": []map[string]interface{}{
			{"address": a.minter.From().Hex(), "contributionPercent": 100},
		},
	}
	if regIntent.License != "" {
		ipMetadata["license"] = string(regIntent.License)
		ipMetadata["pilType"] = string(regIntent.PILType)
	}
	nftMetadata := map[string]interface{}{
		"name":        title,
		"description": regIntent.Description,
		"image":       filePin.URL,
	}

	ipJSON, err := json.Marshal(ipMetadata)
	if err != nil {
		return intent.ExecFailure(ierr.NewUploadFailedError("ip metadata", err), "")
	}
	nftJSON, err := json.Marshal(nftMetadata)
	if err != nil {
		return intent.ExecFailure(ierr.NewUploadFailedError("nft metadata", err), "")
	}

	ipPin, err := a.pins.UploadJSON(ctx, ipMetadata)
	if err != nil {
		return intent.ExecFailure(err, "uploading the IP metadata failed")
	}
	nftPin, err := a.pins.UploadJSON(ctx, nftMetadata)
	if err != nil {
		return intent.ExecFailure(err, "uploading the NFT metadata failed")
	}

	txHash, err := a.minter.MintAndRegister(ctx, ipPin.URL, ipJSON, nftPin.URL, nftJSON)
	if err != nil {
		return intent.ExecFailure(err, "mint and register transaction failed to send")
	}
	receipt, err := a.minter.WaitForReceipt(ctx, txHash)
	if err != nil {
		return intent.ExecFailure(err, "waiting for the registration receipt failed")
	}

	data := map[string]interface{}{
		"title":       title,
		"fileCid":     filePin.CID,
		"ipMetadata":  ipPin.URL,
		"nftMetadata": nftPin.URL,
		"aiDetected":  regIntent.AIDetected,
	}
	if regIntent.License != "" {
		data["license"] = string(regIntent.License)
	}

	switch receipt.State {
	case chain.ReceiptReverted:
		return intent.ExecFailure(ierr.NewMintFailedError(fmt.Errorf("registration %s reverted", txHash.Hex())), "")
	case chain.ReceiptPending:
		return intent.ExecSuccess(
			fmt.Sprintf("Registration of %q submitted; confirmation is still pending", title),
			data,
			txHash.Hex(),
		)
	}

	data["blockNumber"] = receipt.BlockNumber
	return intent.ExecSuccess(
		fmt.Sprintf("Registered %q as IP", title),
		data,
		txHash.Hex(),
	)
}

func containsWord(lower, word string) bool {
	idx := 0
	for {
		pos := strings.Index(lower[idx:], word)
		if pos < 0 {
			return false
		}
		abs := idx + pos
		beforeOK := abs == 0 || !isWordChar(lower[abs-1])
		end := abs + len(word)
		afterOK := end >= len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = end
		if idx >= len(lower) {
			return false
		}
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
