// Package detector classifies an image as AI-generated or not, through a
// remote detection API with a local heuristic fallback.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"intent-orchestrator/internal/common/config"
	"intent-orchestrator/internal/common/logger"
)

// Verdict is the provenance classification of one image.
type Verdict struct {
	IsAI       bool    `json:"isAI"`
	Confidence float64 `json:"confidence"`
}

// Detector queries the remote detection service. When the service cannot be
// reached the local entropy heuristic answers instead, so callers always get
// a verdict and the dialogue flow never blocks on the remote side.
type Detector struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logger.Logger
}

func New(cfg config.DetectorConfig, log logger.Logger) *Detector {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Detector{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Detect classifies the image bytes. Never returns an error: remote failure
// degrades to the heuristic.
func (d *Detector) Detect(ctx context.Context, image []byte) Verdict {
	if d.baseURL != "" {
		verdict, err := d.detectRemote(ctx, image)
		if err == nil {
			return verdict
		}
		d.log.WithError(err).Warn("remote detection failed, using local heuristic", map[string]interface{}{
			"image_bytes": len(image),
		})
	}
	return heuristicVerdict(image)
}

func (d *Detector) detectRemote(ctx context.Context, image []byte) (Verdict, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/detect", bytes.NewReader(image))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Verdict{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Verdict{}, fmt.Errorf("detector returned %d: %s", resp.StatusCode, string(raw))
	}

	var verdict Verdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return Verdict{}, fmt.Errorf("decode detector response: %w", err)
	}
	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		return Verdict{}, fmt.Errorf("detector confidence %v out of range", verdict.Confidence)
	}
	return verdict, nil
}

// heuristicVerdict estimates provenance from byte entropy. Camera output is
// dominated by high-entropy compressed data; synthetic images pipelines often
// emit smoother, lower-entropy encodings. Confidence is kept deliberately
// modest since this is a fallback signal only.
func heuristicVerdict(image []byte) Verdict {
	if len(image) == 0 {
		return Verdict{IsAI: false, Confidence: 0}
	}
	entropy := shannonEntropy(image)
	if entropy < 7.0 {
		confidence := (7.0 - entropy) / 7.0
		if confidence > 0.6 {
			confidence = 0.6
		}
		return Verdict{IsAI: true, Confidence: confidence}
	}
	return Verdict{IsAI: false, Confidence: (entropy - 7.0)}
}

func shannonEntropy(data []byte) float64 {
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}
	total := float64(len(data))
	var entropy float64
	for _, count := range counts {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
