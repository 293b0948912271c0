package compat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kairo-ai/kairo/internal/model"
)

// HTTPReasoner talks to the external reasoning collaborator over JSON.
// The collaborator is a black box: it receives both part records plus the
// connection type and returns a verdict in the same shape the rule tier
// produces.
type HTTPReasoner struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPReasoner creates a client for the reasoning service. The HTTP
// client timeout is a backstop; per-call deadlines come from the caller's
// context.
func NewHTTPReasoner(baseURL, apiKey string, timeout time.Duration) *HTTPReasoner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReasoner{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type assessRequest struct {
	PartA          model.PartRecord     `json:"part_a"`
	PartB          model.PartRecord     `json:"part_b"`
	ConnectionType model.ConnectionType `json:"connection_type"`
}

type assessResponse struct {
	Compatible      bool     `json:"compatible"`
	Reasoning       string   `json:"reasoning"`
	Risks           []string `json:"risks,omitempty"`
	RequiredBuffers []string `json:"required_buffers,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Assess submits one ambiguous pair for external judgment.
func (r *HTTPReasoner) Assess(ctx context.Context, a, b model.PartRecord, ct model.ConnectionType) (model.CompatibilityResult, error) {
	reqBody, err := json.Marshal(assessRequest{PartA: a, PartB: b, ConnectionType: ct})
	if err != nil {
		return model.CompatibilityResult{}, fmt.Errorf("reasoner: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/compatibility", bytes.NewReader(reqBody))
	if err != nil {
		return model.CompatibilityResult{}, fmt.Errorf("reasoner: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return model.CompatibilityResult{}, fmt.Errorf("reasoner: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return model.CompatibilityResult{}, fmt.Errorf("reasoner: status %d: %s", resp.StatusCode, string(body))
	}

	var result assessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.CompatibilityResult{}, fmt.Errorf("reasoner: decode response: %w", err)
	}

	return model.CompatibilityResult{
		Compatible:      result.Compatible,
		Reasoning:       result.Reasoning,
		Risks:           result.Risks,
		RequiredBuffers: result.RequiredBuffers,
		Warnings:        result.Warnings,
	}, nil
}
