package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OpenAIModerator struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type moderationReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type moderationResp struct {
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}

func NewOpenAIModerator(baseURL, apiKey, model string) *OpenAIModerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "omni-moderation-latest"
	}
	return &OpenAIModerator{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 20 * time.Second},
	}
}

// Moderate returns the first result's flagged bit. Any failure is returned as
// an error; callers decide whether to fail open.
func (m *OpenAIModerator) Moderate(ctx context.Context, text string) (bool, error) {
	if strings.TrimSpace(m.APIKey) == "" {
		return false, ErrNotConfigured
	}

	b, err := json.Marshal(moderationReq{Model: m.Model, Input: text})
	if err != nil {
		return false, err
	}

	url := fmt.Sprintf("%s/moderations", strings.TrimRight(m.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)

	resp, err := m.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &UpstreamError{Service: "moderation", Status: resp.StatusCode}
	}

	var decoded moderationResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, fmt.Errorf("moderation: decode: %w", err)
	}
	if len(decoded.Results) == 0 {
		return false, nil
	}
	return decoded.Results[0].Flagged, nil
}
