package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"regexp"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// GEMINI ADVISOR - Direct strategy
// ═══════════════════════════════════════════════════════════════════════════════
//
// Asks the model for a price outright and extracts the first integer token
// from the free-text reply. No integer in the reply means no suggestion.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel   = "gemini-1.5-flash"
)

var integerToken = regexp.MustCompile(`\d+`)

type GeminiAdvisor struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewGeminiAdvisor(apiKey string) *GeminiAdvisor {
	return &GeminiAdvisor{
		baseURL:    geminiBaseURL,
		apiKey:     apiKey,
		model:      geminiModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *GeminiAdvisor) SuggestPrice(ctx context.Context, req Request) (*big.Int, error) {
	prompt := fmt.Sprintf(
		"You are a trader NPC pricing items in a fantasy marketplace. "+
			"The item '%s' currently sells for %s gold. "+
			"The demand index is %d out of 10 and the remaining supply is %s. "+
			"Reply with the new integer price and nothing else.",
		req.ItemName, req.BasePrice, req.DemandIndex, req.Supply,
	)

	text, err := a.generate(ctx, prompt)
	if err != nil {
		return nil, &OracleError{Provider: "gemini", Err: err}
	}

	price, err := ExtractPrice(text)
	if err != nil {
		return nil, &OracleError{Provider: "gemini", Err: err}
	}
	return price, nil
}

// ExtractPrice pulls the first integer token out of a free-text reply.
func ExtractPrice(text string) (*big.Int, error) {
	token := integerToken.FindString(text)
	if token == "" {
		return nil, fmt.Errorf("no integer in reply %q", text)
	}
	price, ok := new(big.Int).SetString(token, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable integer %q", token)
	}
	if price.Sign() < 1 {
		return nil, fmt.Errorf("suggested price %s below 1", price)
	}
	return price, nil
}

func (a *GeminiAdvisor) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, a.model, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidate")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}
