package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// OPENAI ADVISOR - Hybrid strategy
// ═══════════════════════════════════════════════════════════════════════════════
//
// Stage A asks the model for structured market factors (two integers in
// [0,10]); Stage B feeds them through the deterministic formula. The model
// never sets the price directly, it only shapes the adjustment.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	openAIBaseURL = "https://api.openai.com/v1"
	openAIModel   = "gpt-4o-mini"
)

const factorSystemPrompt = "You are a master trader in a fantasy world. Your goal is to analyze market data " +
	"and provide key factors for a pricing model. Respond only with a valid JSON object."

// Factors is the structured advisory output of Stage A.
type Factors struct {
	DemandFactor int
	SupplyFactor int
}

type OpenAIAdvisor struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewOpenAIAdvisor(apiKey string) *OpenAIAdvisor {
	return &OpenAIAdvisor{
		baseURL:    openAIBaseURL,
		apiKey:     apiKey,
		model:      openAIModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SuggestPrice runs both stages. Any Stage A failure yields no suggestion.
func (a *OpenAIAdvisor) SuggestPrice(ctx context.Context, req Request) (*big.Int, error) {
	factors, err := a.MarketFactors(ctx, req)
	if err != nil {
		return nil, err
	}
	return ComputePrice(req.BasePrice, factors.DemandFactor, factors.SupplyFactor), nil
}

// MarketFactors asks the model for demand and supply-pressure factors.
func (a *OpenAIAdvisor) MarketFactors(ctx context.Context, req Request) (Factors, error) {
	userPrompt := fmt.Sprintf(
		"Analyze the market for '%s'. "+
			"The current raw demand index is %d (from 0 to 10, where 10 is max demand). "+
			"The current supply (inventory) is %s. "+
			"Based on this, provide a JSON object with two keys: "+
			"1. 'demand_factor': Your expert assessment of demand, as an integer from 0 to 10. "+
			"2. 'supply_factor': Your expert assessment of supply pressure, as an integer from 0 to 10 "+
			"(where 10 means high supply pressure, driving prices down).",
		req.ItemName, req.DemandIndex, req.Supply,
	)

	payload := map[string]interface{}{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "system", "content": factorSystemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	content, err := a.complete(ctx, payload)
	if err != nil {
		return Factors{}, &OracleError{Provider: "openai", Err: err}
	}

	var raw struct {
		DemandFactor json.Number `json:"demand_factor"`
		SupplyFactor json.Number `json:"supply_factor"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Factors{}, &OracleError{Provider: "openai", Err: fmt.Errorf("malformed factors payload: %w", err)}
	}

	demand, err := parseFactor("demand_factor", raw.DemandFactor)
	if err != nil {
		return Factors{}, &OracleError{Provider: "openai", Err: err}
	}
	supply, err := parseFactor("supply_factor", raw.SupplyFactor)
	if err != nil {
		return Factors{}, &OracleError{Provider: "openai", Err: err}
	}

	return Factors{DemandFactor: demand, SupplyFactor: supply}, nil
}

func parseFactor(name string, n json.Number) (int, error) {
	if n == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("non-integer %s %q", name, n)
	}
	if v < 0 || v > 10 {
		return 0, fmt.Errorf("%s %d out of range [0,10]", name, v)
	}
	return int(v), nil
}

func (a *OpenAIAdvisor) complete(ctx context.Context, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

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
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}

	return result.Choices[0].Message.Content, nil
}
