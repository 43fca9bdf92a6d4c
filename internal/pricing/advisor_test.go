package pricing

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func openAIServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func testRequest() Request {
	return Request{
		ItemName:    "Mythic Sword",
		BasePrice:   big.NewInt(100),
		DemandIndex: 6,
		Supply:      big.NewInt(10),
	}
}

func TestOpenAIAdvisorHybridPrice(t *testing.T) {
	srv := openAIServer(t, `{"demand_factor": 5, "supply_factor": 2}`, http.StatusOK)
	defer srv.Close()

	advisor := NewOpenAIAdvisor("test-key")
	advisor.baseURL = srv.URL

	price, err := advisor.SuggestPrice(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, int64(115), price.Int64())
}

func TestOpenAIAdvisorFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		status  int
	}{
		{"provider error", `{}`, http.StatusInternalServerError},
		{"malformed json", `not json at all`, http.StatusOK},
		{"missing demand factor", `{"supply_factor": 2}`, http.StatusOK},
		{"missing supply factor", `{"demand_factor": 5}`, http.StatusOK},
		{"non-integer factor", `{"demand_factor": "high", "supply_factor": 2}`, http.StatusOK},
		{"factor out of range", `{"demand_factor": 15, "supply_factor": 2}`, http.StatusOK},
		{"negative factor", `{"demand_factor": 5, "supply_factor": -1}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := openAIServer(t, tt.content, tt.status)
			defer srv.Close()

			advisor := NewOpenAIAdvisor("test-key")
			advisor.baseURL = srv.URL

			price, err := advisor.SuggestPrice(context.Background(), testRequest())
			require.Nil(t, price)

			var oerr *OracleError
			require.ErrorAs(t, err, &oerr)
			require.Equal(t, "openai", oerr.Provider)
		})
	}
}

func TestOpenAIAdvisorUnreachable(t *testing.T) {
	advisor := NewOpenAIAdvisor("test-key")
	advisor.baseURL = "http://127.0.0.1:1"

	_, err := advisor.SuggestPrice(context.Background(), testRequest())
	var oerr *OracleError
	require.ErrorAs(t, err, &oerr)
}

func TestGeminiAdvisorDirectPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "The new price should be 128 gold."}},
				}},
			},
		})
	}))
	defer srv.Close()

	advisor := NewGeminiAdvisor("test-key")
	advisor.baseURL = srv.URL

	price, err := advisor.SuggestPrice(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, int64(128), price.Int64())
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int64
		wantErr bool
	}{
		{"bare integer", "115", 115, false},
		{"integer in prose", "I suggest 230 gold for this item.", 230, false},
		{"first of several", "between 90 and 110", 90, false},
		{"no integer", "the price should stay the same", 0, true},
		{"zero price", "0", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := ExtractPrice(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, price.Int64())
		})
	}
}
