package httpapi

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/aitrader/internal/catalog"
	"github.com/web3guy0/aitrader/internal/demand"
	"github.com/web3guy0/aitrader/internal/pricing"
)

// Suggester is the pricing oracle surface exposed on /ai/predict.
type Suggester interface {
	Suggest(ctx context.Context, req pricing.Request) (*big.Int, error)
}

// API serves the item catalog and the ad-hoc prediction endpoint.
type API struct {
	store  *catalog.Store
	oracle Suggester
	hub    *Hub
}

func New(store *catalog.Store, oracle Suggester, hub *Hub) *API {
	return &API{store: store, oracle: oracle, hub: hub}
}

// Router builds the HTTP handler with middleware applied.
func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/items", a.listItems).Methods(http.MethodGet)
	r.HandleFunc("/items", a.createItem).Methods(http.MethodPost)
	r.HandleFunc("/ai/predict", a.predict).Methods(http.MethodPost)
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	if a.hub != nil {
		r.Handle("/ws/events", a.hub).Methods(http.MethodGet)
	}
	return withRequestID(withLogging(r))
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "AI Trader NPC agent is running"})
}

func (a *API) listItems(w http.ResponseWriter, _ *http.Request) {
	items, err := a.store.List()
	if err != nil {
		log.Error().Err(err).Msg("Catalog list failed")
		writeJSONError(w, http.StatusInternalServerError, "catalog_error", "")
		return
	}
	if items == nil {
		items = []catalog.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

type createItemRequest struct {
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Address      string `json:"address"`
	BasePrice    int64  `json:"base_price"`
	CurrentPrice int64  `json:"current_price"`
	Rarity       string `json:"rarity"`
	Supply       int64  `json:"supply"`
}

func (a *API) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}
	if req.BasePrice < 0 || req.CurrentPrice < 0 || req.Supply < 0 {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "prices and supply must be >= 0")
		return
	}
	if req.Address != "" && !common.IsHexAddress(req.Address) {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "address must be a hex address")
		return
	}

	item := catalog.Item{
		Name:         req.Name,
		Symbol:       req.Symbol,
		BasePrice:    req.BasePrice,
		CurrentPrice: req.CurrentPrice,
		Rarity:       req.Rarity,
		Supply:       req.Supply,
	}
	if req.Address != "" {
		item.Address = common.HexToAddress(req.Address).Hex()
	}

	if err := a.store.Create(&item); err != nil {
		log.Error().Err(err).Msg("Catalog create failed")
		writeJSONError(w, http.StatusInternalServerError, "catalog_error", "")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Item added successfully.",
		"id":      item.ID,
	})
}

type predictRequest struct {
	ItemName    string `json:"item_name"`
	BasePrice   int64  `json:"base_price"`
	DemandIndex int    `json:"demand_index"`
	Supply      int64  `json:"supply"`
}

// big.Int marshals as an arbitrary-precision JSON number, so even
// wei-scale suggestions round-trip without truncation.
type predictResponse struct {
	SuggestedPrice *big.Int `json:"suggested_price"`
}

// predict exposes the pricing oracle directly for manual and testing use.
// Oracle failures surface as a null suggestion, not an HTTP fault: the API
// stays up when the provider or the chain is flaky.
func (a *API) predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.ItemName == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "item_name is required")
		return
	}
	if req.BasePrice < 1 {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "base_price must be >= 1")
		return
	}
	if req.DemandIndex < demand.Min || req.DemandIndex > demand.Max {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "demand_index must be in [0,10]")
		return
	}
	if req.Supply < 0 {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "supply must be >= 0")
		return
	}

	price, err := a.oracle.Suggest(r.Context(), pricing.Request{
		ItemName:    req.ItemName,
		BasePrice:   big.NewInt(req.BasePrice),
		DemandIndex: req.DemandIndex,
		Supply:      big.NewInt(req.Supply),
	})
	if err != nil {
		log.Warn().Err(err).Str("item", req.ItemName).Msg("Predict: no suggestion")
		writeJSON(w, http.StatusOK, predictResponse{SuggestedPrice: nil})
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{SuggestedPrice: price})
}
