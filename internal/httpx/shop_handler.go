package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/shop"
)

type ShopHandler struct {
	Shops *shop.Service
}

type UpdateShopReq struct {
	Name     string          `json:"name"`
	Address  string          `json:"address"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

type WarmShopReq struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

func (h *ShopHandler) Register(r *chi.Mux) {
	r.Get("/shops/{id}", h.getShop)
	r.Put("/shops/{id}", h.updateShop)
	r.Post("/shops/{id}/warm", h.warmShop)
}

func context5s(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}

func (h *ShopHandler) getShop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid shop id")
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	s, err := h.Shops.GetByID(ctx, id)
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "shop not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *ShopHandler) updateShop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid shop id")
		return
	}
	var req UpdateShopReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	err := h.Shops.Update(ctx, &shop.Shop{
		ID: id, Name: req.Name, Address: req.Address, AvgPrice: req.AvgPrice,
	})
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "shop not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ShopHandler) warmShop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid shop id")
		return
	}
	var req WarmShopReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = h.Shops.TTL
	}

	ctx, cancel := context5s(r)
	defer cancel()

	if err := h.Shops.Warm(ctx, id, ttl); err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			writeError(w, http.StatusNotFound, "shop not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
