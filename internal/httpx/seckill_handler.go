package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/orders"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/seckill"
)

type SeckillHandler struct {
	Service *seckill.Service
	Orders  *orders.Repo
}

type CreateVoucherReq struct {
	VoucherID int64           `json:"voucher_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	BeginTime time.Time       `json:"begin_time"`
	EndTime   time.Time       `json:"end_time"`
}

type SeckillResp struct {
	OrderID int64 `json:"order_id"`
}

func (h *SeckillHandler) Register(r *chi.Mux) {
	r.Post("/vouchers", h.createVoucher)
	r.Post("/vouchers/{id}/seckill", h.seckill)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/pay", h.payOrder)
}

// The web layer owns authentication; the user id arrives as an explicit
// header, never from ambient state.
func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
	return id, err == nil && id > 0
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *SeckillHandler) seckill(w http.ResponseWriter, r *http.Request) {
	vid, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid voucher id")
		return
	}
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	orderID, err := h.Service.Seckill(ctx, uid, vid)
	switch {
	case err == nil:
		// Admission decided; persistence happens on the worker.
		writeJSON(w, http.StatusAccepted, SeckillResp{OrderID: orderID})
	case errors.Is(err, seckill.ErrOutOfStock):
		writeError(w, http.StatusConflict, "out of stock")
	case errors.Is(err, seckill.ErrDuplicateOrder):
		writeError(w, http.StatusConflict, "already purchased")
	case errors.Is(err, seckill.ErrNotStarted):
		writeError(w, http.StatusForbidden, "sale has not started")
	case errors.Is(err, seckill.ErrEnded):
		writeError(w, http.StatusForbidden, "sale has ended")
	case errors.Is(err, orders.ErrVoucherNotFound):
		writeError(w, http.StatusNotFound, "voucher not found")
	default:
		writeError(w, http.StatusServiceUnavailable, "system busy, try again")
	}
}

func (h *SeckillHandler) createVoucher(w http.ResponseWriter, r *http.Request) {
	var req CreateVoucherReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.VoucherID <= 0 || req.Stock <= 0 || !req.EndTime.After(req.BeginTime) {
		writeError(w, http.StatusBadRequest, "missing or inconsistent fields")
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	v := &orders.SeckillVoucher{
		VoucherID: req.VoucherID,
		Title:     req.Title,
		Price:     req.Price,
		Stock:     req.Stock,
		BeginTime: req.BeginTime,
		EndTime:   req.EndTime,
	}
	if err := h.Service.CreateVoucher(ctx, v); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"voucher_id": v.VoucherID})
}

func (h *SeckillHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, id)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":   o.ID,
		"user_id":    o.UserID,
		"voucher_id": o.VoucherID,
		"status":     o.Status,
		"created_at": o.CreatedAt,
	})
}

func (h *SeckillHandler) payOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	err := h.Orders.UpdateOrderStatus(ctx, id, orders.StatusPaid)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(orders.StatusPaid)})
	case errors.Is(err, orders.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, orders.ErrBadTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
