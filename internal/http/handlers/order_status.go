package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/pricing"
	"cafe-ops-service/internal/queue"
	"cafe-ops-service/internal/utils"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const (
	OrderStatusPending    = "PENDING"
	OrderStatusAccepted   = "ACCEPTED"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusReady      = "READY"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

// allowedTransitions is the forward path of an order. CANCELLED is reachable
// from every non-final status.
var allowedTransitions = map[string]string{
	OrderStatusPending:    OrderStatusAccepted,
	OrderStatusAccepted:   OrderStatusInProgress,
	OrderStatusInProgress: OrderStatusReady,
	OrderStatusReady:      OrderStatusCompleted,
}

func canTransition(from, to string) bool {
	if from == OrderStatusCompleted || from == OrderStatusCancelled {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	return allowedTransitions[from] == to
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

// OrderUpdateStatus moves an order along its lifecycle. Completing an order
// deducts ingredient stock through the menu recipes, exactly once.
func (h *Handler) OrderUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	var body orderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	newStatus := strings.ToUpper(strings.TrimSpace(body.Status))
	if !orderListStatuses[newStatus] || newStatus == OrderStatusPending {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown target status")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("order status begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
		return
	}
	defer tx.Rollback(ctx)

	var (
		currentStatus string
		stockDeducted pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, `
		select status, stock_deducted_at from orders
		where id = $1 and cafe_id = $2
		for update
	`, id, cafeID).Scan(&currentStatus, &stockDeducted)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("order status lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
		return
	}

	if !canTransition(currentStatus, newStatus) {
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION",
			"Cannot move order from "+currentStatus+" to "+newStatus)
		return
	}

	now := time.Now()
	if newStatus == OrderStatusCompleted && !stockDeducted.Valid {
		if err := h.deductStockForOrder(ctx, tx, cafeID, id); err != nil {
			h.Logger.Error("stock deduction failed", zapError(err), zap.Int64("orderId", id))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to deduct stock")
			return
		}
		if _, err := tx.Exec(ctx, `
			update orders set status = $3, stock_deducted_at = $4, updated_at = $4
			where id = $1 and cafe_id = $2
		`, id, cafeID, newStatus, now); err != nil {
			h.Logger.Error("order status update failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
			return
		}
	} else {
		if _, err := tx.Exec(ctx, `
			update orders set status = $3, updated_at = $4
			where id = $1 and cafe_id = $2
		`, id, cafeID, newStatus, now); err != nil {
			h.Logger.Error("order status update failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("order status commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
		return
	}

	if newStatus == OrderStatusCompleted {
		invalidateForecastCacheForCafe(cafeID)
	}
	h.publishOrderStatusEvent(id, cafeID, newStatus, now)

	response.Success(w, map[string]any{
		"id":     id,
		"status": newStatus,
	})
}

// deductStockForOrder walks the recipes of every line item and subtracts the
// consumed quantities, converting recipe units into each ingredient's
// purchase unit. Quantities are also written to the daily usage rollup that
// feeds the forecasts.
func (h *Handler) deductStockForOrder(ctx context.Context, tx pgx.Tx, cafeID, orderID int64) error {
	rows, err := tx.Query(ctx, `
		select mr.ingredient_id, mr.quantity, mr.unit, i.unit, oi.quantity
		from order_items oi
		join menu_recipes mr on mr.menu_item_id = oi.menu_item_id
		join ingredients i on i.id = mr.ingredient_id and i.deleted_at is null
		where oi.order_id = $1
	`, orderID)
	if err != nil {
		return err
	}

	usage := map[int64]float64{}
	for rows.Next() {
		var (
			ingredientID int64
			quantity     pgtype.Numeric
			recipeUnit   string
			purchaseUnit string
			orderQty     int32
		)
		if err := rows.Scan(&ingredientID, &quantity, &recipeUnit, &purchaseUnit, &orderQty); err != nil {
			rows.Close()
			return err
		}
		converted, err := pricing.ConvertUnit(utils.NumericToFloat64(quantity), recipeUnit, purchaseUnit)
		if err != nil {
			rows.Close()
			return err
		}
		usage[ingredientID] += converted * float64(orderQty)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for ingredientID, qty := range usage {
		if qty <= 0 {
			continue
		}
		if _, err := tx.Exec(ctx, `
			update ingredients
			set current_stock = greatest(current_stock - $2, 0), updated_at = now()
			where id = $1
		`, ingredientID, qty); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			insert into ingredient_movements (cafe_id, ingredient_id, movement_type, quantity, reason)
			values ($1, $2, 'USAGE', $3, 'Order completion')
		`, cafeID, ingredientID, -qty); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			insert into ingredient_usage_daily (ingredient_id, usage_date, quantity)
			values ($1, current_date, $2)
			on conflict (ingredient_id, usage_date)
			do update set quantity = ingredient_usage_daily.quantity + excluded.quantity
		`, ingredientID, qty); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) publishOrderStatusEvent(orderID, cafeID int64, status string, at time.Time) {
	if h.Queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := map[string]any{
		"type":      "order.status.updated",
		"orderId":   orderID,
		"cafeId":    cafeID,
		"status":    status,
		"updatedAt": at,
	}
	if err := h.Queue.PublishJSON(ctx, queue.EventsExchange, "order.status.updated", payload); err != nil {
		h.Logger.Warn("order status event publish failed", zapError(err), zap.Int64("orderId", orderID))
	}
}
