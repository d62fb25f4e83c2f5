package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/utils"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type orderCreateRequest struct {
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	Notes         string `json:"notes"`
	Items         []struct {
		MenuItemID int64  `json:"menuItemId"`
		Quantity   int    `json:"quantity"`
		Notes      string `json:"notes"`
	} `json:"items"`
}

var orderListStatuses = map[string]bool{
	"PENDING": true, "ACCEPTED": true, "IN_PROGRESS": true,
	"READY": true, "COMPLETED": true, "CANCELLED": true,
}

func (h *Handler) OrdersList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !orderListStatuses[status] {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown order status")
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := parseDateInput(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid since date")
			return
		}
		since = parsed
	} else {
		since = time.Now().AddDate(0, 0, -1)
	}

	orders, err := h.loadOrders(ctx, *authCtx.CafeID, status, since)
	if err != nil {
		h.Logger.Error("orders list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve orders")
		return
	}

	response.Success(w, map[string]any{"orders": orders})
}

func (h *Handler) OrdersDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	var (
		orderNumber   string
		status        string
		customerName  pgtype.Text
		customerPhone pgtype.Text
		notes         pgtype.Text
		totalAmount   pgtype.Numeric
		paymentCode   pgtype.Int8
		createdAt     time.Time
		updatedAt     time.Time
	)
	err = h.DB.QueryRow(ctx, `
		select order_number, status, customer_name, customer_phone, notes,
		       total_amount, payment_code, created_at, updated_at
		from orders
		where id = $1 and cafe_id = $2
	`, id, *authCtx.CafeID).Scan(&orderNumber, &status, &customerName, &customerPhone, &notes, &totalAmount, &paymentCode, &createdAt, &updatedAt)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("order detail query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
		return
	}

	items, err := h.loadOrderItems(ctx, id)
	if err != nil {
		h.Logger.Error("order items query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
		return
	}

	payment, err := h.loadOrderPayment(ctx, id)
	if err != nil {
		h.Logger.Error("order payment query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
		return
	}

	response.Success(w, map[string]any{
		"id":            id,
		"orderNumber":   orderNumber,
		"status":        status,
		"customerName":  nullableText(customerName),
		"customerPhone": nullableText(customerPhone),
		"notes":         nullableText(notes),
		"totalAmount":   utils.NumericToFloat64(totalAmount),
		"paymentCode":   int8Ptr(paymentCode),
		"items":         items,
		"payment":       payment,
		"createdAt":     createdAt,
		"updatedAt":     updatedAt,
	})
}

// OrdersCreate takes the order, prices it from the current menu, assigns a
// unique payment code and opens a pending payment.
func (h *Handler) OrdersCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	var body orderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if len(body.Items) == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order needs at least one item")
		return
	}
	for _, item := range body.Items {
		if item.MenuItemID <= 0 || item.Quantity <= 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Each item needs a menu item and a positive quantity")
			return
		}
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("order create begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}
	defer tx.Rollback(ctx)

	// Price every line from the live menu so stale client prices cannot leak in.
	type pricedItem struct {
		menuItemID int64
		name       string
		quantity   int
		unitPrice  float64
		notes      string
	}
	priced := make([]pricedItem, 0, len(body.Items))
	total := 0.0
	for _, item := range body.Items {
		var (
			name      string
			price     pgtype.Numeric
			available bool
		)
		err := tx.QueryRow(ctx, `
			select name, price, is_available from menu_items
			where id = $1 and cafe_id = $2 and deleted_at is null
		`, item.MenuItemID, cafeID).Scan(&name, &price, &available)
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusBadRequest, "MENU_ITEM_NOT_FOUND", "Order references an unknown menu item")
			return
		}
		if err != nil {
			h.Logger.Error("order item lookup failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
			return
		}
		if !available {
			response.Error(w, http.StatusConflict, "MENU_ITEM_UNAVAILABLE", fmt.Sprintf("%s is not available", name))
			return
		}

		unitPrice := utils.NumericToFloat64(price)
		total += unitPrice * float64(item.Quantity)
		priced = append(priced, pricedItem{
			menuItemID: item.MenuItemID,
			name:       name,
			quantity:   item.Quantity,
			unitPrice:  unitPrice,
			notes:      strings.TrimSpace(item.Notes),
		})
	}

	paymentCode, err := nextPaymentCode(ctx, tx, cafeID)
	if err != nil {
		h.Logger.Error("payment code allocation failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	orderNumber, err := nextOrderNumber(ctx, tx, cafeID)
	if err != nil {
		h.Logger.Error("order number allocation failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	var orderID int64
	err = tx.QueryRow(ctx, `
		insert into orders (cafe_id, order_number, status, customer_name, customer_phone, notes, total_amount, payment_code)
		values ($1, $2, 'PENDING', $3, $4, $5, $6, $7)
		returning id
	`, cafeID, orderNumber, nullableString(strings.TrimSpace(body.CustomerName)), nullableString(strings.TrimSpace(body.CustomerPhone)), nullableString(strings.TrimSpace(body.Notes)), total, paymentCode).Scan(&orderID)
	if err != nil {
		h.Logger.Error("order insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	for _, item := range priced {
		if _, err := tx.Exec(ctx, `
			insert into order_items (order_id, menu_item_id, name, quantity, unit_price, notes)
			values ($1, $2, $3, $4, $5, $6)
		`, orderID, item.menuItemID, item.name, item.quantity, item.unitPrice, nullableString(item.notes)); err != nil {
			h.Logger.Error("order item insert failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
			return
		}
	}

	// Expected transfer amount carries the unique code so incoming payments
	// can be matched without a reference.
	if _, err := tx.Exec(ctx, `
		insert into payments (cafe_id, order_id, status, amount, expected_amount)
		values ($1, $2, 'PENDING', $3, $4)
	`, cafeID, orderID, total, total+float64(paymentCode)); err != nil {
		h.Logger.Error("payment insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("order create commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	response.Created(w, map[string]any{
		"id":             orderID,
		"orderNumber":    orderNumber,
		"totalAmount":    total,
		"paymentCode":    paymentCode,
		"expectedAmount": total + float64(paymentCode),
	})
}

func (h *Handler) loadOrders(ctx context.Context, cafeID int64, status string, since time.Time) ([]map[string]any, error) {
	rows, err := h.DB.Query(ctx, `
		select o.id, o.order_number, o.status, o.customer_name, o.total_amount, o.created_at,
		       coalesce(p.status, ''), count(oi.id)
		from orders o
		left join payments p on p.order_id = o.id
		left join order_items oi on oi.order_id = o.id
		where o.cafe_id = $1
		  and ($2 = '' or o.status = $2)
		  and o.created_at >= $3
		group by o.id, o.order_number, o.status, o.customer_name, o.total_amount, o.created_at, p.status
		order by o.created_at desc
		limit 200
	`, cafeID, status, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]map[string]any, 0)
	for rows.Next() {
		var (
			id            int64
			orderNumber   string
			orderStatus   string
			customerName  pgtype.Text
			totalAmount   pgtype.Numeric
			createdAt     time.Time
			paymentStatus string
			itemCount     int64
		)
		if err := rows.Scan(&id, &orderNumber, &orderStatus, &customerName, &totalAmount, &createdAt, &paymentStatus, &itemCount); err != nil {
			return nil, err
		}
		orders = append(orders, map[string]any{
			"id":            id,
			"orderNumber":   orderNumber,
			"status":        orderStatus,
			"customerName":  nullableText(customerName),
			"totalAmount":   utils.NumericToFloat64(totalAmount),
			"paymentStatus": nullableString(paymentStatus),
			"itemCount":     itemCount,
			"createdAt":     createdAt,
		})
	}
	return orders, rows.Err()
}

func (h *Handler) loadOrderItems(ctx context.Context, orderID int64) ([]map[string]any, error) {
	rows, err := h.DB.Query(ctx, `
		select menu_item_id, name, quantity, unit_price, notes
		from order_items
		where order_id = $1
		order by id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]map[string]any, 0)
	for rows.Next() {
		var (
			menuItemID int64
			name       string
			quantity   int32
			unitPrice  pgtype.Numeric
			notes      pgtype.Text
		)
		if err := rows.Scan(&menuItemID, &name, &quantity, &unitPrice, &notes); err != nil {
			return nil, err
		}
		price := utils.NumericToFloat64(unitPrice)
		items = append(items, map[string]any{
			"menuItemId": menuItemID,
			"name":       name,
			"quantity":   quantity,
			"unitPrice":  price,
			"subtotal":   price * float64(quantity),
			"notes":      nullableText(notes),
		})
	}
	return items, rows.Err()
}

func (h *Handler) loadOrderPayment(ctx context.Context, orderID int64) (map[string]any, error) {
	var (
		id             int64
		status         string
		amount         pgtype.Numeric
		expectedAmount pgtype.Numeric
		reference      pgtype.Text
		verifiedAt     pgtype.Timestamptz
	)
	err := h.DB.QueryRow(ctx, `
		select id, status, amount, expected_amount, reference, verified_at
		from payments where order_id = $1
		order by id desc limit 1
	`, orderID).Scan(&id, &status, &amount, &expectedAmount, &reference, &verifiedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":             id,
		"status":         status,
		"amount":         utils.NumericToFloat64(amount),
		"expectedAmount": utils.NumericToFloat64(expectedAmount),
		"reference":      nullableText(reference),
		"verifiedAt":     nullableTime(verifiedAt),
	}, nil
}

// nextPaymentCode picks the lowest 1..999 code not held by another open
// order of the cafe.
func nextPaymentCode(ctx context.Context, tx pgx.Tx, cafeID int64) (int, error) {
	rows, err := tx.Query(ctx, `
		select payment_code from orders
		where cafe_id = $1 and payment_code is not null
		  and status not in ('COMPLETED', 'CANCELLED')
	`, cafeID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	taken := map[int]bool{}
	for rows.Next() {
		var code int
		if err := rows.Scan(&code); err != nil {
			return 0, err
		}
		taken[code] = true
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for code := 1; code <= 999; code++ {
		if !taken[code] {
			return code, nil
		}
	}
	return 0, fmt.Errorf("all payment codes in use")
}

func nextOrderNumber(ctx context.Context, tx pgx.Tx, cafeID int64) (string, error) {
	today := time.Now().Format("20060102")
	var count int64
	err := tx.QueryRow(ctx, `
		select count(*) from orders
		where cafe_id = $1 and created_at::date = current_date
	`, cafeID).Scan(&count)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%03d", today, count+1), nil
}
