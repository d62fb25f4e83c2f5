package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"time"

	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/utils"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusVerified = "VERIFIED"
	PaymentStatusRejected = "REJECTED"
)

type paymentVerifyRequest struct {
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference"`
}

// matchesExpected reports whether a transferred amount settles a payment.
// Transfers either match the order total exactly or carry the unique code
// on top of it.
func matchesExpected(amount, total, expected float64) bool {
	const tolerance = 0.01
	return math.Abs(amount-total) < tolerance || math.Abs(amount-expected) < tolerance
}

func (h *Handler) PaymentsPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select p.id, p.order_id, o.order_number, o.customer_name,
		       p.amount, p.expected_amount, o.payment_code, p.created_at
		from payments p
		join orders o on o.id = p.order_id
		where p.cafe_id = $1 and p.status = 'PENDING'
		  and o.status not in ('CANCELLED')
		order by p.created_at
	`, *authCtx.CafeID)
	if err != nil {
		h.Logger.Error("pending payments query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve payments")
		return
	}
	defer rows.Close()

	payments := make([]map[string]any, 0)
	for rows.Next() {
		var (
			id             int64
			orderID        int64
			orderNumber    string
			customerName   pgtype.Text
			amount         pgtype.Numeric
			expectedAmount pgtype.Numeric
			paymentCode    pgtype.Int8
			createdAt      time.Time
		)
		if err := rows.Scan(&id, &orderID, &orderNumber, &customerName, &amount, &expectedAmount, &paymentCode, &createdAt); err != nil {
			h.Logger.Error("pending payments scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve payments")
			return
		}
		payments = append(payments, map[string]any{
			"id":             id,
			"orderId":        orderID,
			"orderNumber":    orderNumber,
			"customerName":   nullableText(customerName),
			"amount":         utils.NumericToFloat64(amount),
			"expectedAmount": utils.NumericToFloat64(expectedAmount),
			"paymentCode":    int8Ptr(paymentCode),
			"createdAt":      createdAt,
		})
	}

	response.Success(w, map[string]any{"payments": payments})
}

// PaymentVerify matches a reported transfer against the payment and, on
// success, accepts the order in the same transaction.
func (h *Handler) PaymentVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid payment id")
		return
	}

	var body paymentVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if body.Amount <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Amount must be positive")
		return
	}
	reference := strings.TrimSpace(body.Reference)

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("payment verify begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify payment")
		return
	}
	defer tx.Rollback(ctx)

	var (
		orderID        int64
		status         string
		totalAmount    pgtype.Numeric
		expectedAmount pgtype.Numeric
		orderStatus    string
	)
	err = tx.QueryRow(ctx, `
		select p.order_id, p.status, o.total_amount, p.expected_amount, o.status
		from payments p
		join orders o on o.id = p.order_id
		where p.id = $1 and p.cafe_id = $2
		for update of p
	`, id, cafeID).Scan(&orderID, &status, &totalAmount, &expectedAmount, &orderStatus)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "Payment not found")
		return
	}
	if err != nil {
		h.Logger.Error("payment lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify payment")
		return
	}
	if status != PaymentStatusPending {
		response.Error(w, http.StatusConflict, "PAYMENT_NOT_PENDING", "Payment is already "+status)
		return
	}
	if orderStatus == OrderStatusCancelled {
		response.Error(w, http.StatusConflict, "ORDER_CANCELLED", "Order has been cancelled")
		return
	}

	if !matchesExpected(body.Amount, utils.NumericToFloat64(totalAmount), utils.NumericToFloat64(expectedAmount)) {
		response.Error(w, http.StatusConflict, "AMOUNT_MISMATCH", "Amount does not match the order total or its coded amount")
		return
	}

	// A bank reference may only settle one payment.
	if reference != "" {
		var count int64
		if err := tx.QueryRow(ctx, `
			select count(*) from payments
			where cafe_id = $1 and reference = $2 and status = 'VERIFIED' and id <> $3
		`, cafeID, reference, id).Scan(&count); err != nil {
			h.Logger.Error("reference check failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify payment")
			return
		}
		if count > 0 {
			response.Error(w, http.StatusConflict, "REFERENCE_REUSED", "Reference was already used for another payment")
			return
		}
	}

	now := time.Now()
	if _, err := tx.Exec(ctx, `
		update payments
		set status = 'VERIFIED', amount = $3, reference = $4, verified_at = $5, verified_by = $6
		where id = $1 and cafe_id = $2
	`, id, cafeID, body.Amount, nullableString(reference), now, authCtx.UserID); err != nil {
		h.Logger.Error("payment update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify payment")
		return
	}

	// A still-pending order moves straight to ACCEPTED once paid.
	if orderStatus == OrderStatusPending {
		if _, err := tx.Exec(ctx, `
			update orders set status = 'ACCEPTED', updated_at = $3
			where id = $1 and cafe_id = $2 and status = 'PENDING'
		`, orderID, cafeID, now); err != nil {
			h.Logger.Error("order accept failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify payment")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("payment verify commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify payment")
		return
	}

	if orderStatus == OrderStatusPending {
		h.publishOrderStatusEvent(orderID, cafeID, OrderStatusAccepted, now)
	}
	h.Logger.Info("payment verified",
		zap.Int64("paymentId", id),
		zap.Int64("orderId", orderID),
		zap.Float64("amount", body.Amount))

	response.Success(w, map[string]any{
		"id":         id,
		"orderId":    orderID,
		"status":     PaymentStatusVerified,
		"verifiedAt": now,
	})
}

func (h *Handler) PaymentReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid payment id")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	tag, err := h.DB.Exec(ctx, `
		update payments
		set status = 'REJECTED', rejected_reason = $3, verified_by = $4
		where id = $1 and cafe_id = $2 and status = 'PENDING'
	`, id, *authCtx.CafeID, nullableString(strings.TrimSpace(body.Reason)), authCtx.UserID)
	if err != nil {
		h.Logger.Error("payment reject failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reject payment")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "PAYMENT_NOT_PENDING", "Payment not found or not pending")
		return
	}

	response.Success(w, map[string]any{
		"id":     id,
		"status": PaymentStatusRejected,
	})
}
