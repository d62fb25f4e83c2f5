package handlers

import "time"

// OrderListItem is the wire shape of an order on the owner order board,
// shared with the websocket feed.
type OrderListItem struct {
	ID            int64     `json:"id"`
	CafeID        int64     `json:"cafeId"`
	OrderNumber   string    `json:"orderNumber"`
	Status        string    `json:"status"`
	CustomerName  *string   `json:"customerName"`
	CustomerPhone *string   `json:"customerPhone"`
	Notes         *string   `json:"notes"`
	TotalAmount   float64   `json:"totalAmount"`
	PaymentStatus *string   `json:"paymentStatus"`
	PaymentCode   *int64    `json:"paymentCode"`
	ItemCount     int64     `json:"itemCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
