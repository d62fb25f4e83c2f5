package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "cafeops.events"
	EventsQueue    = "cafeops.notifications"

	NotificationJobsExchange = "cafeops.notification_jobs"
	NotificationJobsQueue    = "cafeops.notification_jobs.process"
	NotificationJobsDLQ      = "cafeops.notification_jobs.dlq"
	NotificationJobsRK       = "process"
	NotificationJobsDeadRK   = "dead"
)

type orderStatusUpdatedEvent struct {
	Type      string     `json:"type"`
	OrderID   int64      `json:"orderId"`
	CafeID    int64      `json:"cafeId"`
	Status    string     `json:"status"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

type stockLowEvent struct {
	Type         string    `json:"type"`
	CafeID       int64     `json:"cafeId"`
	IngredientID int64     `json:"ingredientId"`
	Risk         string    `json:"risk"`
	DaysLeft     int       `json:"daysLeft"`
	DetectedAt   time.Time `json:"detectedAt"`
}

func EnsureNotificationJobsTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}

	if err := qc.EnsureExchangeKind(NotificationJobsExchange, "direct"); err != nil {
		return err
	}

	if _, err := qc.EnsureQueue(NotificationJobsDLQ); err != nil {
		return err
	}
	if err := qc.BindQueue(NotificationJobsDLQ, NotificationJobsExchange, NotificationJobsDeadRK); err != nil {
		return err
	}

	_, err := qc.EnsureQueueWithArgs(NotificationJobsQueue, amqp.Table{
		"x-dead-letter-exchange":    NotificationJobsExchange,
		"x-dead-letter-routing-key": NotificationJobsDeadRK,
	})
	if err != nil {
		return err
	}
	return qc.BindQueue(NotificationJobsQueue, NotificationJobsExchange, NotificationJobsRK)
}

// ProcessEventToJobs translates raw bus events into notification jobs for
// the downstream delivery worker. Unknown event types ack silently.
func ProcessEventToJobs(ctx context.Context, db *pgxpool.Pool, qc *Client, body []byte) error {
	if db == nil || qc == nil {
		return nil
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}

	switch strings.TrimSpace(envelope.Type) {
	case "order.status.updated":
		return processOrderStatusEvent(ctx, db, qc, body)
	case "stock.low":
		return processStockLowEvent(ctx, db, qc, body)
	default:
		return nil
	}
}

func processOrderStatusEvent(ctx context.Context, db *pgxpool.Pool, qc *Client, body []byte) error {
	var evt orderStatusUpdatedEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return err
	}

	var (
		orderNumber   string
		cafeName      string
		customerName  *string
		customerPhone *string
	)
	query := `
		select o.order_number, c.name, o.customer_name, o.customer_phone
		from orders o
		join cafes c on c.id = o.cafe_id
		where o.id = $1 and o.cafe_id = $2
	`
	if err := db.QueryRow(ctx, query, evt.OrderID, evt.CafeID).Scan(&orderNumber, &cafeName, &customerName, &customerPhone); err != nil {
		return err
	}

	payload := map[string]any{
		"kind":        "order_status",
		"orderNumber": orderNumber,
		"status":      strings.ToUpper(strings.TrimSpace(evt.Status)),
		"cafeName":    cafeName,
	}
	if customerName != nil {
		payload["customerName"] = *customerName
	}
	if customerPhone != nil {
		payload["customerPhone"] = *customerPhone
	}

	job := map[string]any{
		"kind":      "order_status",
		"payload":   payload,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"attempt":   1,
	}
	return qc.PublishJSON(ctx, NotificationJobsExchange, NotificationJobsRK, job)
}

func processStockLowEvent(ctx context.Context, db *pgxpool.Pool, qc *Client, body []byte) error {
	var evt stockLowEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return err
	}

	var (
		ingredientName string
		unit           string
		currentStock   float64
	)
	query := `
		select name, unit, current_stock
		from ingredients
		where id = $1 and cafe_id = $2
	`
	if err := db.QueryRow(ctx, query, evt.IngredientID, evt.CafeID).Scan(&ingredientName, &unit, &currentStock); err != nil {
		return err
	}

	job := map[string]any{
		"kind": "stock_alert",
		"payload": map[string]any{
			"kind":         "stock_alert",
			"cafeId":       fmt.Sprintf("%d", evt.CafeID),
			"ingredient":   ingredientName,
			"unit":         unit,
			"currentStock": currentStock,
			"risk":         evt.Risk,
			"daysLeft":     evt.DaysLeft,
		},
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"attempt":   1,
	}
	return qc.PublishJSON(ctx, NotificationJobsExchange, NotificationJobsRK, job)
}
