package ws

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cafe-ops-service/internal/auth"
	"cafe-ops-service/internal/config"
	"cafe-ops-service/internal/http/handlers"
	"cafe-ops-service/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config

	orderBoard *orderBoardRealtime
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	srv := &Server{DB: db, Logger: logger, Config: cfg}
	srv.orderBoard = newOrderBoardRealtime(db, logger, cfg.WSOrderPollInterval)
	return srv
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

// orderBoardRealtime pushes the active order set to every owner screen
// subscribed to a cafe. A single poll loop watches max(updated_at) and
// refetches only when something changed.
type orderBoardRealtime struct {
	db           *pgxpool.Pool
	logger       *zap.Logger
	pollInterval time.Duration

	started sync.Once
	mu      sync.RWMutex
	subs    map[string]map[*wsClient]struct{}
	lastMu  sync.Mutex
	last    map[string]time.Time
}

func newOrderBoardRealtime(db *pgxpool.Pool, logger *zap.Logger, pollInterval time.Duration) *orderBoardRealtime {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &orderBoardRealtime{
		db:           db,
		logger:       logger,
		pollInterval: pollInterval,
		subs:         make(map[string]map[*wsClient]struct{}),
		last:         make(map[string]time.Time),
	}
}

func (ob *orderBoardRealtime) ensureStarted() {
	ob.started.Do(func() {
		go ob.pollLoop(context.Background())
	})
}

func (ob *orderBoardRealtime) subscribe(cafeID string, client *wsClient) (unsubscribe func()) {
	key := strings.TrimSpace(cafeID)
	if key == "" {
		return func() {}
	}

	ob.mu.Lock()
	if ob.subs[key] == nil {
		ob.subs[key] = make(map[*wsClient]struct{})
	}
	ob.subs[key][client] = struct{}{}
	ob.mu.Unlock()

	return func() {
		ob.mu.Lock()
		clients := ob.subs[key]
		delete(clients, client)
		if len(clients) == 0 {
			delete(ob.subs, key)
		}
		ob.mu.Unlock()
	}
}

func (ob *orderBoardRealtime) broadcast(cafeID string, message any) {
	key := strings.TrimSpace(cafeID)
	if key == "" {
		return
	}

	ob.mu.RLock()
	clientsMap := ob.subs[key]
	clients := make([]*wsClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	ob.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			ob.mu.Lock()
			if current := ob.subs[key]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(ob.subs, key)
				}
			}
			ob.mu.Unlock()
		}
	}
}

func (ob *orderBoardRealtime) subscribedCafes() []string {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	keys := make([]string, 0, len(ob.subs))
	for key := range ob.subs {
		keys = append(keys, key)
	}
	return keys
}

func (ob *orderBoardRealtime) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(ob.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, key := range ob.subscribedCafes() {
			cafeID, err := parseInt64(key)
			if err != nil {
				continue
			}

			updatedAt := ob.fetchActiveOrdersUpdatedAt(ctx, cafeID)
			ob.lastMu.Lock()
			seen := ob.last[key]
			changed := updatedAt.After(seen)
			if changed {
				ob.last[key] = updatedAt
			}
			ob.lastMu.Unlock()
			if !changed {
				continue
			}

			orders, err := ob.fetchActiveOrders(ctx, cafeID)
			if err != nil {
				if ob.logger != nil {
					ob.logger.Warn("order board fetch failed", zap.Error(err), zap.Int64("cafeId", cafeID))
				}
				ob.broadcast(key, map[string]any{"type": "orders.refresh", "updatedAt": updatedAt})
				continue
			}
			ob.broadcast(key, map[string]any{"type": "orders.state", "data": orders})
		}
	}
}

func (ob *orderBoardRealtime) fetchActiveOrdersUpdatedAt(ctx context.Context, cafeID int64) time.Time {
	var updated time.Time
	err := ob.db.QueryRow(ctx, `
		select coalesce(max(updated_at), 'epoch'::timestamptz)
		from orders
		where cafe_id = $1 and status in ('PENDING', 'ACCEPTED', 'IN_PROGRESS', 'READY')
	`, cafeID).Scan(&updated)
	if err != nil {
		return time.Time{}
	}
	return updated
}

func (ob *orderBoardRealtime) fetchActiveOrders(ctx context.Context, cafeID int64) ([]handlers.OrderListItem, error) {
	rows, err := ob.db.Query(ctx, `
		select o.id, o.cafe_id, o.order_number, o.status, o.customer_name, o.customer_phone,
		       o.notes, o.total_amount, p.status, o.payment_code, count(oi.id),
		       o.created_at, o.updated_at
		from orders o
		left join payments p on p.order_id = o.id
		left join order_items oi on oi.order_id = o.id
		where o.cafe_id = $1 and o.status in ('PENDING', 'ACCEPTED', 'IN_PROGRESS', 'READY')
		group by o.id, o.cafe_id, o.order_number, o.status, o.customer_name, o.customer_phone,
		         o.notes, o.total_amount, p.status, o.payment_code, o.created_at, o.updated_at
		order by o.created_at desc
	`, cafeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]handlers.OrderListItem, 0)
	for rows.Next() {
		var (
			order         handlers.OrderListItem
			customerName  pgtype.Text
			customerPhone pgtype.Text
			notes         pgtype.Text
			totalAmount   pgtype.Numeric
			paymentStatus pgtype.Text
			paymentCode   pgtype.Int8
		)
		if err := rows.Scan(
			&order.ID,
			&order.CafeID,
			&order.OrderNumber,
			&order.Status,
			&customerName,
			&customerPhone,
			&notes,
			&totalAmount,
			&paymentStatus,
			&paymentCode,
			&order.ItemCount,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, err
		}

		order.TotalAmount = utils.NumericToFloat64(totalAmount)
		if customerName.Valid {
			order.CustomerName = &customerName.String
		}
		if customerPhone.Valid {
			order.CustomerPhone = &customerPhone.String
		}
		if notes.Valid {
			order.Notes = &notes.String
		}
		if paymentStatus.Valid {
			order.PaymentStatus = &paymentStatus.String
		}
		if paymentCode.Valid {
			order.PaymentCode = &paymentCode.Int64
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// OwnerOrdersWS streams the active order board of the caller's cafe. The
// token travels as a query parameter because browsers cannot set headers on
// websocket upgrades.
func (s *Server) OwnerOrdersWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := auth.ParseBearerToken(r.URL.Query().Get("token"))
	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil || claims.CafeID == nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	cafeID, err := parseInt64(*claims.CafeID)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	s.orderBoard.ensureStarted()
	ctx := r.Context()
	client := &wsClient{conn: conn}
	unsubscribe := s.orderBoard.subscribe(fmt.Sprint(cafeID), client)
	defer unsubscribe()

	// Initial snapshot so the board renders before the first poll tick.
	if orders, fetchErr := s.orderBoard.fetchActiveOrders(ctx, cafeID); fetchErr == nil {
		_ = client.writeJSON(map[string]any{"type": "orders.state", "data": orders})
	}

	// Pings keep half-open connections from lingering in the subscriber set;
	// a missed pong trips the read deadline and ends the read goroutine.
	heartbeat := heartbeatInterval(s.Config.WSHeartbeatInterval)
	readWait := heartbeat * 2
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(heartbeat)
	defer pingTicker.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func heartbeatInterval(configured time.Duration) time.Duration {
	if configured <= 0 {
		return 30 * time.Second
	}
	return configured
}

func parseInt64(value string) (int64, error) {
	var out int64
	_, err := fmt.Sscan(strings.TrimSpace(value), &out)
	return out, err
}
