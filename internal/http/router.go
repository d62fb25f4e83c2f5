package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"cafe-ops-service/internal/config"
	"cafe-ops-service/internal/http/handlers"
	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/queue"
	"cafe-ops-service/internal/storage"
	"cafe-ops-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, store *storage.ObjectStore, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{DB: db, Logger: logger, Config: cfg, Queue: queueClient, Store: store}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.AuthLogin)
		r.Post("/logout", h.AuthLogout)
	})

	r.Route("/api/owner", func(r chi.Router) {
		r.Use(middleware.OwnerAuth(db, cfg.JWTSecret))

		r.Get("/dashboard", h.DashboardStats)

		r.Get("/ingredients", h.IngredientsList)
		r.Post("/ingredients", h.IngredientsCreate)
		r.Get("/ingredients/{id}", h.IngredientsDetail)
		r.Patch("/ingredients/{id}", h.IngredientsUpdate)
		r.Delete("/ingredients/{id}", h.IngredientsDelete)
		r.Post("/ingredients/{id}/adjust-stock", h.IngredientsAdjustStock)

		r.Get("/stock/overview", h.StockOverview)
		r.Get("/stock/predictions", h.StockPredictionsList)
		r.Get("/stock/predictions/{id}", h.StockPredictionDetail)
		r.Get("/stock/reorder-recommendations", h.ReorderRecommendations)
		r.Post("/stock/report", h.StockReport)
		r.Get("/stock/reports", h.StockReportsList)

		r.Get("/menu", h.MenuList)
		r.Post("/menu", h.MenuCreate)
		r.Patch("/menu/{id}", h.MenuUpdate)
		r.Delete("/menu/{id}", h.MenuDelete)
		r.Get("/menu/{id}/recipe", h.RecipeGet)
		r.Put("/menu/{id}/recipe", h.RecipeUpdate)
		r.Post("/menu/{id}/price-suggestion", h.PriceSuggestion)
		r.Get("/menu/price-review", h.PriceReview)

		r.Get("/orders", h.OrdersList)
		r.Post("/orders", h.OrdersCreate)
		r.Get("/orders/{id}", h.OrdersDetail)
		r.Patch("/orders/{id}/status", h.OrderUpdateStatus)

		r.Get("/payments/pending", h.PaymentsPending)
		r.Post("/payments/{id}/verify", h.PaymentVerify)
		r.Post("/payments/{id}/reject", h.PaymentReject)

		r.Get("/employees", h.EmployeesList)
		r.Post("/employees", h.EmployeesCreate)
		r.Patch("/employees/{id}", h.EmployeesUpdate)
		r.Delete("/employees/{id}", h.EmployeesDelete)

		r.Get("/shifts/templates", h.ShiftTemplatesList)
		r.Post("/shifts/templates", h.ShiftTemplatesCreate)
		r.Delete("/shifts/templates/{id}", h.ShiftTemplatesDelete)
		r.Post("/shifts/assign", h.ShiftAssign)
		r.Get("/shifts/schedule", h.ShiftSchedule)

		r.Get("/attendance", h.AttendanceList)
		r.Post("/attendance/clock-in", h.AttendanceClockIn)
		r.Post("/attendance/clock-out", h.AttendanceClockOut)

		r.Post("/payroll/runs", h.PayrollRun)
		r.Get("/payroll/runs", h.PayrollRunsList)
		r.Get("/payroll/runs/{id}", h.PayrollRunDetail)
	})

	r.Route("/api/cron", func(r chi.Router) {
		r.Use(middleware.CronAuth(cfg.CronSecret))
		r.Post("/stock/snapshot", h.CronStockSnapshot)
	})

	if wsServer != nil {
		r.Get("/ws/owner/orders", wsServer.OwnerOrdersWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
