package handlers

import (
	"cafe-ops-service/internal/config"
	"cafe-ops-service/internal/queue"
	"cafe-ops-service/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Handler struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
	Queue  *queue.Client
	Store  *storage.ObjectStore
}
