package api

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName - имя сервиса в grpc_health_v1
const ServiceName = "backoffice.Inventory"

// HealthReporter публикует доступность хранилища через grpc_health_v1
type HealthReporter struct {
	server   *health.Server
	check    HealthCheck
	interval time.Duration
}

// NewHealthReporter создает репортер; interval <= 0 = 15s
func NewHealthReporter(check HealthCheck, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HealthReporter{server: health.NewServer(), check: check, interval: interval}
}

// Register подключает health сервис к gRPC серверу
func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Refresh проверяет хранилище один раз и обновляет статус
func (h *HealthReporter) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.check(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️ gRPC health: хранилище недоступно")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Run обновляет статус до отмены ctx, затем переводит сервис в NOT_SERVING
func (h *HealthReporter) Run(ctx context.Context) {
	h.Refresh(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}
