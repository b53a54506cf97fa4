package igrpc

import (
	"context"
	"errors"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service key reported alongside the overall "" status.
const ServiceName = "social-service"

const (
	defaultCheckInterval = 10 * time.Second
	pingTimeout          = 2 * time.Second
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StartGRPCServer serves grpc.health.v1 on addr. The status follows database
// reachability and the server stops gracefully when ctx is cancelled.
func StartGRPCServer(ctx context.Context, addr string, db Pinger, logger *zap.Logger) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return Serve(ctx, lis, db, defaultCheckInterval, logger), nil
}

func Serve(ctx context.Context, lis net.Listener, db Pinger, interval time.Duration, logger *zap.Logger) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)

	checkDatabase(ctx, healthSrv, db, logger)
	go watchDatabase(ctx, healthSrv, db, interval, logger)

	go func() {
		<-ctx.Done()
		healthSrv.Shutdown()
		srv.GracefulStop()
	}()

	go func() {
		logger.Info("gRPC health server listening", zap.String("addr", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	return srv
}

func watchDatabase(ctx context.Context, healthSrv *health.Server, db Pinger, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkDatabase(ctx, healthSrv, db, logger)
		}
	}
}

func checkDatabase(ctx context.Context, healthSrv *health.Server, db Pinger, logger *zap.Logger) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := db.PingContext(pingCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("database ping failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	healthSrv.SetServingStatus("", status)
	healthSrv.SetServingStatus(ServiceName, status)
}
