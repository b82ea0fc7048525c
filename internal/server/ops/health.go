// Package ops runs the operational gRPC listener: health checks that follow
// database reachability, plus optional reflection for debugging.
package ops

import (
	"context"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the HTTP API.
const ServiceName = "speedcube.API"

// DefaultInterval is how often the database is pinged.
const DefaultInterval = 10 * time.Second

// Pinger reports backend reachability. *postgres.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	pinger   Pinger
	log      *zap.Logger
	clock    clockwork.Clock
	interval time.Duration
	reflect  bool
}

// Option customizes a Server.
type Option func(*Server)

func WithClock(c clockwork.Clock) Option  { return func(s *Server) { s.clock = c } }
func WithInterval(d time.Duration) Option { return func(s *Server) { s.interval = d } }
func WithLogger(l *zap.Logger) Option     { return func(s *Server) { s.log = l } }

// WithReflection registers the gRPC reflection service (dev only).
func WithReflection() Option { return func(s *Server) { s.reflect = true } }

// New builds the ops server. The health status starts NOT_SERVING until the first ping.
func New(p Pinger, opts ...Option) *Server {
	s := &Server{
		health:   health.NewServer(),
		pinger:   p,
		log:      zap.NewNop(),
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
	}
	for _, o := range opts {
		o(s)
	}
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(s.log),
		LoggingUnary(s.log),
	))
	healthpb.RegisterHealthServer(s.grpc, s.health)
	if s.reflect {
		reflection.Register(s.grpc)
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Refresh pings once and publishes the resulting status.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	pctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()
	if err := s.pinger.Ping(pctx); err != nil {
		s.log.Warn("health: ping failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.setStatus(st)
	return st
}

// Watch refreshes the status every interval until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	s.Refresh(ctx)
	t := s.clock.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			s.Refresh(ctx)
		}
	}
}

// Serve blocks serving gRPC on lis.
func (s *Server) Serve(lis net.Listener) error { return s.grpc.Serve(lis) }

// Shutdown marks everything NOT_SERVING and stops gracefully, forcing a stop when ctx expires.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}
