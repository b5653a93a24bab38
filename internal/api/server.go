package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	bookingv1 "courtbook/internal/api/gen/booking/v1"
	"courtbook/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer serves BookingService plus the standard health service.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, core BookingCore, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	srv, err := NewGRPCServerWithListener(cfg, lis, core, logger)
	if err != nil {
		_ = lis.Close()
		return nil, err
	}
	return srv, nil
}

// NewGRPCServerWithListener serves on an existing listener.
func NewGRPCServerWithListener(cfg *config.APIConfig, lis net.Listener, core BookingCore, logger *zerolog.Logger) (*GRPCServer, error) {
	opts, err := serverOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	srv := grpc.NewServer(opts...)
	bookingv1.RegisterBookingServiceServer(srv, NewBookingService(core))

	hs := health.NewServer()
	hs.SetServingStatus(bookingv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "grpc").Logger()
	}
	return &GRPCServer{server: srv, health: hs, listener: lis, log: l}, nil
}

func serverOptions(cfg *config.APIConfig, logger *zerolog.Logger) ([]grpc.ServerOption, error) {
	auth := NewAuthInterceptor(cfg)
	opts := []grpc.ServerOption{grpc.UnaryInterceptor(ChainUnaryInterceptors(
		RecoveryUnaryInterceptor(logger),
		LoggingUnaryInterceptor(logger),
		auth.Unary(),
	))}

	if !cfg.GRPC.TLS.Enabled {
		return opts, nil
	}
	tlsCfg, err := buildTLSConfig(cfg.GRPC.TLS)
	if err != nil {
		return nil, err
	}
	return append(opts, grpc.Creds(credentials.NewTLS(tlsCfg))), nil
}

func buildTLSConfig(cfg config.APITLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("grpc tls enabled but cert_file/key_file not set")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load grpc tls keypair: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.RequireClientCert {
		if cfg.ClientCAFile == "" {
			return nil, fmt.Errorf("grpc tls require_client_cert=true but client_ca_file not set")
		}
		caPEM, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("read client_ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse client_ca_file PEM")
		}
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		tlsCfg.ClientCAs = pool
	}

	return tlsCfg, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

// Shutdown flips health to NOT_SERVING and drains in-flight calls until ctx
// expires.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
	}
}
