package api

import (
	"context"
	"errors"
	"strings"
	"time"

	bookingv1 "courtbook/internal/api/gen/booking/v1"
	"courtbook/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	permReadBookings      = "read:bookings"
	permWriteBookings     = "write:bookings"
	permReadFields        = "read:fields"
	clientKeyUnknown      = "unknown"
	requestIDMetadataKey  = "x-request-id"
	healthServicePrefix   = "/grpc.health.v1.Health/"
)

func apiKeyHeader(cfg config.APIAuthConfig) string {
	if h := strings.ToLower(strings.TrimSpace(cfg.HeaderAPIKey)); h != "" {
		return h
	}
	return apiKeyHeaderDefault
}

func extraHeader(cfg config.APIAuthConfig) string {
	if h := strings.ToLower(strings.TrimSpace(cfg.HeaderExtra)); h != "" {
		return h
	}
	return apiExtraHeaderDefault
}

// AuthInterceptor checks API keys and per-client rate limits on gRPC calls.
type AuthInterceptor struct {
	cfg     *config.APIConfig
	keys    *keyring
	limiter *clientLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		cfg:     cfg,
		keys:    newKeyring(cfg.Auth),
		limiter: newClientLimiter(cfg.RateLimit),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !a.cfg.Enabled || strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		if a.cfg.Auth.Enabled {
			if md == nil {
				return nil, status.Error(codes.Unauthenticated, "missing metadata")
			}
			_, err := a.keys.verify(first(md.Get(a.keys.apiKeyHeader)), first(md.Get(a.keys.extraHeader)),
				requiredPermission(info.FullMethod))
			if errors.Is(err, errPermissionDenied) {
				return nil, status.Error(codes.PermissionDenied, err.Error())
			}
			if err != nil {
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		if !a.limiter.allow(a.clientKey(ctx, md)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

func requiredPermission(fullMethod string) string {
	switch fullMethod {
	case bookingv1.BookingService_RequestBooking_FullMethodName,
		bookingv1.BookingService_Transition_FullMethodName,
		bookingv1.BookingService_SetPayment_FullMethodName:
		return permWriteBookings
	case bookingv1.BookingService_ListActive_FullMethodName,
		bookingv1.BookingService_GetBooking_FullMethodName,
		bookingv1.BookingService_TotalAmount_FullMethodName:
		return permReadBookings
	default:
		return ""
	}
}

func (a *AuthInterceptor) clientKey(ctx context.Context, md metadata.MD) string {
	if apiKey := first(md.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return apiKey
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// LoggingUnaryInterceptor logs every call with a request id, echoed back in
// the response header.
func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)

		remote := clientKeyUnknown
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		event := base.Info()
		if status.Code(err) == codes.Internal {
			event = base.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Str("remote", remote).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		return resp, err
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if id := first(md.Get(requestIDMetadataKey)); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
