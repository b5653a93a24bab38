package api

import (
	"context"
	"testing"

	bookingv1 "courtbook/internal/api/gen/booking/v1"
	"courtbook/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestAuthInterceptor(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "valid-key", Extra: "valid-extra", Permissions: []string{"read:bookings"}},
			},
		},
		RateLimit: config.APIRateLimitConfig{
			RPS:   100,
			Burst: 200,
		},
	}

	auth := NewAuthInterceptor(&cfg)
	interceptor := auth.Unary()

	handler := func(_ context.Context, req any) (any, error) {
		return "ok", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: bookingv1.BookingService_ListActive_FullMethodName}

	t.Run("Success", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		resp, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("MissingHeaders", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs())
		_, err := interceptor(ctx, "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "invalid", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "invalid")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		badInfo := &grpc.UnaryServerInfo{FullMethod: bookingv1.BookingService_RequestBooking_FullMethodName}
		_, err := interceptor(ctx, "req", badInfo, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})
}

func TestAuthInterceptor_RateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth:    config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{
			RPS:   1,
			Burst: 1,
		},
	}

	auth := NewAuthInterceptor(&cfg)
	interceptor := auth.Unary()
	info := &grpc.UnaryServerInfo{FullMethod: "test"}
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key1"))

	// First request - ok
	_, err := interceptor(ctx, "req", info, handler)
	assert.NoError(t, err)

	// Second request - blocked
	_, err = interceptor(ctx, "req", info, handler)
	assert.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	interceptor := LoggingUnaryInterceptor(nil)
	handler := func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "test"}

	// Test basic execution
	resp, err := interceptor(context.Background(), "req", info, handler)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{bookingv1.BookingService_RequestBooking_FullMethodName, "write:bookings"},
		{bookingv1.BookingService_Transition_FullMethodName, "write:bookings"},
		{bookingv1.BookingService_SetPayment_FullMethodName, "write:bookings"},
		{bookingv1.BookingService_ListActive_FullMethodName, "read:bookings"},
		{bookingv1.BookingService_GetBooking_FullMethodName, "read:bookings"},
		{bookingv1.BookingService_TotalAmount_FullMethodName, "read:bookings"},
		{"other", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, requiredPermission(tt.method))
	}
}

func TestHasPermission(t *testing.T) {
	client := config.APIClientKey{Permissions: []string{" read:bookings "}}
	assert.True(t, hasPermission(client, "read:bookings"))
	assert.False(t, hasPermission(client, "write:bookings"))
	assert.True(t, hasPermission(client, ""))
	assert.True(t, hasPermission(config.APIClientKey{}, "write:bookings"))
}

func TestKeyring_Verify(t *testing.T) {
	keys := newKeyring(config.APIAuthConfig{
		HeaderAPIKey: " X-Client-Key ",
		APIKeys:      []config.APIClientKey{{Key: "k", Extra: "e", Name: "desk", Permissions: []string{"read:fields"}}},
	})
	assert.Equal(t, "x-client-key", keys.apiKeyHeader)
	assert.Equal(t, apiExtraHeaderDefault, keys.extraHeader)

	client, err := keys.verify("k", "e", "read:fields")
	require.NoError(t, err)
	assert.Equal(t, "desk", client.Name)

	_, err = keys.verify("", "e", "")
	assert.ErrorIs(t, err, errMissingCredentials)
	_, err = keys.verify("x", "e", "")
	assert.ErrorIs(t, err, errInvalidAPIKey)
	_, err = keys.verify("k", "x", "")
	assert.ErrorIs(t, err, errInvalidExtra)
	_, err = keys.verify("k", "e", "write:bookings")
	assert.ErrorIs(t, err, errPermissionDenied)
}

func TestClientLimiter(t *testing.T) {
	unlimited := newClientLimiter(config.APIRateLimitConfig{})
	for i := 0; i < 20; i++ {
		assert.True(t, unlimited.allow("a"))
	}

	lim := newClientLimiter(config.APIRateLimitConfig{RPS: 1, Burst: 2})
	assert.True(t, lim.allow("a"))
	assert.True(t, lim.allow("a"))
	assert.False(t, lim.allow("a"))
	assert.True(t, lim.allow("b"))
}
