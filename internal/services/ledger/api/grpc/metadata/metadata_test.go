package metadata

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestFirstMetadataValue(t *testing.T) {
	md := metadata.MD{
		"X-EventLedger-Locale": {"\x01bad", "pt-BR"},
	}
	if got := FirstMetadataValue(md, LocaleHeader); got != "pt-BR" {
		t.Fatalf("FirstMetadataValue = %q, want pt-BR", got)
	}
	if got := FirstMetadataValue(nil, LocaleHeader); got != "" {
		t.Fatalf("FirstMetadataValue(nil) = %q", got)
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(LocaleHeader, "pt-BR"))
	if got := LocaleFromContext(ctx); got != "pt-BR" {
		t.Fatalf("locale = %q", got)
	}
	if got := LocaleFromContext(context.Background()); got != "" {
		t.Fatalf("locale without metadata = %q", got)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(nil, "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("request id = %q", got)
	}
	if got := RequestIDFromContext(nil); got != "" {
		t.Fatalf("request id from nil = %q", got)
	}
}

func TestUnaryServerInterceptorGeneratorFailure(t *testing.T) {
	interceptor := UnaryServerInterceptor(func() (string, error) {
		return "", errors.New("boom")
	})
	called := false
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x"},
		func(ctx context.Context, req any) (any, error) {
			called = true
			return nil, nil
		})
	if err == nil {
		t.Fatal("expected error when id generation fails")
	}
	if called {
		t.Fatal("handler should not run")
	}
}
