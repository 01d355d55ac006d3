package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/poller"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/service"
	"github.com/vibast-solutions/ms-go-payment-confirmations/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type grpcStatusSource struct {
	mu    sync.Mutex
	calls int
}

func (s *grpcStatusSource) CheckoutStatus(_ context.Context, _ string, sessionID string) (*entity.CheckoutStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &entity.CheckoutStatus{SessionID: sessionID, Status: entity.CheckoutStatusComplete, PaymentStatus: entity.PaymentStatusPaid}, nil
}

type grpcRefresher struct{}

func (grpcRefresher) Refresh(context.Context, string) (*entity.User, error) {
	return &entity.User{ID: "u1", SubscriptionStatus: entity.SubscriptionStatusActive}, nil
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	p := poller.New(poller.Config{MaxAttempts: 5, Interval: time.Millisecond}, &grpcStatusSource{}, grpcRefresher{}, poller.WithTokenCheck(nil))
	tr := poller.NewTracker(p, nil, time.Minute)
	svc := service.NewConfirmationService(tr, nil, config.ConfirmationConfig{Retention: time.Minute})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoveryInterceptor(),
		RequestIDInterceptor(),
		LoggingInterceptor(),
		BearerTokenInterceptor(StartConfirmationMethod),
	))
	RegisterConfirmationServer(srv, NewServer(svc))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		tr.Shutdown()
	})
	return NewClient(conn)
}

func withToken(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer tok")
}

func TestStartConfirmationRequiresToken(t *testing.T) {
	client := newTestClient(t)

	_, err := client.StartConfirmation(context.Background(), "cs_1")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestStartConfirmationValidatesSessionID(t *testing.T) {
	client := newTestClient(t)

	_, err := client.StartConfirmation(withToken(context.Background()), "")
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestStartThenGetConfirmation(t *testing.T) {
	client := newTestClient(t)
	ctx := withToken(context.Background())

	started, err := client.StartConfirmation(ctx, "cs_1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if started.GetFields()["session_id"].GetStringValue() != "cs_1" {
		t.Fatalf("unexpected start response: %v", started)
	}

	deadline := time.Now().Add(time.Second)
	for {
		got, err := client.GetConfirmation(ctx, "cs_1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.GetFields()["state"].GetStringValue() == "succeeded" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("confirmation did not succeed: %v", got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGetConfirmationNotFound(t *testing.T) {
	client := newTestClient(t)

	_, err := client.GetConfirmation(context.Background(), "cs_unknown")
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
