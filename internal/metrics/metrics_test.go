package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRecorder(t *testing.T) {
	m := New()

	m.RuleConsidered("order", "executed")
	m.RuleConsidered("order", "executed")
	m.RuleConsidered("order", "skipped")
	m.ActionExecuted("discount", true)
	m.ActionExecuted("giveCoupon", false)
	m.StoreWriteFailed("audit")

	if got := testutil.ToFloat64(m.RulesConsidered.WithLabelValues("order", "executed")); got != 2 {
		t.Errorf("executed count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RulesConsidered.WithLabelValues("order", "skipped")); got != 1 {
		t.Errorf("skipped count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ActionsExecuted.WithLabelValues("giveCoupon", "false")); got != 1 {
		t.Errorf("failed coupon count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StoreWriteFailures.WithLabelValues("audit")); got != 1 {
		t.Errorf("audit failure count = %v, want 1", got)
	}
}

func TestRunCompleted(t *testing.T) {
	m := New()

	m.RunCompleted("order", 20*time.Millisecond, 3)

	if got := testutil.CollectAndCount(m.RunDuration); got != 1 {
		t.Errorf("RunDuration series = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(m.RunResults); got != 1 {
		t.Errorf("RunResults series = %d, want 1", got)
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	m := New()
	interceptor := m.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/rulekeeper.v1.RuleEngine/TestRule"}

	_, _ = interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	_, _ = interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "rule not found")
	})

	if got := testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues("TestRule", "OK")); got != 1 {
		t.Errorf("OK count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues("TestRule", "NotFound")); got != 1 {
		t.Errorf("NotFound count = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RuleConsidered("order", "unmatched")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !strings.Contains(string(body), "rulekeeper_rules_considered_total") {
		t.Errorf("metrics output missing rulekeeper_rules_considered_total:\n%s", body)
	}
}
