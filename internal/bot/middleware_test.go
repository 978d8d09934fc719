package bot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"docbot/internal/middleware"
)

func TestChainOrder(t *testing.T) {
	var trace []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg Message) error {
				trace = append(trace, name)
				return next(ctx, msg)
			}
		}
	}
	h := Chain(func(context.Context, Message) error {
		trace = append(trace, "handler")
		return nil
	}, mark("a"), mark("b"))

	_ = h(context.Background(), Message{})
	if got := strings.Join(trace, ","); got != "a,b,handler" {
		t.Fatalf("trace = %s", got)
	}
}

func TestRecoverReturnsError(t *testing.T) {
	h := Chain(func(context.Context, Message) error { panic("boom") }, Recover())
	err := h(context.Background(), Message{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoggingAttachesFlowID(t *testing.T) {
	var buf bytes.Buffer
	var flowID string
	h := Chain(func(ctx context.Context, msg Message) error {
		flowID = middleware.RequestIDFromContext(ctx)
		zerolog.Ctx(ctx).Info().Msg("inner")
		return errors.New("failed")
	}, Logging(zerolog.New(&buf)))

	if err := h(context.Background(), Message{UserID: 42}); err == nil {
		t.Fatalf("error must pass through")
	}
	if flowID == "" {
		t.Fatalf("flow id missing from context")
	}
	out := buf.String()
	if strings.Count(out, flowID) != 2 || !strings.Contains(out, `"user_id":42`) {
		t.Fatalf("log = %s", out)
	}
}

func TestRateLimitMiddlewareNotifiesUser(t *testing.T) {
	replier := &fakeReplier{}
	var handled int
	h := Chain(func(context.Context, Message) error {
		handled++
		return nil
	}, RateLimit(middleware.NewKeyedLimiter(1, 1), replier))

	for i := 0; i < 3; i++ {
		if err := h(context.Background(), Message{UserID: 5}); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if handled != 1 || len(replier.texts) != 2 {
		t.Fatalf("handled = %d, notices = %d", handled, len(replier.texts))
	}
}
