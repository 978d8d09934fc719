package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docbot/internal/middleware"
)

// HandlerFunc handles one chat update.
type HandlerFunc func(ctx context.Context, msg Message) error

// Middleware wraps a HandlerFunc.
type Middleware func(HandlerFunc) HandlerFunc

// Chain applies mws so that the first one is outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Logging tags the update with a flow id and puts a scoped logger on ctx.
func Logging(l zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) error {
			flowID := uuid.NewString()
			log := l.With().
				Str("flow_id", flowID).
				Int64("user_id", msg.UserID).
				Int64("chat_id", msg.ChatID).
				Logger()
			ctx = log.WithContext(middleware.WithRequestID(ctx, flowID))

			start := time.Now()
			err := next(ctx, msg)
			ev := log.Debug()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev.Bool("photo", msg.PhotoFileID != "").Dur("took", time.Since(start)).Msg("bot: update handled")
			return err
		}
	}
}

// Recover turns a panic in the handler into an error.
func Recover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					zerolog.Ctx(ctx).Error().Bytes("stack", debug.Stack()).Msgf("bot: panic: %v", r)
					err = fmt.Errorf("bot: panic: %v", r)
				}
			}()
			return next(ctx, msg)
		}
	}
}

// RateLimit drops updates from users over their budget, telling them once
// per dropped update.
func RateLimit(l *middleware.KeyedLimiter, r Replier) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) error {
			if l.Allow(strconv.FormatInt(msg.UserID, 10)) {
				return next(ctx, msg)
			}
			zerolog.Ctx(ctx).Info().Msg("bot: rate limited")
			if r == nil {
				return nil
			}
			return r.SendText(ctx, msg.ChatID, "Too many requests, slow down a little.")
		}
	}
}
