package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger logs one line per request. It also places a request-scoped logger
// in the context, retrievable with zerolog.Ctx, which later middleware may
// enrich (Auth adds user_id).
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := log.With().Str("request_id", GetRequestID(r.Context())).Logger()
			ctx := reqLog.WithContext(r.Context())
			rec := record(w)

			next.ServeHTTP(rec, r.WithContext(ctx))

			l := zerolog.Ctx(ctx)
			var event *zerolog.Event
			switch {
			case rec.status >= http.StatusInternalServerError:
				event = l.Error()
			case rec.status >= http.StatusBadRequest:
				event = l.Warn()
			default:
				event = l.Info()
			}

			if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
				event = event.
					Str("trace_id", sc.TraceID().String()).
					Str("span_id", sc.SpanID().String())
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", rec.status).
				Int64("bytes", rec.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}
