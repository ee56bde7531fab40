package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/oauthgate/internal/observability/logger"
)

// statusRecorder captura el status code y bytes escritos de la respuesta.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// WithLogging inyecta un logger "scoped" (request_id, method, path, client_ip) en el
// contexto y loguea el fin de cada request con nivel según el status.
// Solo se loguea el path: la query del callback lleva code y state.
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := logger.L().With(
				logger.RequestID(GetRequestID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.ClientIP(ClientIP(r)),
			)
			ctx := logger.ToContext(r.Context(), reqLog)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(ctx))

			status, bytes, dur := logger.Status(rec.status), logger.Bytes(rec.bytes), logger.DurationMs(time.Since(start))
			switch {
			case rec.status >= 500:
				reqLog.Error("request failed", status, bytes, dur)
			case rec.status >= 400:
				reqLog.Warn("request completed with client error", status, bytes, dur)
			default:
				reqLog.Info("request completed", status, bytes, dur)
			}
		})
	}
}
