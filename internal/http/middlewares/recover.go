package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/oauthgate/internal/http/helpers"
	"github.com/dropDatabas3/oauthgate/internal/observability/logger"
)

// WithRecover captura panics y devuelve un 500 en lugar de crashear.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.String("panic", panicString(rec)),
					)
					helpers.WriteJSON(w, http.StatusInternalServerError, helpers.ErrorBody{Error: "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func panicString(v any) string {
	switch t := v.(type) {
	case error:
		return t.Error()
	case string:
		return t
	default:
		return "non-string panic value"
	}
}
