package middlewares

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxClientIPKey  ctxKey = "client_ip"
)

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto, o "" si no hay.
func GetRequestID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return s
	}
	return ""
}

// WithRealIP resuelve la IP del cliente una vez por request. X-Forwarded-For
// sólo se lee si la conexión viene de un proxy en trusted, y se toma la
// entrada más a la derecha que no sea un proxy confiable.
func WithRealIP(trusted []netip.Prefix) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxClientIPKey, ip)))
		})
	}
}

// ClientIP devuelve la IP resuelta por WithRealIP. Sin ese middleware usa
// RemoteAddr e ignora X-Forwarded-For.
func ClientIP(r *http.Request) string {
	if s, ok := r.Context().Value(ctxClientIPKey).(string); ok && s != "" {
		return s
	}
	return remoteHost(r)
}

func resolveClientIP(r *http.Request, trusted []netip.Prefix) string {
	remote := remoteHost(r)
	if !isTrusted(remote, trusted) {
		return remote
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(hops[i])
		if ip != "" && !isTrusted(ip, trusted) {
			return ip
		}
	}
	return remote
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
