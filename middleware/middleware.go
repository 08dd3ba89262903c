package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obfin/openfinance/security"
	"github.com/obfin/openfinance/utils"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// InteractionIDMiddleware assigns every request a correlation id, echoed
// back in X-OF-Interaction-ID and attached to all log lines.
func InteractionIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		interactionID := r.Header.Get("X-OF-Interaction-ID")
		if interactionID == "" {
			interactionID = uuid.NewString()
		}
		w.Header().Set("X-OF-Interaction-ID", interactionID)
		ctx := utils.WithInteractionID(r.Context(), interactionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{w, http.StatusOK}

		next.ServeHTTP(rw, r)

		utils.Info(r.Context(), "request completed", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				utils.Error(r.Context(), "panic recovered", map[string]interface{}{
					"panic": err,
					"stack": string(debug.Stack()),
				})
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

type claimsContextKey struct{}

// ClaimsFrom returns the verified TPP claims for the request, if any.
func ClaimsFrom(ctx context.Context) *security.TPPClaims {
	claims, _ := ctx.Value(claimsContextKey{}).(*security.TPPClaims)
	return claims
}

// AuthMiddleware verifies the bearer token and threads the participant id
// into the request context. Every consent ownership check downstream runs
// against this identity.
func AuthMiddleware(jwtManager *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := utils.WithParticipantID(r.Context(), claims.ParticipantID)
			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware throttles per participant using its access tier.
// Unauthenticated requests share one bucket.
func RateLimitMiddleware(limiter *security.TieredRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "anonymous"
			tier := ""
			if claims := ClaimsFrom(r.Context()); claims != nil {
				key = claims.ParticipantID
				tier = claims.Tier
			}
			if !limiter.Allow(key, tier) {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
