package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/prato-delivery/internal/domain/auth"
	"github.com/xenking/prato-delivery/pkg/httpmiddleware"
)

// apiKeyHeader carries the caller's API key.
const apiKeyHeader = "X-API-Key"

// APIKeyAuth authenticates requests via HMAC-SHA256 hashed API keys and
// attaches the resolved Actor to the request context. Requests without a
// valid key are rejected with 401 before reaching any handler.
func APIKeyAuth(apikeys auth.Repository, pepper []byte) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(apiKeyHeader)
			if key == "" {
				// Browsers cannot set custom headers on WebSocket handshakes,
				// so the key may arrive as a query parameter there.
				key = r.URL.Query().Get("api_key")
			}
			if key == "" {
				respondError(w, r, http.StatusUnauthorized, "missing API key")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				respondError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			// Constant-time comparison guards against timing side-channels
			// even though the lookup already succeeded: the stored hash could
			// differ from what we computed if the repository returns a stale
			// or wrong row.
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				respondError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			actor := auth.Actor{
				ID:    info.ID,
				Name:  info.Name,
				Phone: info.Phone,
				Role:  info.Role,
			}
			ctx := auth.WithActor(r.Context(), actor)
			ctx = zctx.With(ctx,
				zap.String("actor", actor.Name),
				zap.String("role", string(actor.Role)),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// actor pulls the verified actor out of the context, writing a 401 when the
// security middleware did not run.
func actor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	a, ok := auth.ActorFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
	}
	return a, ok
}
