package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gestaozabele/identidade/internal/auth"
	"github.com/gestaozabele/identidade/internal/principal"
)

type contextKey string

const contextKeyPrincipal contextKey = "principal"

// Auth valida o JWT de acesso e injeta o principal extraído no contexto.
// Requisições sem token seguem com principal anônimo; handlers que exigem
// autenticação falham no estágio de principal do pipeline.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				next.ServeHTTP(w, r.WithContext(SetPrincipal(r.Context(), principal.Info{})))
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				writeAuthError(w, "token inválido")
				return
			}

			info := principal.Extract(claims)
			next.ServeHTTP(w, r.WithContext(SetPrincipal(r.Context(), info)))
		})
	}
}

// RequireAuth bloqueia requisições com principal anônimo antes do handler.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetPrincipal(r.Context()).Authenticated {
			writeAuthError(w, "token ausente")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetPrincipal grava o principal no contexto.
func SetPrincipal(ctx context.Context, info principal.Info) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, info)
}

// GetPrincipal recupera o principal do contexto (zero = anônimo).
func GetPrincipal(ctx context.Context) principal.Info {
	info, _ := ctx.Value(contextKeyPrincipal).(principal.Info)
	return info
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    "AUTH",
			"message": message,
		},
	})
}
