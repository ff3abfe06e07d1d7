package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"

	"scooby-agent/internal/usecase"
)

const maxBodyBytes = 1 << 20

type RouterOptions struct {
	// JWTSecret enables bearer identities. Requests without an Authorization
	// header stay anonymous.
	JWTSecret   string
	CORSOrigins []string
}

type ctxKey struct{}

// Router serves the same endpoints as Handle over net/http.
func (h *Handler) Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", correlationHeader},
		ExposedHeaders: []string{correlationHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, correlationID(r.Header.Get), map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(bearerIdentity(opts.JWTSecret))
		r.Post("/chat/message", func(w http.ResponseWriter, r *http.Request) {
			corrID := correlationID(r.Header.Get)
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput)})
				return
			}
			status, body := h.sendMessage(r.Context(), corrID, raw, tokenUser(r.Context()))
			writeJSON(w, status, corrID, body)
		})
		r.Get("/chat/history", func(w http.ResponseWriter, r *http.Request) {
			corrID := correlationID(r.Header.Get)
			status, body := h.history(r.Context(), corrID, r.URL.Query().Get, tokenUser(r.Context()))
			writeJSON(w, status, corrID, body)
		})
		r.Get("/chat/conversations", func(w http.ResponseWriter, r *http.Request) {
			corrID := correlationID(r.Header.Get)
			status, body := h.conversations(r.Context(), corrID, r.URL.Query().Get, tokenUser(r.Context()))
			writeJSON(w, status, corrID, body)
		})
		r.Post("/users/wallet", func(w http.ResponseWriter, r *http.Request) {
			corrID := correlationID(r.Header.Get)
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput)})
				return
			}
			status, body := h.resolveWallet(r.Context(), corrID, raw)
			writeJSON(w, status, corrID, body)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, correlationID(r.Header.Get), errorResponse{Error: errorNotFound})
	})
	return r
}

// bearerIdentity puts the token's sub claim on the request context. An
// invalid token is rejected; a missing one passes through.
func bearerIdentity(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if secret == "" || auth == "" {
				next.ServeHTTP(w, r)
				return
			}
			corrID := correlationID(r.Header.Get)
			if !strings.HasPrefix(auth, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, corrID, errorResponse{Error: errorUnauthorized})
				return
			}
			sub, err := validateToken(strings.TrimPrefix(auth, "Bearer "), secret)
			if err != nil {
				slog.WarnContext(r.Context(), "rejected bearer token", "correlation_id", corrID, "err", err)
				writeJSON(w, http.StatusUnauthorized, corrID, errorResponse{Error: errorUnauthorized})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sub)))
		})
	}
}

func validateToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sub) == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

func tokenUser(ctx context.Context) string {
	sub, _ := ctx.Value(ctxKey{}).(string)
	return sub
}

func writeJSON(w http.ResponseWriter, status int, corrID string, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(correlationHeader, corrID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "correlation_id", corrID, "err", err)
	}
}
