// Package handler exposes the chat service over API Gateway (Lambda) and a
// plain net/http router for local runs. Both transports share request
// decoding, error mapping and the JSON response shapes.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"scooby-agent/internal/domain"
	"scooby-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type ChatUseCase interface {
	Send(ctx context.Context, in usecase.SendInput) (usecase.SendOutput, error)
	History(ctx context.Context, conversationID, userID string) ([]domain.ConversationTurn, error)
	Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	ResolveWallet(ctx context.Context, walletAddress string) (domain.Identity, error)
}

type Handler struct {
	uc ChatUseCase
}

func NewHandler(uc ChatUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

type messageRequest struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversation_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	WalletAddress  string         `json:"wallet_address,omitempty"`
	Intent         string         `json:"intent,omitempty"`
	Params         usecase.Params `json:"params,omitempty"`
}

type messageResponse struct {
	Reply          string `json:"reply"`
	Data           any    `json:"data,omitempty"`
	ConversationID string `json:"conversation_id"`
	Intent         string `json:"intent"`
}

type historyItem struct {
	MessageID    int64     `json:"message_id"`
	UserQuestion string    `json:"user_question"`
	AIAnswer     string    `json:"ai_answer"`
	Intent       string    `json:"intent"`
	CreatedAt    time.Time `json:"created_at"`
}

type walletRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const (
	errorNotFound     = "NOT_FOUND"
	errorUnauthorized = "UNAUTHORIZED"
)

// Handle is the Lambda entrypoint for API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(func(k string) string { return headerValue(req.Headers, k) })
	query := func(k string) string { return req.QueryStringParameters[k] }

	path := strings.TrimRight(req.Path, "/")
	var status int
	var body any
	switch {
	case req.HTTPMethod == http.MethodPost && path == "/chat/message":
		status, body = h.sendMessage(ctx, corrID, []byte(req.Body), "")
	case req.HTTPMethod == http.MethodGet && path == "/chat/history":
		status, body = h.history(ctx, corrID, query, "")
	case req.HTTPMethod == http.MethodGet && path == "/chat/conversations":
		status, body = h.conversations(ctx, corrID, query, "")
	case req.HTTPMethod == http.MethodPost && path == "/users/wallet":
		status, body = h.resolveWallet(ctx, corrID, []byte(req.Body))
	case req.HTTPMethod == http.MethodGet && path == "/health":
		status, body = http.StatusOK, map[string]string{"status": "ok"}
	default:
		status, body = http.StatusNotFound, errorResponse{Error: errorNotFound}
	}
	return jsonResponse(status, corrID, body), nil
}

func (h *Handler) sendMessage(ctx context.Context, corrID string, raw []byte, tokenUser string) (int, any) {
	var req messageRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "correlation_id", corrID, "err", err)
		return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}
	}
	userID := req.UserID
	if tokenUser != "" {
		userID = tokenUser
	}
	out, err := h.uc.Send(ctx, usecase.SendInput{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		UserID:         userID,
		WalletAddress:  req.WalletAddress,
		Intent:         req.Intent,
		Params:         req.Params,
	})
	if err != nil {
		return errorResult(ctx, corrID, err)
	}
	return http.StatusOK, messageResponse{
		Reply:          out.Reply,
		Data:           out.Data,
		ConversationID: out.ConversationID,
		Intent:         string(out.Intent),
	}
}

func (h *Handler) history(ctx context.Context, corrID string, query func(string) string, tokenUser string) (int, any) {
	userID := query("user_id")
	if tokenUser != "" {
		userID = tokenUser
	}
	turns, err := h.uc.History(ctx, query("conversation_id"), userID)
	if err != nil {
		return errorResult(ctx, corrID, err)
	}
	items := make([]historyItem, 0, len(turns))
	for _, t := range turns {
		items = append(items, historyItem{
			MessageID:    t.MessageID,
			UserQuestion: t.UserQuestion,
			AIAnswer:     t.AIAnswer,
			Intent:       string(t.Intent),
			CreatedAt:    t.CreatedAt,
		})
	}
	return http.StatusOK, items
}

func (h *Handler) conversations(ctx context.Context, corrID string, query func(string) string, tokenUser string) (int, any) {
	userID := query("user_id")
	if tokenUser != "" {
		userID = tokenUser
	}
	out, err := h.uc.Conversations(ctx, userID)
	if err != nil {
		return errorResult(ctx, corrID, err)
	}
	return http.StatusOK, out
}

func (h *Handler) resolveWallet(ctx context.Context, corrID string, raw []byte) (int, any) {
	var req walletRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "correlation_id", corrID, "err", err)
		return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}
	}
	id, err := h.uc.ResolveWallet(ctx, req.WalletAddress)
	if err != nil {
		return errorResult(ctx, corrID, err)
	}
	return http.StatusOK, id
}

func errorResult(ctx context.Context, corrID string, err error) (int, any) {
	status, code := statusFor(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "request failed", "correlation_id", corrID, "code", code, "err", err)
	return status, errorResponse{Error: code}
}

func statusFor(err error) (int, string) {
	var uerr *usecase.Error
	if !errors.As(err, &uerr) {
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
	switch uerr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, string(uerr.Code)
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, string(uerr.Code)
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, string(uerr.Code)
	default:
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
}

func jsonResponse(status int, corrID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"` + string(usecase.ErrorInternal) + `"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(raw),
	}
}

// headerValue looks a header up case-insensitively; API Gateway passes
// headers through with the client's casing.
func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func correlationID(header func(string) string) string {
	if v := strings.TrimSpace(header(correlationHeader)); v != "" {
		return v
	}
	return uuid.NewString()
}
