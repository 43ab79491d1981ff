package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/tinyshop/internal/chat"
	"github.com/hitoshi/tinyshop/internal/middleware"
	"github.com/hitoshi/tinyshop/internal/model"
)

// ChatHistoryReader はチャット履歴の取得に必要なインターフェース。
type ChatHistoryReader interface {
	History(ctx context.Context, accountID, peerID int64) ([]*model.ChatMessage, error)
}

// ChatHandlerConfig はチャットハンドラーの設定。
type ChatHandlerConfig struct {
	AllowedOrigin string
	Client        chat.Options
}

// ChatHandler はWebSocketチャットと履歴取得のHTTPハンドラー。
type ChatHandler struct {
	hub      *chat.Hub
	history  ChatHistoryReader
	verifier middleware.TokenVerifier
	upgrader *websocket.Upgrader
	opts     chat.Options
}

// NewChatHandler はChatHandlerを生成する。
// historyがnilの場合はhubから履歴を取得する。
func NewChatHandler(hub *chat.Hub, history ChatHistoryReader, verifier middleware.TokenVerifier, config ChatHandlerConfig) *ChatHandler {
	if history == nil {
		history = hub
	}
	return &ChatHandler{
		hub:      hub,
		history:  history,
		verifier: verifier,
		upgrader: chat.NewUpgrader(config.AllowedOrigin),
		opts:     config.Client,
	}
}

type chatMessageResponse struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	RoomID     string    `json:"room_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Connect はトークンを検証してからWebSocketにアップグレードする。
// ブラウザのWebSocket APIはヘッダーを付与できないため、?token=も受け付ける。
// GET /ws/chat
func (h *ChatHandler) Connect(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.BearerToken(r)
	}
	if token == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	claim, err := h.verifier.Verify(token)
	if err != nil || claim == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	// Upgradeは失敗時に自らエラーレスポンスを書き込む
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed",
			slog.Int64("account_id", claim.AccountID),
			slog.String("error", err.Error()),
		)
		return
	}

	chat.NewClient(h.hub, conn, claim.AccountID, h.opts).Run(r.Context())
}

// History は相手とのチャット履歴を送信順に返す。
// GET /api/chats/{peerID}/messages
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	claim, ok := requireClaim(w, r)
	if !ok {
		return
	}
	peerID, ok := parseIDParam(w, r, "peerID")
	if !ok {
		return
	}

	messages, err := h.history.History(r.Context(), claim.AccountID, peerID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res := make([]chatMessageResponse, 0, len(messages))
	for _, m := range messages {
		res = append(res, chatMessageResponse{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			RoomID:     m.RoomID,
			Body:       m.Body,
			CreatedAt:  m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, res)
}
