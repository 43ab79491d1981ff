package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hitoshi/tinyshop/internal/metrics"
	"github.com/hitoshi/tinyshop/internal/model"
	"github.com/hitoshi/tinyshop/internal/repository"
)

// MaxBodyLength はメッセージ本文の最大文字数。
const MaxBodyLength = 2000

// DefaultHistoryLimit は履歴取得の既定件数。
const DefaultHistoryLimit = 100

// MessageStore はチャットメッセージの永続化インターフェース。
type MessageStore interface {
	Append(ctx context.Context, msg *model.ChatMessage) error
	ListByRoom(ctx context.Context, roomID string, limit int) ([]*model.ChatMessage, error)
}

// Hub はルームの登録簿。
// muはroomsの参照・更新のみを保護し、ルーム内の処理は各ルームのロックで行う。
type Hub struct {
	store        MessageStore
	metrics      metrics.MetricsCollector
	historyLimit int

	mu    sync.Mutex
	rooms map[string]*room
}

// NewHub はHubを生成する。historyLimitが0以下の場合はDefaultHistoryLimitを使う。
func NewHub(store MessageStore, collector metrics.MetricsCollector, historyLimit int) *Hub {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Hub{
		store:        store,
		metrics:      metrics.OrNop(collector),
		historyLimit: historyLimit,
		rooms:        make(map[string]*room),
	}
}

// acquire はルームを取得または作成し、ロックした状態で返す。
// 取得とロックの間にルームが閉じられた場合は作り直す。
func (h *Hub) acquire(roomID string) *room {
	for {
		h.mu.Lock()
		r, ok := h.rooms[roomID]
		if !ok || r.closed.Load() {
			r = newRoom(roomID)
			h.rooms[roomID] = r
		}
		h.mu.Unlock()

		r.mu.Lock()
		if !r.closed.Load() {
			return r
		}
		r.mu.Unlock()
	}
}

func (h *Hub) lookup(roomID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[roomID]
}

// Join はクライアントをpeerIDとのルームに参加させる。
// 参加者本人にはjoined、既存のメンバーにはstatusを送る。
// 別のルームに参加中の場合は先に退出する。
func (h *Hub) Join(c *Client, peerID int64) error {
	if peerID <= 0 || peerID == c.AccountID {
		return model.NewInvalidChatMessageError("receiver_id must be another account")
	}

	roomID := RoomID(c.AccountID, peerID)
	if current := c.currentRoom(); current != "" && current != roomID {
		h.Leave(c)
	}

	r := h.acquire(roomID)
	defer r.mu.Unlock()

	if _, already := r.members[c]; !already {
		r.members[c] = struct{}{}
		c.setRoom(roomID)
		h.dropAll(r.broadcast(encode(statusEvent(roomID, c.AccountID, StatusOnline)), c))
	}
	if !c.enqueue(encode(joinedEvent(roomID, c.AccountID, peerID))) {
		delete(r.members, c)
		c.setRoom("")
		c.close()
		h.releaseIfEmpty(r)
		return nil
	}

	slog.Info("chat client joined",
		slog.String("conn_id", c.ID),
		slog.Int64("account_id", c.AccountID),
		slog.String("room_id", roomID),
	)
	return nil
}

// Send はメッセージを永続化し、ルームのメンバー全員に配信する。
// 永続化に失敗した場合は配信しない。
func (h *Hub) Send(ctx context.Context, c *Client, receiverID int64, body string) (*model.ChatMessage, error) {
	if receiverID <= 0 || receiverID == c.AccountID {
		return nil, model.NewInvalidChatMessageError("receiver_id must be another account")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, model.NewInvalidChatMessageError("body is required")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, model.NewInvalidChatMessageError(fmt.Sprintf("body must be at most %d characters", MaxBodyLength))
	}

	msg := &model.ChatMessage{
		SenderID:   c.AccountID,
		ReceiverID: receiverID,
		RoomID:     RoomID(c.AccountID, receiverID),
		Body:       body,
	}

	// 参加者のいないルームへの送信でもacquireでルームが作られるため、失敗時も含めて解放を試みる
	r := h.acquire(msg.RoomID)
	defer func() {
		h.releaseIfEmpty(r)
		r.mu.Unlock()
	}()

	if err := h.store.Append(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, model.NewInvalidChatMessageError("receiver does not exist")
		}
		return nil, fmt.Errorf("failed to persist chat message: %w", err)
	}
	h.metrics.RecordChatMessage()

	h.dropAll(r.broadcast(encode(messageEvent(msg)), nil))
	return msg, nil
}

// Leave はクライアントを参加中のルームから退出させ、残りのメンバーにstatusを送る。
// メンバーが0になったルームはハブから外す。
func (h *Hub) Leave(c *Client) {
	roomID := c.currentRoom()
	if roomID == "" {
		return
	}
	c.setRoom("")

	r := h.lookup(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	_, wasMember := r.members[c]
	delete(r.members, c)
	if wasMember {
		h.dropAll(r.broadcast(encode(statusEvent(roomID, c.AccountID, StatusOffline)), nil))
	}
	h.releaseIfEmpty(r)
	r.mu.Unlock()

	slog.Info("chat client left",
		slog.String("conn_id", c.ID),
		slog.Int64("account_id", c.AccountID),
		slog.String("room_id", roomID),
	)
}

// History はaccountIDとpeerIDのルームの直近メッセージを永続化順で返す。
func (h *Hub) History(ctx context.Context, accountID, peerID int64) ([]*model.ChatMessage, error) {
	if peerID <= 0 || peerID == accountID {
		return nil, model.NewInvalidChatMessageError("peer must be another account")
	}

	messages, err := h.store.ListByRoom(ctx, RoomID(accountID, peerID), h.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat history: %w", err)
	}
	if messages == nil {
		messages = []*model.ChatMessage{}
	}
	return messages, nil
}

// releaseIfEmpty はメンバーが0のルームを閉じてハブから外す。r.muを保持した状態で呼ぶこと。
// ロック順序はルーム、ハブの順とし、ハブのロックを保持したままルームをロックしない。
func (h *Hub) releaseIfEmpty(r *room) {
	if len(r.members) > 0 {
		return
	}
	r.closed.Store(true)
	h.mu.Lock()
	if h.rooms[r.id] == r {
		delete(h.rooms, r.id)
	}
	h.mu.Unlock()
}

// memberCount は指定ルームの参加者数を返す。
func (h *Hub) memberCount(roomID string) int {
	r := h.lookup(roomID)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (h *Hub) dropAll(dropped []*Client) {
	for _, c := range dropped {
		slog.Warn("slow chat client dropped",
			slog.String("conn_id", c.ID),
			slog.Int64("account_id", c.AccountID),
		)
	}
}
