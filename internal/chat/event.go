package chat

import (
	"encoding/json"
	"time"

	"github.com/hitoshi/tinyshop/internal/model"
)

// イベント種別。
const (
	EventTypeJoin    = "join"
	EventTypeMessage = "message"
	EventTypeJoined  = "joined"
	EventTypeStatus  = "status"
	EventTypeError   = "error"
)

// 在室状態。
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// InboundEvent はクライアントから受信するイベント。
// SenderIDは省略可能で、指定された場合は認証済みのアカウントIDと一致する必要がある。
type InboundEvent struct {
	Type       string `json:"type"`
	ReceiverID int64  `json:"receiver_id"`
	SenderID   int64  `json:"sender_id,omitempty"`
	Body       string `json:"body,omitempty"`
}

// OutboundEvent はクライアントへ送信するイベント。
type OutboundEvent struct {
	Type       string     `json:"type"`
	RoomID     string     `json:"room_id,omitempty"`
	AccountID  int64      `json:"account_id,omitempty"`
	PeerID     int64      `json:"peer_id,omitempty"`
	Status     string     `json:"status,omitempty"`
	ID         int64      `json:"id,omitempty"`
	SenderID   int64      `json:"sender_id,omitempty"`
	ReceiverID int64      `json:"receiver_id,omitempty"`
	Body       string     `json:"body,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	Code       string     `json:"code,omitempty"`
	Message    string     `json:"message,omitempty"`
}

func joinedEvent(roomID string, accountID, peerID int64) OutboundEvent {
	return OutboundEvent{Type: EventTypeJoined, RoomID: roomID, AccountID: accountID, PeerID: peerID}
}

func statusEvent(roomID string, accountID int64, status string) OutboundEvent {
	return OutboundEvent{Type: EventTypeStatus, RoomID: roomID, AccountID: accountID, Status: status}
}

func messageEvent(msg *model.ChatMessage) OutboundEvent {
	createdAt := msg.CreatedAt
	return OutboundEvent{
		Type:       EventTypeMessage,
		RoomID:     msg.RoomID,
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Body:       msg.Body,
		CreatedAt:  &createdAt,
	}
}

func errorEvent(apiErr *model.APIError) OutboundEvent {
	return OutboundEvent{Type: EventTypeError, Code: apiErr.Code, Message: apiErr.Message}
}

func encode(ev OutboundEvent) []byte {
	// OutboundEventは常にエンコード可能
	b, _ := json.Marshal(ev)
	return b
}
