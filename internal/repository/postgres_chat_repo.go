package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/tinyshop/internal/model"
)

// foreignKeyViolation はPostgreSQLの外部キー制約違反のSQLSTATE。
const foreignKeyViolation = "23503"

// PostgresChatMessageRepo はPostgreSQLを使用したチャットメッセージリポジトリ。
type PostgresChatMessageRepo struct {
	db *sql.DB
}

// NewPostgresChatMessageRepo はPostgresChatMessageRepoを生成する。
func NewPostgresChatMessageRepo(db *sql.DB) *PostgresChatMessageRepo {
	return &PostgresChatMessageRepo{db: db}
}

// Append はメッセージを追記する。送信者または受信者が存在しない場合はErrAccountNotFound。
func (r *PostgresChatMessageRepo) Append(ctx context.Context, msg *model.ChatMessage) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO chat_messages (sender_id, receiver_id, room_id, body)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		msg.SenderID, msg.ReceiverID, msg.RoomID, msg.Body,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

// ListByRoom はルームの直近limit件のメッセージをID昇順で返す。
func (r *PostgresChatMessageRepo) ListByRoom(ctx context.Context, roomID string, limit int) ([]*model.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, room_id, body, created_at FROM (
			SELECT id, sender_id, receiver_id, room_id, body, created_at
			FROM chat_messages
			WHERE room_id = $1
			ORDER BY id DESC
			LIMIT $2
		 ) recent
		 ORDER BY id ASC`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.ChatMessage
	for rows.Next() {
		m := &model.ChatMessage{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.RoomID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat messages: %w", err)
	}
	return messages, nil
}

// compile-time interface check
var _ ChatMessageRepository = (*PostgresChatMessageRepo)(nil)
