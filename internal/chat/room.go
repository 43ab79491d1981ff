// Package chat は2アカウント間のリアルタイムチャットを提供する。
//
// 接続はWebSocketで受け付け、同じ2アカウントの接続を1つのルームにまとめる。
// メッセージはルーム単位で永続化してから配信するため、
// ルーム内の全メンバーは永続化順と同じ順序でメッセージを受け取る。
package chat

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// RoomID は2アカウント間のルームIDを返す。引数の順序に依存しない。
func RoomID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("room_%d_%d", a, b)
}

// room は1つのルームに参加中のクライアント集合。
// muは永続化と配信をルーム単位で直列化する。
type room struct {
	id      string
	mu      sync.Mutex
	members map[*Client]struct{}
	// closed はメンバーが0になりハブから外されたことを示す。
	closed atomic.Bool
}

func newRoom(id string) *room {
	return &room{
		id:      id,
		members: make(map[*Client]struct{}),
	}
}

// broadcast はメンバー全員にpayloadを送る。muを保持した状態で呼ぶこと。
// 送信バッファが埋まっているクライアントはルームから外して切断する。
func (r *room) broadcast(payload []byte, except *Client) []*Client {
	var dropped []*Client
	for c := range r.members {
		if c == except {
			continue
		}
		if !c.enqueue(payload) {
			delete(r.members, c)
			c.close()
			dropped = append(dropped, c)
		}
	}
	return dropped
}
