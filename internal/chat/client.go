package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/hitoshi/tinyshop/internal/model"
)

const (
	// writeWait は1フレームの書き込みに許容する時間。
	writeWait = 10 * time.Second

	// maxMessageSize は受信する1フレームの最大バイト数。
	maxMessageSize = 16 * 1024

	// DefaultPingInterval はping送信間隔の既定値。
	DefaultPingInterval = 30 * time.Second

	// DefaultSendBuffer はクライアントごとの送信バッファ長。
	DefaultSendBuffer = 64

	// DefaultEventsPerMinute は1接続あたりの受信イベント数の上限（1分あたり）。
	DefaultEventsPerMinute = 120
)

// Options はクライアント接続の設定。
type Options struct {
	PingInterval time.Duration
	SendBuffer   int
	// EventsPerMinute は受信イベントのレート上限。バースト容量も同じ値とする。
	EventsPerMinute int
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	if o.EventsPerMinute <= 0 {
		o.EventsPerMinute = DefaultEventsPerMinute
	}
	return o
}

// Client は1つのWebSocket接続を表す。
// 読み込みと書き込みはそれぞれ専用のgoroutineが担当する。
type Client struct {
	ID        string
	AccountID int64

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	pingPeriod time.Duration
	pongWait   time.Duration
	limiter    *rate.Limiter

	mu     sync.Mutex
	closed bool
	room   string
}

// NewClient は認証済みアカウントの接続からClientを生成する。
func NewClient(hub *Hub, conn *websocket.Conn, accountID int64, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, opts.SendBuffer),
		pingPeriod: opts.PingInterval,
		pongWait:   opts.PingInterval * 2,
		limiter:    rate.NewLimiter(rate.Limit(float64(opts.EventsPerMinute)/60.0), opts.EventsPerMinute),
	}
}

// NewUpgrader はOriginを検証するUpgraderを生成する。
// Originヘッダーのない接続（ブラウザ以外）は許可する。
func NewUpgrader(allowedOrigin string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}
}

// Run は接続が閉じられるまで読み書きを行う。
func (c *Client) Run(ctx context.Context) {
	c.hub.metrics.ChatConnectionOpened()
	defer c.hub.metrics.ChatConnectionClosed()

	slog.Info("chat client connected",
		slog.String("conn_id", c.ID),
		slog.Int64("account_id", c.AccountID),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()
	c.readPump(ctx)
	<-done

	slog.Info("chat client disconnected",
		slog.String("conn_id", c.ID),
		slog.Int64("account_id", c.AccountID),
	)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Leave(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("chat connection closed unexpectedly",
					slog.String("conn_id", c.ID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if !c.allowEvent() {
			continue
		}

		var in InboundEvent
		if err := json.Unmarshal(data, &in); err != nil {
			c.sendError(model.NewInvalidChatMessageError("malformed event"))
			continue
		}
		c.handle(ctx, in)
	}
}

// allowEvent は受信イベントがレート上限内かを判定する。超過時はerrorイベントを返す。
func (c *Client) allowEvent() bool {
	if c.limiter == nil || c.limiter.Allow() {
		return true
	}
	slog.Warn("chat rate limit exceeded",
		slog.String("conn_id", c.ID),
		slog.Int64("account_id", c.AccountID),
	)
	c.sendError(model.NewRateLimitedError())
	return false
}

func (c *Client) handle(ctx context.Context, in InboundEvent) {
	if in.SenderID != 0 && in.SenderID != c.AccountID {
		slog.Warn("chat sender mismatch rejected",
			slog.String("conn_id", c.ID),
			slog.Int64("account_id", c.AccountID),
			slog.Int64("claimed_sender_id", in.SenderID),
		)
		c.sendError(model.NewInvalidChatMessageError("sender_id does not match the authenticated account"))
		return
	}

	var err error
	switch in.Type {
	case EventTypeJoin:
		err = c.hub.Join(c, in.ReceiverID)
	case EventTypeMessage:
		_, err = c.hub.Send(ctx, c, in.ReceiverID, in.Body)
	default:
		err = model.NewInvalidChatMessageError("unknown event type")
	}
	if err == nil {
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		c.sendError(apiErr)
		return
	}
	slog.Error("chat event failed",
		slog.String("conn_id", c.ID),
		slog.Int64("account_id", c.AccountID),
		slog.String("type", in.Type),
		slog.String("error", err.Error()),
	)
	c.sendError(model.NewInternalError())
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(apiErr *model.APIError) {
	if !c.enqueue(encode(errorEvent(apiErr))) {
		c.close()
	}
}

// enqueue は送信バッファにpayloadを積む。バッファが満杯または切断済みの場合はfalseを返す。
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close は送信チャネルを閉じ、書き込みgoroutineに切断を伝える。複数回呼んでもよい。
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) currentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = roomID
}
