package memory

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrave1/FocusRoom/internal/application/constant"
	"github.com/qrave1/FocusRoom/internal/application/metric"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer, enough for SDP.
	maxMessageSize = 64 * 1024

	sendQueueSize = 64
)

var (
	ErrConnectionClosed = errors.New("websocket connection closed")
	ErrSendQueueFull    = errors.New("websocket send queue full")
)

// WebsocketConnectionRepository интерфейс для работы с активными соединениями в памяти
type WebsocketConnectionRepository interface {
	Add(conn *websocket.Conn) *WSConnection
	Remove(conn *WSConnection)

	Count() int

	// CloseAll закрывает все соединения, используется при остановке сервера
	CloseAll(code int, reason string)
}

type outbound struct {
	data []byte

	// closeCode != 0 означает кадр закрытия
	closeCode int
	reason    string
}

// WSConnection - одно websocket соединение. Все записи идут через очередь
// и единственную горутину writePump, поэтому Send можно звать из любой горутины.
type WSConnection struct {
	conn *websocket.Conn
	send chan outbound
	done chan struct{}

	mu      sync.Mutex
	closing bool
	once    sync.Once
}

func newWSConnection(conn *websocket.Conn) *WSConnection {
	c := &WSConnection{
		conn: conn,
		send: make(chan outbound, sendQueueSize),
		done: make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()

	return c
}

// Send ставит кадр в очередь. При переполненной очереди кадр отбрасывается.
func (c *WSConnection) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		return ErrConnectionClosed
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- outbound{data: data}:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close отправляет кадр закрытия после всех уже поставленных в очередь сообщений
func (c *WSConnection) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		return nil
	}
	c.closing = true

	select {
	case c.send <- outbound{closeCode: code, reason: reason}:
	default:
		c.shutdown()
	}

	return nil
}

// ReadMessage читает следующий кадр. Вызывается только из одной горутины.
func (c *WSConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *WSConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if msg.closeCode != 0 {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(msg.closeCode, msg.reason))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				slog.Debug("write to websocket", slog.Any(constant.Error, err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("ping failed", slog.Any(constant.Error, err))
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *WSConnection) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

type wsConnectionRepository struct {
	wsConns map[*WSConnection]struct{}

	mu sync.RWMutex
}

func NewWSConnectionRepository() WebsocketConnectionRepository {
	return &wsConnectionRepository{
		wsConns: make(map[*WSConnection]struct{}, 10),
	}
}

func (w *wsConnectionRepository) Add(conn *websocket.Conn) *WSConnection {
	c := newWSConnection(conn)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.wsConns[c] = struct{}{}

	// Увеличиваем счетчик активных WS соединений
	metric.IncrementWSActiveConnections()

	return c
}

func (w *wsConnectionRepository) Remove(c *WSConnection) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Проверяем, существует ли соединение перед удалением
	if _, exists := w.wsConns[c]; exists {
		delete(w.wsConns, c)
		c.shutdown()

		// Уменьшаем счетчик активных WS соединений
		metric.DecrementWSActiveConnections()
	}
}

func (w *wsConnectionRepository) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.wsConns)
}

func (w *wsConnectionRepository) CloseAll(code int, reason string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for c := range w.wsConns {
		if err := c.Close(code, reason); err != nil {
			slog.Debug("close websocket", slog.Any(constant.Error, err))
		}
	}
}
