package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vx-labs/testsite/testsite/auth"
	"github.com/vx-labs/testsite/testsite/stats"
	"go.uber.org/zap"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin:     func(r *http.Request) bool { return true },
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
)

const consoleClientBuffer = 16
const consoleWriteTimeout = 5 * time.Second

type consoleClient struct {
	conn          *websocket.Conn
	remoteAddress string
	ch            chan []byte
}

// Console streams protected page notices to websocket clients. It implements
// auth.Notifier.
type Console struct {
	mtx     sync.Mutex
	clients map[*consoleClient]struct{}
	logger  *zap.Logger
}

func NewConsole(logger *zap.Logger) *Console {
	return &Console{
		clients: map[*consoleClient]struct{}{},
		logger:  logger,
	}
}

func (c *Console) Clients() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.clients)
}

// Notify never blocks: a client whose buffer is full is disconnected.
func (c *Console) Notify(ctx context.Context, notice auth.Notice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for client := range c.clients {
		select {
		case client.ch <- payload:
		default:
			c.logger.Warn("console client too slow, disconnecting", zap.String("remote_address", client.remoteAddress))
			c.remove(client)
		}
	}
	return nil
}

func (c *Console) add(client *consoleClient) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.clients[client] = struct{}{}
	stats.ConsoleClients.Inc()
}

// remove must be called with mtx held.
func (c *Console) remove(client *consoleClient) {
	if _, ok := c.clients[client]; !ok {
		return
	}
	delete(c.clients, client)
	close(client.ch)
	stats.ConsoleClients.Dec()
}

func (c *Console) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Debug("failed to upgrade console connection", zap.Error(err))
		return
	}
	client := &consoleClient{conn: ws, remoteAddress: r.RemoteAddr, ch: make(chan []byte, consoleClientBuffer)}
	c.add(client)
	c.logger.Debug("console client connected", zap.String("remote_address", r.RemoteAddr))
	go c.write(client)
	for {
		if _, _, err := ws.NextReader(); err != nil {
			break
		}
	}
	c.mtx.Lock()
	c.remove(client)
	c.mtx.Unlock()
	c.logger.Debug("console client disconnected", zap.String("remote_address", r.RemoteAddr))
}

func (c *Console) write(client *consoleClient) {
	defer client.conn.Close()
	for payload := range client.ch {
		if err := client.conn.SetWriteDeadline(time.Now().Add(consoleWriteTimeout)); err != nil {
			c.logger.Debug("failed to set console write deadline", zap.Error(err))
			return
		}
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.logger.Debug("failed to write console notice", zap.Error(err))
			return
		}
	}
	err := client.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	if err != nil {
		c.logger.Debug("failed to close console connection", zap.Error(err))
	}
}
