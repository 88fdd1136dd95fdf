package websocket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	domainevents "github.com/dialerops/callgate-backend/internal/domain/events"
	"github.com/dialerops/callgate-backend/internal/infrastructure/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Feed streams engine events to websocket clients. Each connection holds
// its own bus subscription; a client may narrow the stream to a single
// account with the account_id query parameter.
type Feed struct {
	bus    *events.Bus
	logger *zap.Logger
}

func NewFeed(bus *events.Bus, logger *zap.Logger) *Feed {
	return &Feed{bus: bus, logger: logger}
}

// HandleEvents upgrades the connection and pumps matching events to it.
func (f *Feed) HandleEvents(w http.ResponseWriter, r *http.Request) {
	var accountID uuid.UUID
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid account_id", http.StatusBadRequest)
			return
		}
		accountID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("websocket upgrade failed",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	sub := f.bus.Subscribe()
	client := &client{
		conn:      conn,
		sub:       sub,
		accountID: accountID,
		logger:    f.logger,
	}

	go client.writePump()
	go client.readPump()

	f.logger.Info("websocket client connected",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("remote_addr", r.RemoteAddr),
	)
}

type client struct {
	conn      *websocket.Conn
	sub       *events.Subscription
	accountID uuid.UUID
	logger    *zap.Logger
}

func (c *client) wants(ev domainevents.Event) bool {
	return c.accountID == uuid.Nil || ev.AccountID == c.accountID
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sub.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.wants(ev) {
				continue
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the feed is one-way. It exists to
// notice closed connections and release the bus subscription.
func (c *client) readPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}
