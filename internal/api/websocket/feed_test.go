package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domainevents "github.com/dialerops/callgate-backend/internal/domain/events"
	"github.com/dialerops/callgate-backend/internal/infrastructure/events"
)

func feedServer(t *testing.T, bus *events.Bus) *httptest.Server {
	t.Helper()

	feed := NewFeed(bus, zaptest.NewLogger(t))
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/events", feed.HandleEvents)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dialFeed(t *testing.T, bus *events.Bus, query string) *websocket.Conn {
	t.Helper()

	srv := feedServer(t, bus)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestFeed_StreamsEvents(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	conn := dialFeed(t, bus, "")

	accountID := uuid.New()
	// Give the write pump a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)
	bus.Publish(context.Background(), domainevents.NewComplianceViolation(accountID, "dnc_violation", "critical", "+15551234567"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev domainevents.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domainevents.TypeComplianceViolation, ev.Type)
	assert.Equal(t, accountID, ev.AccountID)
	assert.Equal(t, "critical", ev.Payload["severity"])
}

func TestFeed_AccountFilter(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	mine := uuid.New()
	conn := dialFeed(t, bus, "?account_id="+mine.String())

	time.Sleep(50 * time.Millisecond)
	ctx := context.Background()
	bus.Publish(ctx, domainevents.NewUsageThresholdCrossed(uuid.New(), 80, 100, 80))
	bus.Publish(ctx, domainevents.NewUsageThresholdCrossed(mine, 100, 100, 100))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev domainevents.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, mine, ev.AccountID)
	assert.Equal(t, 100.0, ev.Payload["percentage"])
}

func TestFeed_RejectsBadAccountID(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	srv := feedServer(t, bus)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?account_id=nonsense"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}
