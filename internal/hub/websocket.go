package hub

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
)

const writeWait = 10 * time.Second

// ServeHTTP upgrades the request to a websocket and runs the connection
// until it closes. Admission happens before the upgrade, so an untrusted
// origin gets 403 and a connection refused by the subscribe hook gets 401
// without ever holding a socket.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	c, err := h.Admit(r.Context(), Request{
		Origin:     origin,
		RawQuery:   r.URL.RawQuery,
		RemoteAddr: r.RemoteAddr,
	})
	switch {
	case errors.Is(err, domain.ErrConnUntrustedOrigin):
		http.Error(w, "untrusted origin", http.StatusForbidden)
		return
	case err != nil:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	t := newWSTransport(ws, h.opts.SendQueue, h.opts.PingInterval)
	go t.writePump()
	h.Register(c, t)

	t.readPump(h.opts.MaxMessageSize, func(text string) { h.Message(c, text) })
	h.Close(c)
}

// wsTransport is a Transport over a gorilla websocket connection with a
// bounded outbound queue drained by writePump.
type wsTransport struct {
	ws         *websocket.Conn
	send       chan string
	done       chan struct{}
	once       sync.Once
	pingPeriod time.Duration
}

func newWSTransport(ws *websocket.Conn, queue int, pingPeriod time.Duration) *wsTransport {
	return &wsTransport{
		ws:         ws,
		send:       make(chan string, queue),
		done:       make(chan struct{}),
		pingPeriod: pingPeriod,
	}
}

// Send queues text. A full queue means the peer is not keeping up; the
// connection is closed.
func (t *wsTransport) Send(text string) error {
	select {
	case <-t.done:
		return domain.ErrConnClosed
	default:
	}
	select {
	case t.send <- text:
		return nil
	default:
		t.Close()
		return domain.ErrConnSendQueueFull
	}
}

func (t *wsTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

func (t *wsTransport) readPump(limit int64, onText func(string)) {
	defer t.Close()

	pongWait := t.pingPeriod * 6 / 5
	t.ws.SetReadLimit(limit)
	t.ws.SetReadDeadline(time.Now().Add(pongWait))
	t.ws.SetPongHandler(func(string) error {
		return t.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, data, err := t.ws.ReadMessage()
		if err != nil {
			return
		}
		// Any frame proves the peer is alive.
		t.ws.SetReadDeadline(time.Now().Add(pongWait))
		if typ == websocket.TextMessage {
			onText(string(data))
		}
	}
}

func (t *wsTransport) writePump() {
	ticker := time.NewTicker(t.pingPeriod)
	defer func() {
		ticker.Stop()
		t.ws.Close()
	}()

	for {
		select {
		case msg := <-t.send:
			t.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				t.Close()
				return
			}
		case <-ticker.C:
			if err := t.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				t.Close()
				return
			}
		case <-t.done:
			t.drain()
			t.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// drain flushes frames queued before Close.
func (t *wsTransport) drain() {
	for {
		select {
		case msg := <-t.send:
			t.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		default:
			return
		}
	}
}
