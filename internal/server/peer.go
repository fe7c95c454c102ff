// ABOUTME: WebSocket transport for one agent connection.
// ABOUTME: Owns the read/write pumps; the hub sees only the Sender interface.

package server

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parcelview/agent-hub/internal/hub"
)

const (
	// wsMaxPayloadBytes caps a single inbound message.
	wsMaxPayloadBytes = 1 << 20
	// wsWriteWait bounds each write to the peer.
	wsWriteWait = 10 * time.Second
	// wsSendBuffer is the per-connection outbound queue depth.
	wsSendBuffer = 64
)

// errSendBufferFull is returned when a peer cannot keep up with its outbound
// queue. The write never blocks the hub; a persistently full peer is evicted
// by the liveness monitor.
var errSendBufferFull = errors.New("send buffer full")

// wsPeer adapts a gorilla/websocket connection to hub.Sender. All writes go
// through the send channel so the single write pump is the only goroutine
// touching the connection's write side.
type wsPeer struct {
	conn   *websocket.Conn
	send   chan []byte
	ping   chan struct{}
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
}

func newWSPeer(conn *websocket.Conn, logger *slog.Logger) *wsPeer {
	return &wsPeer{
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		ping:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// SendEnvelope queues an envelope for the write pump. Never blocks.
func (p *wsPeer) SendEnvelope(env *hub.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return errors.New("connection closed")
	case p.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Ping queues a WebSocket ping control frame. Collapses when one is already
// pending.
func (p *wsPeer) Ping() error {
	select {
	case <-p.done:
		return errors.New("connection closed")
	case p.ping <- struct{}{}:
		return nil
	default:
		return nil
	}
}

// Close shuts the connection down. Safe to call from any goroutine, any
// number of times.
func (p *wsPeer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.conn.Close()
	})
	return err
}

// writeLoop is the single writer for the connection.
func (p *wsPeer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				p.logger.Debug("write failed", "error", err)
				_ = p.Close()
				return
			}
		case <-p.ping:
			_ = p.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.logger.Debug("ping write failed", "error", err)
				_ = p.Close()
				return
			}
		}
	}
}

// readLoop pumps inbound messages into the hub until the connection dies.
// readDeadline is refreshed on every message and pong; the liveness monitor
// remains the authority on eviction, the deadline is a transport backstop.
func (p *wsPeer) readLoop(svc *hub.Service, agent *hub.ConnectedAgent, readDeadline time.Duration) {
	p.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = p.conn.SetReadDeadline(time.Now().Add(readDeadline))
	p.conn.SetPongHandler(func(string) error {
		agent.Touch()
		return p.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			svc.Disconnect(agent.ID, "connection closed")
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(readDeadline))
		if messageType != websocket.TextMessage {
			continue
		}
		svc.HandleInbound(agent, data)
	}
}
