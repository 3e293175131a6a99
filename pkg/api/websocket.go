package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rubiojr/storefront/pkg/categorize"
	"github.com/rubiojr/storefront/pkg/navigate"
	"github.com/rubiojr/storefront/pkg/realtime"
	"github.com/rubiojr/storefront/pkg/widget"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
)

// HandleWebSocket runs one search box session per connection.
//
// The browser sends ClientMessages (focus, blur, input, highlight, select,
// clear). The server answers with realtime.Events, starting with an init
// event carrying the session id and the public config.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	deps := s.current()
	seeds := s.currentSeeds()

	listenerID, events := s.hub.Register(id)
	emit := s.hub.Emitter(id)

	sess := widget.New(id, widget.Config{
		Source:    deps.Source,
		Navigator: deps.Navigator,
		Limits:    LimitsOf(deps.Config),
		Window:    deps.Config.DebounceWindow.Duration,
		Community: deps.Config.Community,
		Primary:   PrimaryOf(deps.Config),
		Seeds: func() categorize.Result {
			ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
			defer cancel()
			return s.withHistory(ctx, deps, seeds)
		},
		Emit: emit,
		OnSelect: func(sel navigate.Selection, target navigate.Target) {
			s.recordSelection(deps.History, sel, target)
		},
	})

	s.sessionsMu.Lock()
	s.sessions[id] = &wsSession{session: sess, conn: conn}
	s.sessionsMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	var selecting sync.WaitGroup
	defer func() {
		cancel()
		selecting.Wait()
		sess.Close()
		s.hub.Unregister(listenerID)
		<-writerDone
		conn.Close()
		s.sessionsMu.Lock()
		delete(s.sessions, id)
		s.sessionsMu.Unlock()
	}()

	go s.writeLoop(conn, events, writerDone)

	emit(realtime.Event{Type: realtime.EventInit, State: string(widget.StateIdle), Highlight: -1, Data: PublicConfigFrom(deps.Config)})
	s.log.Debugf("session %s opened (%d listeners)", id, s.hub.Size())

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debugf("session %s: read: %v", id, err)
			}
			break
		}
		if msg.Type == MessageSelect {
			// Resolving can take a backend round trip; keep reading meanwhile.
			selecting.Add(1)
			go func() {
				defer selecting.Done()
				s.dispatch(ctx, sess, msg)
			}()
			continue
		}
		s.dispatch(ctx, sess, msg)
	}

	s.log.Debugf("session %s closed", id)
}

// dispatch applies a client message to the session.
func (s *Server) dispatch(ctx context.Context, sess *widget.Session, msg ClientMessage) {
	switch msg.Type {
	case MessageFocus:
		sess.Focus()
	case MessageBlur:
		sess.Blur()
	case MessageInput:
		sess.Input(msg.Value)
	case MessageHighlight:
		sess.MoveHighlight(msg.Delta)
	case MessageClear:
		sess.Clear()
	case MessageSelect:
		var err error
		if msg.Index != nil {
			err = sess.Select(ctx, *msg.Index)
		} else {
			err = sess.SelectHighlighted(ctx)
		}
		if err != nil {
			s.log.Debugf("session %s: select: %v", sess.ID(), err)
		}
	default:
		s.log.Debugf("session %s: unknown message type %q", sess.ID(), msg.Type)
	}
}

// writeLoop is the only goroutine writing to conn. It exits when the hub
// closes the events channel.
func (s *Server) writeLoop(conn *websocket.Conn, events <-chan realtime.Event, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debugf("session %s: write: %v", e.Session, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
