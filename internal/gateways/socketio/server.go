// Package socketio serves socket.io clients on the /msg namespace.
package socketio

import (
	"messenger/internal/app/notification"
	"messenger/internal/metrics"

	socketio "github.com/googollee/go-socket.io"
	"go.uber.org/zap"
)

const (
	Namespace = "/msg"
	transport = "socketio"
)

// Broadcaster is the part of *socketio.Server used for fan-out.
type Broadcaster interface {
	BroadcastToNamespace(namespace string, event string, args ...interface{}) bool
	BroadcastToRoom(namespace string, room, event string, args ...interface{}) bool
}

type Server struct {
	io     *socketio.Server
	out    Broadcaster
	logger *zap.SugaredLogger
}

func NewServer(logger *zap.Logger) *Server {
	io := socketio.NewServer(nil)
	s := &Server{io: io, out: io, logger: logger.Sugar()}

	io.OnConnect("/", func(conn socketio.Conn) error {
		return nil
	})
	io.OnConnect(Namespace, func(conn socketio.Conn) error {
		metrics.GatewayConnections.WithLabelValues(transport).Inc()
		s.logger.Debugw("Socket.io client connected", "client_id", conn.ID())
		return nil
	})
	io.OnEvent(Namespace, "login", func(conn socketio.Conn, token string) {
		if token == "" {
			return
		}
		conn.Join(notification.RoomFor(token))
		s.logger.Debugw("Socket.io client joined room", "client_id", conn.ID())
	})
	io.OnError(Namespace, func(conn socketio.Conn, err error) {
		s.logger.Warnw("Socket.io error", "error", err)
	})
	io.OnDisconnect(Namespace, func(conn socketio.Conn, reason string) {
		metrics.GatewayConnections.WithLabelValues(transport).Dec()
		s.logger.Debugw("Socket.io client disconnected", "client_id", conn.ID(), "reason", reason)
	})
	return s
}

func (s *Server) Handler() *socketio.Server {
	return s.io
}

func (s *Server) Serve() error {
	return s.io.Serve()
}

func (s *Server) Close() error {
	return s.io.Close()
}

// Dispatch emits the envelope's message as a "notification" event.
func (s *Server) Dispatch(env *notification.Envelope) bool {
	var ok bool
	if env.Data.ToAll {
		ok = s.out.BroadcastToNamespace(Namespace, "notification", env.Data.Message)
	} else {
		ok = s.out.BroadcastToRoom(Namespace, env.Data.Room(), "notification", env.Data.Message)
	}
	outcome := "sent"
	if !ok {
		outcome = "dropped"
	}
	metrics.GatewayDeliveries.WithLabelValues(transport, outcome).Inc()
	return ok
}
