package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/gorilla/mux"
	"nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

// MessageHandler handles one inbound message. Messages from a connection are
// handled in the order they were read.
type MessageHandler func(ctx context.Context, conn *Connection, message *messages.Message)

// WSServer represents a WebSocket server.
type WSServer struct {
	port           int
	tls            *TLSConfig
	registry       *ConnectionRegistry
	originPatterns []string
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Port     int
	TLS      *TLSConfig
	Registry *ConnectionRegistry
	// OriginPatterns are passed to websocket.Accept. Empty allows any origin.
	OriginPatterns []string
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	return &WSServer{
		port:           opts.Port,
		tls:            opts.TLS,
		registry:       opts.Registry,
		originPatterns: opts.OriginPatterns,
	}
}

// Handler returns the HTTP handler that upgrades requests on /ws.
func (s *WSServer) Handler(ctx context.Context, messageHandler MessageHandler) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.serveWS(ctx, w, r, messageHandler)
	})
	return router
}

// Start starts the WebSocket server.
func (s *WSServer) Start(ctx context.Context, messageHandler MessageHandler) {
	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{Addr: addr, Handler: s.Handler(ctx, messageHandler)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("WebSocket server listening on %s with TLS", addr)
		listenAndServe = func() error {
			return server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("WebSocket server listening on %s", addr)
		listenAndServe = server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return
		}
		log.Error("WebSocket server error: %v", err)
	}
}

func (s *WSServer) serveWS(ctx context.Context, w http.ResponseWriter, r *http.Request, messageHandler MessageHandler) {
	opts := &websocket.AcceptOptions{OriginPatterns: s.originPatterns}
	if len(s.originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	ws.SetReadLimit(messages.MessageBufferSize)

	conn := s.registry.Register(r.URL.Query().Get("compress") == "zstd")
	log.Debug("New WebSocket connection %s from %s", conn.Ref, r.RemoteAddr)

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.registry.Unregister(conn.Ref)
		ws.Close(websocket.StatusNormalClosure, "")
	}()

	go s.writeLoop(ctx, ws, conn)

	for {
		message, err := ReadMessageFromWS(ctx, ws)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				log.Trace("Connection closed for %s", conn.Ref)
				return
			}
			if errors.Is(err, errMalformedMessage) {
				log.Warn("Dropping malformed message from %s: %v", conn.Ref, err)
				continue
			}
			log.Error("Error reading WebSocket message from %s: %v", conn.Ref, err)
			return
		}
		messageHandler(ctx, conn, message)
	}
}

func (s *WSServer) writeLoop(ctx context.Context, ws *websocket.Conn, conn *Connection) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-conn.Outbound():
			if err := WriteMessageToWS(ctx, ws, msg, conn.Compress); err != nil {
				log.Warn("Failed to write %s to %s: %v", msg.Type, conn.Ref, err)
				ws.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

var errMalformedMessage = errors.New("malformed message")

// WriteMessageToWS writes a Message to a WebSocket connection.
// Compressed messages go out as binary frames, the rest as text.
func WriteMessageToWS(ctx context.Context, conn *websocket.Conn, msg *messages.Message, compress bool) error {
	b, err := messages.SerializeMessage(msg, compress)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	typ := websocket.MessageText
	if compress {
		typ = websocket.MessageBinary
	}
	if err := conn.Write(ctx, typ, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}

	return nil
}

// ReadMessageFromWS reads a Message from a WebSocket connection.
// Binary frames are expected to be zstd compressed.
func ReadMessageFromWS(ctx context.Context, conn *websocket.Conn) (*messages.Message, error) {
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := messages.DeserializeMessage(data, typ == websocket.MessageBinary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}

	return msg, nil
}
