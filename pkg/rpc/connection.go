package rpc

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/erc7824/docvault/pkg/log"
)

const (
	defaultWsConnWriteTimeout      = 5 * time.Second
	defaultWsConnProcessBufferSize = 10
	defaultWsConnWriteBufferSize   = 10
)

// Connection is one client session as seen by the node.
type Connection interface {
	ConnectionID() string
	// RawRequests yields inbound messages and is closed when reading stops.
	RawRequests() <-chan []byte
	// WriteRawResponse queues a message. It returns false, and schedules the
	// connection for closing, when the queue stays full past the write timeout.
	WriteRawResponse(message []byte) bool
	// Serve runs the read and write loops until parentCtx ends or the peer
	// goes away, then calls handleClosure once.
	Serve(parentCtx context.Context, handleClosure func(error))
}

// GorillaWsConnectionAdapter is the subset of *websocket.Conn the connection uses.
type GorillaWsConnectionAdapter interface {
	ReadMessage() (messageType int, p []byte, err error)
	NextWriter(messageType int) (io.WriteCloser, error)
	Close() error
}

var _ Connection = &WebsocketConnection{}

// WebsocketConnection pumps messages between a gorilla websocket and the
// node. Writes are buffered and each is bounded by the write timeout.
type WebsocketConnection struct {
	connectionID  string
	websocketConn GorillaWsConnectionAdapter
	writeTimeout  time.Duration
	logger        log.Logger

	onMessageSentHandler func([]byte)
	writeSink            chan []byte
	processSink          chan []byte
	closeConnCh          chan struct{}

	mu      sync.Mutex
	serving bool
}

type WebsocketConnectionConfig struct {
	ConnectionID  string
	WebsocketConn GorillaWsConnectionAdapter

	WriteTimeout         time.Duration
	WriteBufferSize      int
	ProcessBufferSize    int
	Logger               log.Logger
	OnMessageSentHandler func([]byte)
}

func NewWebsocketConnection(config WebsocketConnectionConfig) (*WebsocketConnection, error) {
	if config.ConnectionID == "" {
		return nil, errors.New("connection ID cannot be empty")
	}
	if config.WebsocketConn == nil {
		return nil, errors.New("websocket connection cannot be nil")
	}
	if config.Logger == nil {
		config.Logger = log.NewNoopLogger()
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultWsConnWriteTimeout
	}
	if config.WriteBufferSize <= 0 {
		config.WriteBufferSize = defaultWsConnWriteBufferSize
	}
	if config.ProcessBufferSize <= 0 {
		config.ProcessBufferSize = defaultWsConnProcessBufferSize
	}
	if config.OnMessageSentHandler == nil {
		config.OnMessageSentHandler = func([]byte) {}
	}

	return &WebsocketConnection{
		connectionID:         config.ConnectionID,
		websocketConn:        config.WebsocketConn,
		writeTimeout:         config.WriteTimeout,
		logger:               config.Logger.WithKV("connectionID", config.ConnectionID),
		onMessageSentHandler: config.OnMessageSentHandler,
		writeSink:            make(chan []byte, config.WriteBufferSize),
		processSink:          make(chan []byte, config.ProcessBufferSize),
		closeConnCh:          make(chan struct{}, 1),
	}, nil
}

func (conn *WebsocketConnection) ConnectionID() string { return conn.connectionID }

func (conn *WebsocketConnection) RawRequests() <-chan []byte { return conn.processSink }

func (conn *WebsocketConnection) Serve(parentCtx context.Context, handleClosure func(error)) {
	conn.mu.Lock()
	if conn.serving {
		conn.mu.Unlock()
		handleClosure(nil)
		return
	}
	conn.serving = true
	conn.mu.Unlock()

	ctx, cancel := context.WithCancel(parentCtx)
	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		cause   error
	)
	// each loop calls stop exactly once; the first non-nil error wins
	stop := func(err error) {
		if err != nil {
			errOnce.Do(func() { cause = err })
		}
		cancel()
		wg.Done()
	}

	wg.Add(3)
	go conn.readMessages(ctx, stop)
	go conn.writeMessages(ctx, stop)
	go conn.waitForConnClose(ctx, stop)

	go func() {
		wg.Wait()
		handleClosure(cause)
	}()
}

func (conn *WebsocketConnection) WriteRawResponse(message []byte) bool {
	timer := time.NewTimer(conn.writeTimeout)
	defer timer.Stop()

	select {
	case conn.writeSink <- message:
		return true
	case <-timer.C:
		select {
		case conn.closeConnCh <- struct{}{}:
		default:
		}
		return false
	}
}

// readMessages blocks in ReadMessage, so it only stops once the socket is
// closed. Messages read after ctx is done are dropped.
func (conn *WebsocketConnection) readMessages(ctx context.Context, handleClosure func(error)) {
	defer close(conn.processSink)

	for {
		_, messageBytes, err := conn.websocketConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				conn.logger.Error("websocket closed unexpectedly", "error", err)
				handleClosure(err)
			} else {
				handleClosure(nil)
			}
			return
		}

		if len(messageBytes) == 0 {
			continue
		}
		select {
		case conn.processSink <- messageBytes:
		case <-ctx.Done():
		}
	}
}

func (conn *WebsocketConnection) writeMessages(ctx context.Context, handleClosure func(error)) {
	defer handleClosure(nil)

	for {
		select {
		case <-ctx.Done():
			return
		case messageBytes := <-conn.writeSink:
			if len(messageBytes) == 0 {
				continue
			}
			if err := conn.write(messageBytes); err != nil {
				conn.logger.Error("error writing response", "error", err)
				continue
			}
			conn.onMessageSentHandler(messageBytes)
		}
	}
}

func (conn *WebsocketConnection) write(message []byte) error {
	w, err := conn.websocketConn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// waitForConnClose closes the socket once the connection is done, which also
// unblocks readMessages.
func (conn *WebsocketConnection) waitForConnClose(ctx context.Context, handleClosure func(error)) {
	defer handleClosure(nil)

	select {
	case <-ctx.Done():
	case <-conn.closeConnCh:
		conn.logger.Warn("closing slow connection")
	}

	if err := conn.websocketConn.Close(); err != nil {
		conn.logger.Debug("error closing websocket", "error", err)
	}
}
