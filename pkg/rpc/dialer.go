package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/erc7824/docvault/pkg/log"
)

// Dialer is the client side of a connection to a node.
type Dialer interface {
	// Dial connects to url. The connection lives until ctx is cancelled or
	// the peer goes away; handleClosure then receives the first error seen.
	Dial(ctx context.Context, url string, handleClosure func(err error)) error
	IsConnected() bool
	// Call sends req and waits for the response with the same request id.
	Call(ctx context.Context, req *Request) (*Response, error)
}

// WebsocketDialerConfig tunes a WebsocketDialer. PingRequestID is the request
// id used by keepalive pings and should not collide with application ids.
type WebsocketDialerConfig struct {
	HandshakeTimeout time.Duration
	// PingInterval of zero disables keepalive pings.
	PingInterval  time.Duration
	PingRequestID uint64
}

var DefaultWebsocketDialerConfig = WebsocketDialerConfig{
	HandshakeTimeout: 5 * time.Second,
	PingInterval:     5 * time.Second,
	PingRequestID:    100,
}

var _ Dialer = (*WebsocketDialer)(nil)

// WebsocketDialer multiplexes calls over one websocket connection, matching
// responses to calls by request id. It can dial again once the previous
// connection is gone.
type WebsocketDialer struct {
	cfg WebsocketDialerConfig

	mu      sync.RWMutex
	active  *dialSession
	pending map[uint64]chan *Response
}

// NewWebsocketDialer returns a disconnected dialer.
func NewWebsocketDialer(cfg WebsocketDialerConfig) *WebsocketDialer {
	return &WebsocketDialer{
		cfg:     cfg,
		pending: make(map[uint64]chan *Response),
	}
}

// dialSession is one established connection and the goroutines serving it.
type dialSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	lg     log.Logger

	writeMu sync.Mutex
	wg      sync.WaitGroup

	errOnce sync.Once
	err     error
}

// stop records the first non-nil cause and tears the session down.
func (s *dialSession) stop(cause error) {
	if cause != nil {
		s.errOnce.Do(func() { s.err = cause })
	}
	s.cancel()
}

func (s *dialSession) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (d *WebsocketDialer) Dial(parentCtx context.Context, url string, handleClosure func(err error)) error {
	if d.IsConnected() {
		return ErrAlreadyConnected
	}

	wsDialer := websocket.Dialer{HandshakeTimeout: d.cfg.HandshakeTimeout}
	conn, _, err := wsDialer.DialContext(parentCtx, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDialingWebsocket, err)
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s := &dialSession{
		ctx:    ctx,
		cancel: cancel,
		conn:   conn,
		lg:     log.FromContext(parentCtx).WithName("ws-dialer").WithKV("url", url),
	}
	// Closing the socket unblocks the reader; pending calls watch ctx.
	context.AfterFunc(ctx, func() {
		if err := conn.Close(); err != nil {
			s.lg.Debug("failed to close websocket", "error", err)
		}
	})

	d.mu.Lock()
	d.active = s
	d.mu.Unlock()

	s.wg.Add(1)
	go d.readLoop(s)
	if d.cfg.PingInterval > 0 {
		s.wg.Add(1)
		go d.pingLoop(s)
	}

	go func() {
		s.wg.Wait()
		<-ctx.Done()
		if handleClosure != nil {
			handleClosure(s.err)
		}
	}()

	return nil
}

func (d *WebsocketDialer) session() *dialSession {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.active == nil || d.active.ctx.Err() != nil {
		return nil
	}
	return d.active
}

func (d *WebsocketDialer) IsConnected() bool {
	return d.session() != nil
}

func (d *WebsocketDialer) Call(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	s := d.session()
	if s == nil {
		return nil, ErrNotConnected
	}

	id := req.Req.RequestID
	sink := make(chan *Response, 1)
	d.mu.Lock()
	d.pending[id] = sink
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
	}()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshalingRequest, err)
	}
	if err := s.write(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}

	select {
	case res := <-sink:
		return res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w for request %d: %w", ErrNoResponse, id, ctx.Err())
	case <-s.ctx.Done():
		return nil, fmt.Errorf("%w for request %d: connection closed", ErrNoResponse, id)
	}
}

func (d *WebsocketDialer) readLoop(s *dialSession) {
	defer s.wg.Done()

	for {
		_, data, err := s.conn.ReadMessage()
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.lg.Error("websocket connection timeout", "error", err)
				s.stop(fmt.Errorf("%w: %w", ErrConnectionTimeout, err))
			} else {
				s.lg.Debug("websocket read stopped", "error", err)
				s.stop(fmt.Errorf("%w: %w", ErrReadingMessage, err))
			}
			return
		}

		var res Response
		if err := json.Unmarshal(data, &res); err != nil {
			s.lg.Warn("malformed message", "message", string(data), "error", err)
			continue
		}
		d.dispatch(s, &res)
	}
}

// dispatch hands res to the call waiting for its request id. Replies nobody
// waits for, such as late answers to abandoned calls, are dropped.
func (d *WebsocketDialer) dispatch(s *dialSession, res *Response) {
	d.mu.RLock()
	sink, ok := d.pending[res.Res.RequestID]
	d.mu.RUnlock()
	if !ok {
		s.lg.Debug("dropping unmatched response", "requestID", res.Res.RequestID, "method", res.Res.Method)
		return
	}

	select {
	case sink <- res:
	default:
		s.lg.Warn("duplicate response, dropping message", "requestID", res.Res.RequestID)
	}
}

func (d *WebsocketDialer) pingLoop(s *dialSession) {
	defer s.wg.Done()

	ticker := time.NewTicker(d.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		req := NewRequest(NewPayload(d.cfg.PingRequestID, PingMethod.String(), nil))
		res, err := d.Call(s.ctx, &req)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.lg.Error("error sending ping", "error", err)
			s.stop(fmt.Errorf("%w: %w", ErrSendingPing, err))
			return
		}
		if res.Res.Method != PongMethod.String() {
			s.lg.Warn("unexpected response to ping", "method", res.Res.Method)
		}
	}
}
