package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/erc7824/docvault/pkg/log"
	"github.com/erc7824/docvault/pkg/sign"
)

const (
	defaultNodeErrorMessage   = "an error occurred while processing the request"
	invalidSignatureMessage   = "invalid request signature"
	invalidMessageFormat      = "invalid message format"
	nodeGroupHandlerPrefix    = "group."
	nodeGroupRoot             = "root"
	defaultUpgraderBufferSize = 1024
)

// Node routes RPC methods to handler chains.
type Node interface {
	HandlerGroup
}

// HandlerGroup is a set of methods sharing middleware. Middleware registered
// on a group runs after the middleware of its parents.
type HandlerGroup interface {
	Handle(method string, handler Handler)
	Use(middleware Handler)
	NewGroup(name string) HandlerGroup
}

var (
	_ Node         = &WebsocketNode{}
	_ http.Handler = &WebsocketNode{}
	_ HandlerGroup = &WebsocketHandlerGroup{}
)

// WebsocketNode serves the RPC protocol over websocket connections. Requests
// on one connection are handled in order; connections run concurrently.
// Routes must be registered before the node starts serving.
type WebsocketNode struct {
	upgrader     websocket.Upgrader
	cfg          WebsocketNodeConfig
	groupID      string
	handlerChain map[string][]Handler
	routes       map[string][]string
}

// WebsocketNodeConfig configures a WebsocketNode. Signer and Logger are
// required; zero buffer sizes and timeouts fall back to defaults.
type WebsocketNodeConfig struct {
	Signer sign.Signer
	Logger log.Logger

	OnConnectHandler     func(connectionID string)
	OnDisconnectHandler  func(connectionID string)
	OnMessageSentHandler func([]byte)

	WsUpgraderReadBufferSize  int
	WsUpgraderWriteBufferSize int
	WsUpgraderCheckOrigin     func(r *http.Request) bool

	WsConnWriteTimeout      time.Duration
	WsConnWriteBufferSize   int
	WsConnProcessBufferSize int
}

func NewWebsocketNode(config WebsocketNodeConfig) (*WebsocketNode, error) {
	if config.Signer == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	config.Logger = config.Logger.WithName("rpc-node")

	if config.OnConnectHandler == nil {
		config.OnConnectHandler = func(string) {}
	}
	if config.OnDisconnectHandler == nil {
		config.OnDisconnectHandler = func(string) {}
	}
	if config.OnMessageSentHandler == nil {
		config.OnMessageSentHandler = func([]byte) {}
	}
	if config.WsUpgraderReadBufferSize <= 0 {
		config.WsUpgraderReadBufferSize = defaultUpgraderBufferSize
	}
	if config.WsUpgraderWriteBufferSize <= 0 {
		config.WsUpgraderWriteBufferSize = defaultUpgraderBufferSize
	}
	if config.WsUpgraderCheckOrigin == nil {
		config.WsUpgraderCheckOrigin = func(*http.Request) bool { return true }
	}

	node := &WebsocketNode{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.WsUpgraderReadBufferSize,
			WriteBufferSize: config.WsUpgraderWriteBufferSize,
			CheckOrigin:     config.WsUpgraderCheckOrigin,
		},
		cfg:          config,
		groupID:      nodeGroupHandlerPrefix + nodeGroupRoot,
		handlerChain: make(map[string][]Handler),
		routes:       make(map[string][]string),
	}
	node.Handle(PingMethod.String(), node.handlePing)

	return node, nil
}

// ServeHTTP upgrades the request to a websocket and serves it until either
// side closes.
func (wn *WebsocketNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := wn.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wn.cfg.Logger.Error("failed to upgrade connection to websocket", "error", err)
		return
	}

	connectionID := uuid.NewString()
	conn, err := NewWebsocketConnection(WebsocketConnectionConfig{
		ConnectionID:         connectionID,
		WebsocketConn:        wsConn,
		Logger:               wn.cfg.Logger,
		WriteTimeout:         wn.cfg.WsConnWriteTimeout,
		WriteBufferSize:      wn.cfg.WsConnWriteBufferSize,
		ProcessBufferSize:    wn.cfg.WsConnProcessBufferSize,
		OnMessageSentHandler: wn.cfg.OnMessageSentHandler,
	})
	if err != nil {
		wsConn.Close()
		wn.cfg.Logger.Error("failed to create websocket connection", "error", err, "connectionID", connectionID)
		return
	}

	wn.cfg.OnConnectHandler(connectionID)
	wn.cfg.Logger.Info("connection established", "connectionID", connectionID)
	defer func() {
		wn.cfg.OnDisconnectHandler(connectionID)
		wn.cfg.Logger.Info("connection closed", "connectionID", connectionID)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	wg := &sync.WaitGroup{}
	wg.Add(2)
	handleClosure := func(error) {
		cancel()
		wg.Done()
	}

	go conn.Serve(ctx, handleClosure)
	go wn.processRequests(ctx, conn, handleClosure)

	wg.Wait()
}

func (wn *WebsocketNode) processRequests(ctx context.Context, conn Connection, handleClosure func(error)) {
	defer handleClosure(nil)

	for {
		var messageBytes []byte
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.RawRequests():
			if !ok {
				return
			}
			messageBytes = msg
		}

		wn.processRequest(ctx, conn, messageBytes)
	}
}

func (wn *WebsocketNode) processRequest(ctx context.Context, conn Connection, messageBytes []byte) {
	var req Request
	if err := json.Unmarshal(messageBytes, &req); err != nil {
		wn.cfg.Logger.Debug("invalid message format", "error", err, "message", string(messageBytes))
		wn.sendErrorResponse(conn, req.Req.RequestID, invalidMessageFormat)
		return
	}

	identity, err := requestIdentity(req)
	if err != nil {
		wn.cfg.Logger.Debug("rejecting request with invalid signature", "error", err, "method", req.Req.Method)
		wn.sendErrorResponse(conn, req.Req.RequestID, invalidSignatureMessage)
		return
	}

	handlers, err := wn.resolveRoute(req.Req.Method)
	if err != nil {
		wn.sendErrorResponse(conn, req.Req.RequestID, err.Error())
		return
	}

	wn.cfg.Logger.Debug("processing request",
		"connectionID", conn.ConnectionID(),
		"requestID", req.Req.RequestID,
		"method", req.Req.Method,
		"identity", identity)

	c := &Context{
		Context:  ctx,
		Identity: identity,
		Signer:   wn.cfg.Signer,
		Request:  req,
		handlers: handlers,
	}
	c.Next()

	responseBytes, err := c.GetRawResponse()
	if err != nil {
		wn.cfg.Logger.Error("failed to prepare response", "error", err, "method", req.Req.Method)
		wn.sendErrorResponse(conn, req.Req.RequestID, defaultNodeErrorMessage)
		return
	}
	conn.WriteRawResponse(responseBytes)
}

// requestIdentity returns the hex address behind the first signature, or ""
// for an unsigned request.
func requestIdentity(req Request) (string, error) {
	if len(req.Sig) == 0 {
		return "", nil
	}

	hash, err := req.Req.Hash()
	if err != nil {
		return "", err
	}
	addr, err := sign.RecoverWeb3AddressFromHash(hash, req.Sig[0])
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// resolveRoute concatenates the middleware of every group on the method's
// route followed by the method handler.
func (wn *WebsocketNode) resolveRoute(method string) ([]Handler, error) {
	route, ok := wn.routes[method]
	if !ok || len(route) == 0 {
		return nil, Errorf("unknown method: %s", method)
	}

	var handlers []Handler
	for _, id := range route {
		chain, exists := wn.handlerChain[id]
		if !exists {
			// groups without middleware have no chain entry
			continue
		}
		handlers = append(handlers, chain...)
	}
	if len(handlers) == 0 {
		return nil, Errorf("unknown method: %s", method)
	}
	return handlers, nil
}

func (wn *WebsocketNode) sendErrorResponse(conn Connection, requestID uint64, message string) {
	res := NewErrorResponse(requestID, message)
	responseBytes, err := prepareRawResponse(wn.cfg.Signer, res.Res)
	if err != nil {
		wn.cfg.Logger.Error("failed to prepare error response", "error", err)
		return
	}
	conn.WriteRawResponse(responseBytes)
}

func (wn *WebsocketNode) handlePing(c *Context) {
	c.Succeed(PongMethod.String(), nil)
}

func (wn *WebsocketNode) NewGroup(name string) HandlerGroup {
	return &WebsocketHandlerGroup{
		groupID:     nodeGroupHandlerPrefix + name,
		routePrefix: []string{wn.groupID},
		root:        wn,
	}
}

func (wn *WebsocketNode) Handle(method string, handler Handler) {
	wn.handle(method, handler)
	wn.routes[method] = []string{wn.groupID, method}
}

func (wn *WebsocketNode) Use(middleware Handler) {
	wn.use(wn.groupID, middleware)
}

func (wn *WebsocketNode) handle(method string, handler Handler) {
	if method == "" {
		panic("websocket method cannot be empty")
	}
	if handler == nil {
		panic(fmt.Sprintf("websocket handler cannot be nil for method %s", method))
	}
	wn.handlerChain[method] = []Handler{handler}
}

func (wn *WebsocketNode) use(groupID string, middleware Handler) {
	if middleware == nil {
		panic("websocket middleware cannot be nil")
	}
	wn.handlerChain[groupID] = append(wn.handlerChain[groupID], middleware)
}

// WebsocketHandlerGroup registers into its root node under a dotted group id.
type WebsocketHandlerGroup struct {
	groupID     string
	routePrefix []string
	root        *WebsocketNode
}

func (hg *WebsocketHandlerGroup) NewGroup(name string) HandlerGroup {
	prefix := append(append([]string{}, hg.routePrefix...), hg.groupID)
	return &WebsocketHandlerGroup{
		groupID:     hg.groupID + "." + name,
		routePrefix: prefix,
		root:        hg.root,
	}
}

func (hg *WebsocketHandlerGroup) Handle(method string, handler Handler) {
	hg.root.handle(method, handler)
	route := append(append([]string{}, hg.routePrefix...), hg.groupID, method)
	hg.root.routes[method] = route
}

func (hg *WebsocketHandlerGroup) Use(middleware Handler) {
	hg.root.use(hg.groupID, middleware)
}
