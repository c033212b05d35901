package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erc7824/docvault/pkg/log"
	"github.com/erc7824/docvault/pkg/rpc"
	"github.com/erc7824/docvault/pkg/sign"
)

const tracerName = "github.com/erc7824/docvault"

// RPCRouter owns the websocket node and serves the vault API on it. Public
// methods accept anonymous callers; the private group requires a signed
// request.
type RPCRouter struct {
	Node    *rpc.WebsocketNode
	Signer  sign.Signer
	Vault   *Vault
	VetKD   VetKDConfig
	Metrics *Metrics

	tracer   trace.Tracer
	validate *validator.Validate
	lg       log.Logger
}

// NewRPCRouter creates the vault RPC node and registers every vault method on it.
func NewRPCRouter(
	signer sign.Signer,
	vault *Vault,
	vetkdConf VetKDConfig,
	metrics *Metrics,
	tracerProvider trace.TracerProvider,
	logger log.Logger,
) (*RPCRouter, error) {
	r := &RPCRouter{
		Signer:   signer,
		Vault:    vault,
		VetKD:    vetkdConf,
		Metrics:  metrics,
		tracer:   tracerProvider.Tracer(tracerName),
		validate: getValidator(),
		lg:       logger.WithName("rpc-router"),
	}

	node, err := rpc.NewWebsocketNode(rpc.WebsocketNodeConfig{
		Signer:               signer,
		Logger:               logger,
		OnConnectHandler:     r.HandleConnect,
		OnDisconnectHandler:  r.HandleDisconnect,
		OnMessageSentHandler: r.HandleMessageSent,
	})
	if err != nil {
		return nil, err
	}
	r.Node = node

	r.Node.Use(r.LoggerMiddleware)
	r.Node.Use(r.TracingMiddleware)
	r.Node.Use(r.MetricsMiddleware)
	r.Node.Handle(rpc.GetConfigMethod.String(), r.HandleGetConfig)
	r.Node.Handle(rpc.AuthenticateMethod.String(), r.HandleAuthenticate)
	r.Node.Handle(rpc.ListDocumentsMethod.String(), r.HandleListDocuments)
	r.Node.Handle(rpc.SymmetricKeyVerificationKeyMethod.String(), r.verificationKeyHandler(SymmetricKeyPurpose))
	r.Node.Handle(rpc.IBEEncryptionKeyMethod.String(), r.verificationKeyHandler(IBEEncryptionPurpose))

	privGroup := r.Node.NewGroup("private")
	privGroup.Use(r.AuthMiddleware)
	privGroup.Handle(rpc.GetMyAddressMethod.String(), r.HandleGetMyAddress)
	privGroup.Handle(rpc.StoreDocumentMethod.String(), r.HandleStoreDocument)
	privGroup.Handle(rpc.EncryptedSymmetricKeyForCallerMethod.String(), r.decryptionKeyHandler(SymmetricKeyPurpose))
	privGroup.Handle(rpc.EncryptedIBEDecryptionKeyForCallerMethod.String(), r.decryptionKeyHandler(IBEEncryptionPurpose))

	return r, nil
}

// HandleConnect and HandleDisconnect keep the connection gauges current.
func (r *RPCRouter) HandleConnect(connectionID string) {
	r.Metrics.ConnectionsTotal.Inc()
	r.Metrics.ConnectedClients.Inc()
	r.lg.Debug("client connected", "connectionID", connectionID)
}

func (r *RPCRouter) HandleDisconnect(connectionID string) {
	r.Metrics.ConnectedClients.Dec()
	r.lg.Debug("client disconnected", "connectionID", connectionID)
}

// HandleMessageSent counts every response written to a client.
func (r *RPCRouter) HandleMessageSent([]byte) {
	r.Metrics.MessageSent.Inc()
}

// LoggerMiddleware puts a request scoped logger into the context and logs
// failed requests.
func (r *RPCRouter) LoggerMiddleware(c *rpc.Context) {
	logger := r.lg.WithKV("requestID", c.Request.Req.RequestID)
	c.Context = log.SetContextLogger(c.Context, logger)

	c.Next()

	if c.Failed() {
		logger.Warn("failed to handle RPC request",
			"identity", Identity(c.Identity),
			"method", c.Request.Req.Method,
			"error", c.Response.Res.Params.Error())
	}
}

// TracingMiddleware runs the rest of the chain inside one span per request.
// Loggers taken from the request context afterwards also record onto the span.
func (r *RPCRouter) TracingMiddleware(c *rpc.Context) {
	ctx, span := r.tracer.Start(c.Context, "rpc."+c.Request.Req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.method", c.Request.Req.Method),
			attribute.Int64("rpc.request_id", int64(c.Request.Req.RequestID)),
			attribute.Bool("docvault.anonymous", Identity(c.Identity).IsAnonymous()),
		))
	defer span.End()
	c.Context = log.SetContextLogger(ctx, log.FromContext(c.Context))

	c.Next()

	if c.Failed() {
		span.SetStatus(codes.Error, fmt.Sprint(c.Response.Res.Params.Error()))
	}
}

// MetricsMiddleware counts requests per method and outcome.
func (r *RPCRouter) MetricsMiddleware(c *rpc.Context) {
	r.Metrics.MessageReceived.Inc()

	reqMethod := c.Request.Req.Method
	c.Next()

	status := "success"
	if c.Failed() {
		status = "failure"
	}
	r.Metrics.RPCRequests.WithLabelValues(reqMethod, status).Inc()
}

// AuthMiddleware rejects unsigned requests before they reach a handler that
// needs a caller identity.
func (r *RPCRouter) AuthMiddleware(c *rpc.Context) {
	if Identity(c.Identity).IsAnonymous() {
		c.Fail(vaultError(ErrUnauthenticated), "")
		return
	}
	c.Next()
}

func getValidator() *validator.Validate {
	return validator.New()
}

// parseParams decodes the request params into unmarshalTo and validates it.
func (r *RPCRouter) parseParams(c *rpc.Context, unmarshalTo any) error {
	if err := c.Request.Req.Params.Translate(unmarshalTo); err != nil {
		return rpc.Errorf("failed to parse parameters: %v", err)
	}
	if err := r.validate.Struct(unmarshalTo); err != nil {
		return rpc.Errorf("invalid parameters: %v", err)
	}
	return nil
}

func succeed(c *rpc.Context, result any) {
	params, err := rpc.NewParams(result)
	if err != nil {
		log.FromContext(c.Context).Error("failed to encode response", "error", err)
		c.Fail(err, "failed to encode response")
		return
	}
	c.Succeed(c.Request.Req.Method, params)
}
