// Package vetkdtest runs an in-process key derivation service for tests.
//
// Its keys are keccak256 chains over the request fields, not real vetKD
// material: equal requests give equal keys and any differing field gives a
// different key.
package vetkdtest

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"

	"github.com/erc7824/docvault/pkg/log"
	"github.com/erc7824/docvault/pkg/rpc"
	"github.com/erc7824/docvault/pkg/sign"
	"github.com/erc7824/docvault/pkg/vetkd"
)

const (
	publicKeyLength    = 96
	encryptedKeyLength = 192
)

// Server is a stub KDS listening on a loopback websocket.
type Server struct {
	URL    string
	Signer *sign.EthereumSigner

	mu        sync.Mutex
	calls     map[string]int
	failWith  string
	replySign sign.Signer
	emptyKeys bool
}

// NewServer starts a stub KDS that stops when t finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()

	signer, err := sign.GenerateEthereumSigner()
	if err != nil {
		t.Fatalf("generate kds signer: %v", err)
	}

	s := &Server{Signer: signer, calls: make(map[string]int)}
	s.replySign = &switchableSigner{server: s}

	node, err := rpc.NewWebsocketNode(rpc.WebsocketNodeConfig{Signer: s.replySign, Logger: log.NewNoopLogger()})
	if err != nil {
		t.Fatalf("create kds node: %v", err)
	}
	validate := validator.New()
	node.Use(s.countCalls)
	node.Use(s.injectFailure)
	node.Handle(vetkd.PublicKeyMethod, func(c *rpc.Context) { s.handlePublicKey(c, validate) })
	node.Handle(vetkd.EncryptedKeyMethod, func(c *rpc.Context) { s.handleEncryptedKey(c, validate) })

	server := httptest.NewServer(node)
	t.Cleanup(server.Close)
	s.URL = "ws" + strings.TrimPrefix(server.URL, "http")
	return s
}

// ServiceID is the address replies are signed with.
func (s *Server) ServiceID() sign.Web3Address { return s.Signer.Address() }

// Calls returns how many requests reached method.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// FailWith makes every following request fail with msg. An empty msg clears it.
func (s *Server) FailWith(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = msg
}

// SignRepliesWith makes the server sign replies with another key, posing as an impostor.
func (s *Server) SignRepliesWith(signer sign.Signer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replySign.(*switchableSigner).override = signer
}

// ReturnEmptyKeys makes the server answer successfully with empty keys.
func (s *Server) ReturnEmptyKeys(empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emptyKeys = empty
}

// ExpectedPublicKey is the key the stub returns for req when asked by requester.
func ExpectedPublicKey(requester sign.Web3Address, req vetkd.PublicKeyRequest) []byte {
	service := requester
	if req.ServiceID != nil {
		service = *req.ServiceID
	}
	parts := [][]byte{[]byte("public_key"), service.Bytes(), []byte(req.KeyID.String())}
	for _, label := range req.DerivationPath {
		parts = append(parts, label)
	}
	return expand(publicKeyLength, parts...)
}

// ExpectedEncryptedKey is the key the stub returns for req when asked by requester.
func ExpectedEncryptedKey(requester sign.Web3Address, req vetkd.EncryptedKeyRequest) []byte {
	parts := [][]byte{[]byte("encrypted_key"), requester.Bytes(), []byte(req.KeyID.String()), req.DerivationID, req.EncryptionPublicKey}
	for _, label := range req.DerivationPath {
		parts = append(parts, label)
	}
	return expand(encryptedKeyLength, parts...)
}

func (s *Server) countCalls(c *rpc.Context) {
	s.mu.Lock()
	s.calls[c.Request.Req.Method]++
	s.mu.Unlock()
	c.Next()
}

func (s *Server) injectFailure(c *rpc.Context) {
	s.mu.Lock()
	msg := s.failWith
	s.mu.Unlock()

	if msg != "" {
		c.Fail(rpc.Errorf("%s", msg), "")
		return
	}
	c.Next()
}

func (s *Server) handlePublicKey(c *rpc.Context, validate *validator.Validate) {
	var req vetkd.PublicKeyRequest
	requester, ok := parseRequest(c, validate, &req)
	if !ok {
		return
	}

	reply := vetkd.PublicKeyReply{PublicKey: ExpectedPublicKey(requester, req)}
	if s.returnsEmpty() {
		reply.PublicKey = nil
	}
	succeed(c, reply)
}

func (s *Server) handleEncryptedKey(c *rpc.Context, validate *validator.Validate) {
	var req vetkd.EncryptedKeyRequest
	requester, ok := parseRequest(c, validate, &req)
	if !ok {
		return
	}

	reply := vetkd.EncryptedKeyReply{EncryptedKey: ExpectedEncryptedKey(requester, req)}
	if s.returnsEmpty() {
		reply.EncryptedKey = nil
	}
	succeed(c, reply)
}

func (s *Server) returnsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emptyKeys
}

// parseRequest requires a signed request, since keys are scoped to the requester.
func parseRequest(c *rpc.Context, validate *validator.Validate, req any) (sign.Web3Address, bool) {
	if c.Identity == "" {
		c.Fail(rpc.Errorf("unsigned request"), "")
		return sign.Web3Address{}, false
	}
	requester, err := sign.HexToWeb3Address(c.Identity)
	if err != nil {
		c.Fail(err, "")
		return sign.Web3Address{}, false
	}
	if err := c.Request.Req.Params.Translate(req); err != nil {
		c.Fail(rpc.Errorf("invalid parameters: %v", err), "")
		return sign.Web3Address{}, false
	}
	if err := validate.Struct(req); err != nil {
		c.Fail(rpc.Errorf("invalid parameters: %v", err), "")
		return sign.Web3Address{}, false
	}
	return requester, true
}

func succeed(c *rpc.Context, reply any) {
	params, err := rpc.NewParams(reply)
	if err != nil {
		c.Fail(err, "")
		return
	}
	c.Succeed(c.Request.Req.Method, params)
}

func expand(n int, parts ...[]byte) []byte {
	seed := crypto.Keccak256(parts...)
	out := make([]byte, 0, n+32)
	for block := seed; len(out) < n; block = crypto.Keccak256(block) {
		out = append(out, block...)
	}
	return out[:n]
}

// switchableSigner signs as the server unless an override is set.
type switchableSigner struct {
	server   *Server
	override sign.Signer
}

func (s *switchableSigner) current() sign.Signer {
	s.server.mu.Lock()
	defer s.server.mu.Unlock()
	if s.override != nil {
		return s.override
	}
	return s.server.Signer
}

func (s *switchableSigner) Address() sign.Web3Address { return s.current().Address() }

func (s *switchableSigner) Sign(hash []byte) (sign.Signature, error) { return s.current().Sign(hash) }
