package main

import (
	"context"
	"sync"

	"github.com/erc7824/docvault/pkg/sign"
)

// EncryptedDocument is client-side ciphertext. It is stored and returned verbatim.
type EncryptedDocument []byte

// State holds the two vault mappings: identity to address ("users") and
// address to an append-only document sequence ("documents"). Every method is
// atomic with respect to the others.
type State interface {
	// SetUserAddress records addr for id, replacing any previous address.
	SetUserAddress(ctx context.Context, id Identity, addr sign.Web3Address) error
	// UserAddress fails with ErrNotAuthenticated when id has no address.
	UserAddress(ctx context.Context, id Identity) (sign.Web3Address, error)
	// AppendDocument appends doc under id's address and returns how many
	// documents that address holds. It fails with ErrNotAuthenticated when id
	// has no address, leaving documents untouched.
	AppendDocument(ctx context.Context, id Identity, doc EncryptedDocument) (int, error)
	// Documents returns a snapshot of the documents under id's address in
	// append order, or an empty slice when id has no address.
	Documents(ctx context.Context, id Identity) ([]EncryptedDocument, error)
}

var _ State = &MemoryState{}

// MemoryState keeps both mappings in process memory.
type MemoryState struct {
	mu        sync.RWMutex
	users     map[Identity]sign.Web3Address
	documents map[sign.Web3Address][]EncryptedDocument
}

// NewMemoryState returns an empty in-process State.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		users:     make(map[Identity]sign.Web3Address),
		documents: make(map[sign.Web3Address][]EncryptedDocument),
	}
}

func (s *MemoryState) SetUserAddress(_ context.Context, id Identity, addr sign.Web3Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[id] = addr
	return nil
}

func (s *MemoryState) UserAddress(_ context.Context, id Identity) (sign.Web3Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr, ok := s.users[id]
	if !ok {
		return sign.Web3Address{}, ErrNotAuthenticated
	}
	return addr, nil
}

func (s *MemoryState) AppendDocument(_ context.Context, id Identity, doc EncryptedDocument) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.users[id]
	if !ok {
		return 0, ErrNotAuthenticated
	}
	s.documents[addr] = append(s.documents[addr], cloneDocument(doc))
	return len(s.documents[addr]), nil
}

func (s *MemoryState) Documents(_ context.Context, id Identity) ([]EncryptedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr, ok := s.users[id]
	if !ok {
		return []EncryptedDocument{}, nil
	}

	stored := s.documents[addr]
	docs := make([]EncryptedDocument, len(stored))
	for i, doc := range stored {
		docs[i] = cloneDocument(doc)
	}
	return docs, nil
}

func cloneDocument(doc EncryptedDocument) EncryptedDocument {
	return append(EncryptedDocument{}, doc...)
}
