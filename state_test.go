package main

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/docvault/pkg/sign"
)

func stateBackends(t *testing.T) map[string]func(t *testing.T) State {
	t.Helper()
	return map[string]func(t *testing.T) State{
		StateDriverMemory: func(t *testing.T) State { return NewMemoryState() },
		StateDriverSqlite: func(t *testing.T) State {
			db, err := ConnectToSqlite()
			require.NoError(t, err)
			t.Cleanup(func() {
				if sqlDB, err := db.DB(); err == nil {
					sqlDB.Close()
				}
			})
			return NewDBState(db)
		},
	}
}

func testAddress(b byte) sign.Web3Address {
	var a sign.Web3Address
	for i := range a {
		a[i] = b
	}
	return a
}

func TestState(t *testing.T) {
	for name, newState := range stateBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("unknown identity has no address", func(t *testing.T) {
				s := newState(t)
				_, err := s.UserAddress(ctx, "0x01")
				require.ErrorIs(t, err, ErrNotAuthenticated)
			})

			t.Run("set address overwrites", func(t *testing.T) {
				s := newState(t)
				require.NoError(t, s.SetUserAddress(ctx, "0x01", testAddress(1)))
				require.NoError(t, s.SetUserAddress(ctx, "0x01", testAddress(2)))

				addr, err := s.UserAddress(ctx, "0x01")
				require.NoError(t, err)
				assert.Equal(t, testAddress(2), addr)
			})

			t.Run("append without address leaves documents untouched", func(t *testing.T) {
				s := newState(t)
				_, err := s.AppendDocument(ctx, "0x01", EncryptedDocument("doc"))
				require.ErrorIs(t, err, ErrNotAuthenticated)

				require.NoError(t, s.SetUserAddress(ctx, "0x01", testAddress(1)))
				docs, err := s.Documents(ctx, "0x01")
				require.NoError(t, err)
				assert.Empty(t, docs)
			})

			t.Run("documents keep append order", func(t *testing.T) {
				s := newState(t)
				require.NoError(t, s.SetUserAddress(ctx, "0x01", testAddress(1)))

				for i, doc := range []string{"A", "B", "A"} {
					count, err := s.AppendDocument(ctx, "0x01", EncryptedDocument(doc))
					require.NoError(t, err)
					assert.Equal(t, i+1, count)
				}

				docs, err := s.Documents(ctx, "0x01")
				require.NoError(t, err)
				assert.Equal(t, []EncryptedDocument{EncryptedDocument("A"), EncryptedDocument("B"), EncryptedDocument("A")}, docs)
			})

			t.Run("empty document is kept", func(t *testing.T) {
				s := newState(t)
				require.NoError(t, s.SetUserAddress(ctx, "0x01", testAddress(1)))
				_, err := s.AppendDocument(ctx, "0x01", EncryptedDocument{})
				require.NoError(t, err)

				docs, err := s.Documents(ctx, "0x01")
				require.NoError(t, err)
				require.Len(t, docs, 1)
				assert.Empty(t, docs[0])
			})

			t.Run("documents without address are empty", func(t *testing.T) {
				s := newState(t)
				docs, err := s.Documents(ctx, "0x01")
				require.NoError(t, err)
				assert.NotNil(t, docs)
				assert.Empty(t, docs)
			})

			t.Run("identities sharing an address share documents", func(t *testing.T) {
				s := newState(t)
				require.NoError(t, s.SetUserAddress(ctx, "0x01", testAddress(1)))
				require.NoError(t, s.SetUserAddress(ctx, "0x02", testAddress(1)))

				_, err := s.AppendDocument(ctx, "0x01", EncryptedDocument("one"))
				require.NoError(t, err)
				count, err := s.AppendDocument(ctx, "0x02", EncryptedDocument("two"))
				require.NoError(t, err)
				assert.Equal(t, 2, count)

				docs, err := s.Documents(ctx, "0x01")
				require.NoError(t, err)
				assert.Len(t, docs, 2)
			})

			t.Run("re-authentication keeps old documents under the old address", func(t *testing.T) {
				s := newState(t)
				require.NoError(t, s.SetUserAddress(ctx, "0x01", testAddress(1)))
				_, err := s.AppendDocument(ctx, "0x01", EncryptedDocument("old"))
				require.NoError(t, err)

				require.NoError(t, s.SetUserAddress(ctx, "0x01", testAddress(2)))
				docs, err := s.Documents(ctx, "0x01")
				require.NoError(t, err)
				assert.Empty(t, docs)

				require.NoError(t, s.SetUserAddress(ctx, "0x02", testAddress(1)))
				docs, err = s.Documents(ctx, "0x02")
				require.NoError(t, err)
				assert.Equal(t, []EncryptedDocument{EncryptedDocument("old")}, docs)
			})

			t.Run("returned documents are snapshots", func(t *testing.T) {
				s := newState(t)
				require.NoError(t, s.SetUserAddress(ctx, "0x01", testAddress(1)))

				doc := EncryptedDocument("abc")
				_, err := s.AppendDocument(ctx, "0x01", doc)
				require.NoError(t, err)
				doc[0] = 'x'

				docs, err := s.Documents(ctx, "0x01")
				require.NoError(t, err)
				docs[0][1] = 'y'

				docs, err = s.Documents(ctx, "0x01")
				require.NoError(t, err)
				assert.Equal(t, EncryptedDocument("abc"), docs[0])
			})

			t.Run("concurrent appends are all kept", func(t *testing.T) {
				s := newState(t)
				require.NoError(t, s.SetUserAddress(ctx, "0x01", testAddress(1)))

				const n = 20
				var wg sync.WaitGroup
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						_, err := s.AppendDocument(ctx, "0x01", EncryptedDocument(fmt.Sprint(i)))
						assert.NoError(t, err)
					}(i)
				}
				wg.Wait()

				docs, err := s.Documents(ctx, "0x01")
				require.NoError(t, err)
				assert.Len(t, docs, n)
			})
		})
	}
}

func TestNewState(t *testing.T) {
	logger := testLogger()

	s, err := NewState(StateConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryState{}, s)

	s, err = NewState(StateConfig{Driver: StateDriverSqlite}, logger)
	require.NoError(t, err)
	assert.IsType(t, &DBState{}, s)

	_, err = NewState(StateConfig{Driver: "postgres"}, logger)
	require.EqualError(t, err, `unsupported state driver: "postgres"`)
}

func TestConnectToSqlite_Isolated(t *testing.T) {
	ctx := context.Background()

	first, err := ConnectToSqlite()
	require.NoError(t, err)
	second, err := ConnectToSqlite()
	require.NoError(t, err)

	require.NoError(t, NewDBState(first).SetUserAddress(ctx, "0x01", testAddress(1)))
	_, err = NewDBState(second).UserAddress(ctx, "0x01")
	require.ErrorIs(t, err, ErrNotAuthenticated)
}
