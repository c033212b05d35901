package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erc7824/docvault/pkg/sign"
)

// VaultUser is a row of the users mapping.
type VaultUser struct {
	Identity  string    `gorm:"column:identity;primaryKey"`
	Address   string    `gorm:"column:address;not null;index"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (VaultUser) TableName() string { return "vault_users" }

// VaultDocument is one stored document. ID order is append order.
type VaultDocument struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Address   string    `gorm:"column:address;not null;index"`
	Blob      []byte    `gorm:"column:blob;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (VaultDocument) TableName() string { return "vault_documents" }

var _ State = &DBState{}

// DBState keeps both mappings in a gorm database. Multi-step operations run
// in one transaction.
type DBState struct {
	db *gorm.DB
}

// NewDBState expects db to be migrated already, see ConnectToSqlite.
func NewDBState(db *gorm.DB) *DBState {
	return &DBState{db: db}
}

func (s *DBState) SetUserAddress(ctx context.Context, id Identity, addr sign.Web3Address) error {
	user := VaultUser{Identity: string(id), Address: addr.String()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return fmt.Errorf("failed to save user address: %w", err)
	}
	return nil
}

func (s *DBState) UserAddress(ctx context.Context, id Identity) (sign.Web3Address, error) {
	return userAddress(s.db.WithContext(ctx), id)
}

func (s *DBState) AppendDocument(ctx context.Context, id Identity, doc EncryptedDocument) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		addr, err := userAddress(tx, id)
		if err != nil {
			return err
		}

		blob := []byte(doc)
		if blob == nil {
			blob = []byte{}
		}
		if err := tx.Create(&VaultDocument{Address: addr.String(), Blob: blob}).Error; err != nil {
			return fmt.Errorf("failed to store document: %w", err)
		}
		return tx.Model(&VaultDocument{}).Where("address = ?", addr.String()).Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *DBState) Documents(ctx context.Context, id Identity) ([]EncryptedDocument, error) {
	var rows []VaultDocument
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		addr, err := userAddress(tx, id)
		if err != nil {
			return err
		}
		return tx.Where("address = ?", addr.String()).Order("id ASC").Find(&rows).Error
	})
	if errors.Is(err, ErrNotAuthenticated) {
		return []EncryptedDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	docs := make([]EncryptedDocument, len(rows))
	for i, row := range rows {
		docs[i] = EncryptedDocument(row.Blob)
	}
	return docs, nil
}

func userAddress(tx *gorm.DB, id Identity) (sign.Web3Address, error) {
	var user VaultUser
	err := tx.Where("identity = ?", string(id)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sign.Web3Address{}, ErrNotAuthenticated
	}
	if err != nil {
		return sign.Web3Address{}, fmt.Errorf("failed to look up user: %w", err)
	}
	return sign.HexToWeb3Address(user.Address)
}
