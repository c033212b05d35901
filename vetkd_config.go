package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/erc7824/docvault/pkg/sign"
	"github.com/erc7824/docvault/pkg/vetkd"
)

const (
	vetkdConfigFileName = "vetkd.yaml"
	kdsServiceIDEnv     = "DOCVAULT_KDS_SERVICE_ID"

	SymmetricKeyPurpose  = "symmetric_key"
	IBEEncryptionPurpose = "ibe_encryption"
)

// DerivationIDSource tells which caller value a key purpose derives from.
type DerivationIDSource string

const (
	// DerivationFromAddress derives from the caller's authenticated address.
	DerivationFromAddress DerivationIDSource = "address"
	// DerivationFromIdentity derives from the raw caller identity bytes.
	DerivationFromIdentity DerivationIDSource = "identity"
)

// KeyPurpose is a named derivation path. DerivationID picks whether keys of
// this purpose are bound to the caller's address or to its identity.
type KeyPurpose struct {
	Name         string             `yaml:"name" validate:"required"`
	DerivationID DerivationIDSource `yaml:"derivation_id" validate:"required,oneof=address identity"`
}

// VetKDConfig describes the key derivation service and the key purposes the
// vault serves.
type VetKDConfig struct {
	ServiceID string       `yaml:"service_id" validate:"required"`
	KeyID     vetkd.KeyID  `yaml:"key_id" validate:"required"`
	Purposes  []KeyPurpose `yaml:"purposes" validate:"required,min=1,unique=Name,dive"`

	serviceID sign.Web3Address
}

// DefaultVetKDConfig serves the symmetric_key and ibe_encryption purposes with
// the test key. ServiceID has no default.
func DefaultVetKDConfig() VetKDConfig {
	return VetKDConfig{
		KeyID: vetkd.DefaultKeyID,
		Purposes: []KeyPurpose{
			{Name: SymmetricKeyPurpose, DerivationID: DerivationFromAddress},
			{Name: IBEEncryptionPurpose, DerivationID: DerivationFromIdentity},
		},
	}
}

// LoadVetKDConfig reads vetkd.yaml from configDirPath. Defaults are used when
// the file does not exist. DOCVAULT_KDS_SERVICE_ID overrides service_id.
func LoadVetKDConfig(configDirPath string) (VetKDConfig, error) {
	cfg := DefaultVetKDConfig()

	f, err := os.Open(filepath.Join(configDirPath, vetkdConfigFileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return VetKDConfig{}, err
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return VetKDConfig{}, fmt.Errorf("failed to decode %s: %w", vetkdConfigFileName, err)
		}
	}

	if serviceID := os.Getenv(kdsServiceIDEnv); serviceID != "" {
		cfg.ServiceID = serviceID
	}

	if err := cfg.Validate(); err != nil {
		return VetKDConfig{}, err
	}
	return cfg, nil
}

// Validate checks the config and resolves the service address.
func (c *VetKDConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid key derivation config: %w", err)
	}

	addr, err := sign.HexToWeb3Address(c.ServiceID)
	if err != nil {
		return fmt.Errorf("invalid service_id %q: %w", c.ServiceID, err)
	}
	if addr.IsZero() {
		return fmt.Errorf("service_id cannot be the zero address")
	}
	c.serviceID = addr
	return nil
}

// ServiceAddress is the address the KDS signs its replies with. Valid after Validate.
func (c VetKDConfig) ServiceAddress() sign.Web3Address { return c.serviceID }

// Purpose looks up a purpose by name. Unknown names yield ErrUnknownKeyPurpose.
func (c VetKDConfig) Purpose(name string) (KeyPurpose, error) {
	for _, p := range c.Purposes {
		if p.Name == name {
			return p, nil
		}
	}
	return KeyPurpose{}, fmt.Errorf("%w: %s", ErrUnknownKeyPurpose, name)
}
