package export

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the signed metadata included in every export bundle.
type Manifest struct {
	Version          string          `yaml:"version"`
	CreatedAt        time.Time       `yaml:"created_at"`
	SessionID        string          `yaml:"session_id,omitempty"`
	OwnerID          string          `yaml:"owner_id,omitempty"`
	Signer           string          `yaml:"signer,omitempty"`
	SigningPublicKey string          `yaml:"signing_public_key,omitempty"`
	Signature        string          `yaml:"signature,omitempty"`
	Entries          []ManifestEntry `yaml:"entries"`
}

// SigningBytes marshals the manifest without its signature for signing/verification.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}

// ManifestEntry describes a single file within the bundle.
type ManifestEntry struct {
	Path   string `yaml:"path"`
	Kind   string `yaml:"kind"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}
