package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"entrypass/internal/profile/models"
)

// Encode turns an entity into a record ready for a backend.
func Encode(e models.Entity) (Record, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	base := e.Base()
	return Record{
		Table:       e.Kind(),
		ID:          base.ID,
		UserID:      base.UserID,
		Destination: e.Destination(),
		Payload:     payload,
		CreatedAt:   base.CreatedAt,
		UpdatedAt:   base.UpdatedAt,
	}, nil
}

// Decode restores the entity held by rec. Identity and timestamps come from
// the record columns, not the payload.
func Decode(rec Record) (models.Entity, error) {
	e, err := models.New(rec.Table)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rec.Payload, e); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", rec.Table, rec.ID, err)
	}
	base := e.Base()
	base.ID = rec.ID
	base.UserID = rec.UserID
	base.CreatedAt = rec.CreatedAt
	base.UpdatedAt = rec.UpdatedAt
	return e, nil
}

var errShortPayload = errors.New("sealed payload too short")

// Sealer encrypts payloads at rest with XChaCha20-Poly1305. The record ID is
// bound as additional data so a payload cannot be moved between rows.
type Sealer struct {
	key []byte
}

// NewSealer validates a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes", chacha20poly1305.KeySize)
	}
	return &Sealer{key: append([]byte(nil), key...)}, nil
}

// Seal returns nonce || ciphertext.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, errShortPayload
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}
	return plaintext, nil
}
