package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceSize   = 24
	sealedLabel = "sb1:"
)

var ErrSealedValueInvalid = errors.New("sealed value invalid")

// Sealer cifra los tokens en reposo con NaCl secretbox. Un Sealer nil deja los valores en claro.
type Sealer struct {
	key [32]byte
}

// NewSealer deriva la clave de 32 bytes a partir del secreto configurado.
func NewSealer(secret string) *Sealer {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	return &Sealer{key: sha256.Sum256([]byte(secret))}
}

func (s *Sealer) Seal(plain string) (string, error) {
	if s == nil {
		return plain, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return sealedLabel + base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	if s == nil {
		return sealed, nil
	}
	if !strings.HasPrefix(sealed, sealedLabel) {
		return "", ErrSealedValueInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealedLabel))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrSealedValueInvalid
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrSealedValueInvalid
	}
	return string(plain), nil
}
