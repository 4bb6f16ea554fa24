package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// Sealed configs are laid out as magic(4) | version(2, big endian) | nonce | AES-GCM
// ciphertext. The header is authenticated as additional data.
const (
	configMagic   = "CRS1"
	configVersion = uint16(1)
	headerLen     = len(configMagic) + 2
)

var ErrSealedConfig = errors.New("invalid sealed config")

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func configHeader() []byte {
	header := make([]byte, headerLen)
	copy(header, configMagic)
	binary.BigEndian.PutUint16(header[len(configMagic):], configVersion)
	return header
}

// EncryptConfig seals a config file body.
func EncryptConfig(plain []byte, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	header := configHeader()
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := append(header, nonce...)
	return aead.Seal(out, nonce, plain, header), nil
}

// DecryptConfig opens a body sealed by EncryptConfig.
func DecryptConfig(sealed []byte, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < headerLen+aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: too short", ErrSealedConfig)
	}
	header := sealed[:headerLen]
	if string(header[:len(configMagic)]) != configMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrSealedConfig)
	}
	if v := binary.BigEndian.Uint16(header[len(configMagic):]); v != configVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSealedConfig, v)
	}
	nonce := sealed[headerLen : headerLen+aead.NonceSize()]
	plain, err := aead.Open(nil, nonce, sealed[headerLen+aead.NonceSize():], header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealedConfig, err)
	}
	return plain, nil
}
