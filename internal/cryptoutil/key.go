package cryptoutil

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// KeySize is the length of every key used for payloads and encrypted configs.
const KeySize = 32

// ParseKey decodes a 32-byte key. Accepted forms are "base64:<b64>", "hex:<hex>",
// "file:<path>" (the file holds one of the other forms), or a bare base64/hex string.
func ParseKey(key string) ([]byte, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, errors.New("encryption key is empty")
	}
	if name, ok := strings.CutPrefix(trimmed, "file:"); ok {
		raw, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		if strings.HasPrefix(strings.TrimSpace(string(raw)), "file:") {
			return nil, errors.New("key file must not point at another key file")
		}
		return ParseKey(string(raw))
	}

	var data []byte
	var err error
	switch {
	case strings.HasPrefix(trimmed, "base64:"):
		data, err = base64.StdEncoding.DecodeString(strings.TrimPrefix(trimmed, "base64:"))
	case strings.HasPrefix(trimmed, "hex:"):
		data, err = hex.DecodeString(strings.TrimPrefix(trimmed, "hex:"))
	default:
		data, err = base64.StdEncoding.DecodeString(trimmed)
		if err != nil || len(data) != KeySize {
			// 64 hex digits also decode as base64, so fall back on length too.
			if h, hexErr := hex.DecodeString(trimmed); hexErr == nil {
				data, err = h, nil
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(data) != KeySize {
		return nil, fmt.Errorf("invalid key length: %d (expected %d bytes)", len(data), KeySize)
	}
	return data, nil
}
