package cryptoutil

import (
	"io"

	"github.com/minio/sio"
)

// Payload documents are sealed as DARE streams so large dashboards never have to be
// held twice in memory.

func payloadConfig(key []byte) sio.Config {
	return sio.Config{Key: key, MinVersion: sio.Version20}
}

// EncryptWriter seals everything written to the returned writer into w. Close must be
// called to flush the final package.
func EncryptWriter(w io.Writer, key []byte) (io.WriteCloser, error) {
	return sio.EncryptWriter(w, payloadConfig(key))
}

// DecryptReader opens a stream produced by EncryptWriter. Tampering surfaces as a read
// error.
func DecryptReader(r io.Reader, key []byte) (io.Reader, error) {
	return sio.DecryptReader(r, payloadConfig(key))
}
