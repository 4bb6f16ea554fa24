package backupset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rowjay/content-restore/internal/compress"
	"github.com/rowjay/content-restore/internal/cryptoutil"
	"github.com/rowjay/content-restore/internal/manifest"
	"github.com/rowjay/content-restore/internal/storage"
)

const (
	DefaultManifestKey   = "manifest/sumologic-backup.csv"
	DefaultContentPrefix = "content"

	maxPayloadBytes = 64 << 20
)

// Options describes how a backup was laid out and encoded.
type Options struct {
	ManifestKey   string
	ContentPrefix string
	Compression   string
	Encryption    bool
	EncryptionKey string
}

// Set is a content backup: one manifest plus a JSON document per content item, stored
// under content/<backup_path>.json with optional compression and encryption suffixes.
type Set struct {
	Store storage.Storage
	opts  Options
	key   []byte
}

func New(store storage.Storage, opts Options) (*Set, error) {
	if opts.ManifestKey == "" {
		opts.ManifestKey = DefaultManifestKey
	}
	if opts.ContentPrefix == "" {
		opts.ContentPrefix = DefaultContentPrefix
	}
	kind, err := compress.Normalize(opts.Compression)
	if err != nil {
		return nil, err
	}
	opts.Compression = kind
	s := &Set{Store: store, opts: opts}
	if opts.Encryption {
		key, err := cryptoutil.ParseKey(opts.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("backup encryption key: %w", err)
		}
		s.key = key
	}
	return s, nil
}

// ManifestKey returns the storage key of the manifest.
func (s *Set) ManifestKey() string {
	return s.opts.ManifestKey
}

// ContentKey returns the storage key of the document saved for backupPath.
func (s *Set) ContentKey(backupPath string) string {
	name := strings.Trim(backupPath, "/") + ".json"
	if ext := compress.Extension(s.opts.Compression); ext != "" {
		name += "." + ext
	}
	if s.opts.Encryption {
		name += ".enc"
	}
	return storage.Key(s.opts.ContentPrefix, name)
}

// Manifest reads and parses the backup manifest. Any failure is reported as
// manifest.ErrUnreadable.
func (s *Set) Manifest(ctx context.Context) (*manifest.Manifest, error) {
	rc, err := s.Store.Get(ctx, s.opts.ManifestKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", manifest.ErrUnreadable, err)
	}
	defer rc.Close()
	return manifest.Load(rc)
}

// Payload returns the decoded document for backupPath. A missing document yields an
// error wrapping storage.ErrNotFound.
func (s *Set) Payload(ctx context.Context, backupPath string) (json.RawMessage, error) {
	key := s.ContentKey(backupPath)
	rc, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := io.Reader(rc)
	if s.opts.Encryption {
		reader, err = cryptoutil.DecryptReader(reader, s.key)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", key, err)
		}
	}
	decoded, err := compress.WrapReader(s.opts.Compression, reader)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", key, err)
	}
	defer decoded.Close()

	data, err := io.ReadAll(io.LimitReader(decoded, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) > maxPayloadBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", key, maxPayloadBytes)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not a JSON document", key)
	}
	return json.RawMessage(data), nil
}

// PutPayload encodes doc the way Payload expects to read it and stores it.
func (s *Set) PutPayload(ctx context.Context, backupPath string, doc []byte) error {
	var buf bytes.Buffer
	sink := io.WriteCloser(nopCloser{&buf})
	if s.opts.Encryption {
		enc, err := cryptoutil.EncryptWriter(&buf, s.key)
		if err != nil {
			return err
		}
		sink = enc
	}
	w, err := compress.WrapWriter(s.opts.Compression, sink)
	if err != nil {
		return err
	}
	if _, err := w.Write(doc); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}
	return s.Store.Put(ctx, s.ContentKey(backupPath), &buf, int64(buf.Len()), map[string]string{"crestore-content": "true"})
}

// Missing lists the content rows whose documents are absent from the store.
func (s *Set) Missing(ctx context.Context, rows []manifest.Row) ([]manifest.Row, error) {
	var missing []manifest.Row
	for _, row := range rows {
		ok, err := s.Store.Exists(ctx, s.ContentKey(row.BackupPath))
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, row)
		}
	}
	return missing, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
