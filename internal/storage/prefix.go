package storage

import (
	"context"
	"io"
	"strings"
)

type prefixed struct {
	inner  Storage
	prefix string
}

// WithPrefix scopes every key of inner below prefix.
func WithPrefix(inner Storage, prefix string) Storage {
	return &prefixed{inner: inner, prefix: strings.Trim(prefix, "/")}
}

func (p *prefixed) key(k string) string {
	return Key(p.prefix, k)
}

func (p *prefixed) Put(ctx context.Context, key string, reader io.Reader, size int64, metadata map[string]string) error {
	return p.inner.Put(ctx, p.key(key), reader, size, metadata)
}

func (p *prefixed) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return p.inner.Get(ctx, p.key(key))
}

func (p *prefixed) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := p.inner.Stat(ctx, p.key(key))
	info.Key = key
	return info, err
}

func (p *prefixed) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	infos, err := p.inner.List(ctx, p.key(prefix))
	if err != nil {
		return nil, err
	}
	for i := range infos {
		infos[i].Key = strings.TrimPrefix(strings.TrimPrefix(infos[i].Key, p.prefix), "/")
	}
	return infos, nil
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.key(key))
}

func (p *prefixed) Exists(ctx context.Context, key string) (bool, error) {
	return p.inner.Exists(ctx, p.key(key))
}
