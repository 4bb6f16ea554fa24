package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rowjay/content-restore/internal/config"
	"github.com/rowjay/content-restore/internal/storage"
)

// Upload copies the written files into store under prefix and returns their keys.
func Upload(ctx context.Context, store storage.Storage, prefix string, files Files) ([]string, error) {
	var keys []string
	for _, local := range []string{files.Audit, files.Failed} {
		if local == "" {
			continue
		}
		key := storage.Key(prefix, filepath.Base(local))
		if err := putFile(ctx, store, key, local); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func putFile(ctx context.Context, store storage.Storage, key, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if err := store.Put(ctx, key, f, info.Size(), map[string]string{"crestore-audit": "true"}); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

type run struct {
	name     string
	modified time.Time
	keys     []string
}

// Prune deletes uploaded audit runs under prefix that fall outside the policy. A run is
// kept when it is among the KeepLast newest or younger than KeepDays. It returns the
// deleted keys.
func Prune(ctx context.Context, store storage.Storage, prefix string, policy config.Retention, now time.Time) ([]string, error) {
	if policy.KeepLast == 0 && policy.KeepDays == 0 {
		return nil, nil
	}
	objects, err := store.List(ctx, strings.Trim(prefix, "/"))
	if err != nil {
		return nil, err
	}

	runs := map[string]*run{}
	for _, obj := range objects {
		base := filepath.Base(obj.Key)
		if !strings.HasSuffix(base, ".csv") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimSuffix(base, ".csv"), ".failed")
		r, ok := runs[name]
		if !ok {
			r = &run{name: name}
			runs[name] = r
		}
		r.keys = append(r.keys, obj.Key)
		if obj.Modified.After(r.modified) {
			r.modified = obj.Modified
		}
	}

	ordered := make([]*run, 0, len(runs))
	for _, r := range runs {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].modified.Equal(ordered[j].modified) {
			return ordered[i].name > ordered[j].name
		}
		return ordered[i].modified.After(ordered[j].modified)
	})

	cutoff := now.AddDate(0, 0, -policy.KeepDays)
	var deleted []string
	for i, r := range ordered {
		if policy.KeepLast > 0 && i < policy.KeepLast {
			continue
		}
		if policy.KeepDays > 0 && r.modified.After(cutoff) {
			continue
		}
		for _, key := range r.keys {
			if err := store.Delete(ctx, key); err != nil {
				return deleted, err
			}
			deleted = append(deleted, key)
		}
	}
	return deleted, nil
}
