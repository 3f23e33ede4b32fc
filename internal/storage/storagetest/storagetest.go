// Package storagetest holds the behavioral checks every storage.Backend
// implementation must pass.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"photocal/internal/storage"
)

// Run exercises b against the Backend contract. Keys are prefixed with the
// test name so a shared server can be reused between runs.
func Run(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()
	prefix := t.Name() + ":"

	t.Run("missing key", func(t *testing.T) {
		_, err := b.Get(ctx, prefix+"missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		key := prefix + "roundtrip"
		want := []byte(`{"v":1,"data":{"name":"Овсянка"}}`)
		if err := b.Set(ctx, key, want); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := b.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !bytes.Equal(normalize(got), normalize(want)) {
			t.Errorf("Get() = %s, want %s", got, want)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		key := prefix + "overwrite"
		if err := b.Set(ctx, key, []byte(`{"v":1,"data":1}`)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := b.Set(ctx, key, []byte(`{"v":1,"data":2}`)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := b.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !bytes.Contains(got, []byte("2")) {
			t.Errorf("Get() = %s, want the second value", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		key := prefix + "delete"
		if err := b.Set(ctx, key, []byte(`{}`)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := b.Delete(ctx, key); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := b.Get(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
		}
		if err := b.Delete(ctx, key); err != nil {
			t.Errorf("Delete() of missing key error = %v", err)
		}
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("%sconcurrent:%d", prefix, i)
				if err := b.Set(ctx, key, []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
					t.Errorf("Set(%s) error = %v", key, err)
				}
			}(i)
		}
		wg.Wait()

		for i := 0; i < 8; i++ {
			key := fmt.Sprintf("%sconcurrent:%d", prefix, i)
			if _, err := b.Get(ctx, key); err != nil {
				t.Errorf("Get(%s) error = %v", key, err)
			}
		}
	})
}

// normalize drops whitespace so backends that re-encode JSON (jsonb) compare
// equal.
func normalize(b []byte) []byte {
	return bytes.Join(bytes.Fields(b), nil)
}
