package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"photocal/internal/storage/storagetest"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s, path
}

func TestStoreContract(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	storagetest.Run(t, s)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)

	if err := s.Set(ctx, "tg:1:nutrition_user_profile", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "tg:1:nutrition_user_profile")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"v":1}` {
		t.Errorf("Get() = %s", got)
	}
}
