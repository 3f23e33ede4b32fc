package redis

import (
	"context"
	"os"
	"testing"

	"photocal/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	addr := os.Getenv("PHOTOCAL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PHOTOCAL_TEST_REDIS_ADDR not set")
	}

	s, err := New(context.Background(), Config{Addr: addr, DB: 15})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	storagetest.Run(t, s)
}
