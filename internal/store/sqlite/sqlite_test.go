package sqlite

import (
	"testing"

	"github.com/strideapp/stride/internal/store"
	"github.com/strideapp/stride/internal/store/storetest"
)

func TestSQLiteStoreCompliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		db, err := OpenInMemory()
		if err != nil {
			t.Fatalf("open in-memory sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return NewWithDB(db)
	})
}
