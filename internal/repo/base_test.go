package repo

import (
	"context"
	"testing"

	"github.com/nomasclub/nomas-backend/pkg/db/dbtest"
)

func TestNewBaseStoresConnection(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	if base.db != db {
		t.Fatalf("expected base db to match provided connection")
	}
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)

	if withCtx == nil {
		t.Fatalf("expected non-nil DB when context provided")
	}
	if withCtx.Statement == nil {
		t.Fatalf("expected statement created after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	withoutCtx := base.DB(nil)
	if withoutCtx != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseConn_PrefersTransaction(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	tx := db.Begin()
	t.Cleanup(func() { tx.Rollback() })

	if got := base.Conn(context.Background(), tx); got != tx {
		t.Fatalf("expected the open transaction to be returned")
	}
	if got := base.Conn(context.Background(), nil); got == tx || got == nil {
		t.Fatalf("expected the base connection without a transaction")
	}
}
