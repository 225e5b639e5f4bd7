package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Fatalf("expected nil tx, got %v", tx)
	}
}

func TestContextWithTx_RoundTrip(t *testing.T) {
	var tx pgx.Tx = fakeTx{}
	ctx := ContextWithTx(context.Background(), tx)
	if TxFromContext(ctx) == nil {
		t.Fatal("expected tx from context")
	}
}

func TestWithTx_JoinsExistingTransaction(t *testing.T) {
	ctx := ContextWithTx(context.Background(), fakeTx{})
	called := false
	err := WithTx(ctx, nil, func(inner context.Context) error {
		called = TxFromContext(inner) != nil
		return errors.New("stop")
	})
	if err == nil || err.Error() != "stop" {
		t.Fatalf("err = %v", err)
	}
	if !called {
		t.Fatal("fn should run with the existing tx")
	}
}

// fakeTx satisfies pgx.Tx through the embedded interface; only identity is
// exercised.
type fakeTx struct{ pgx.Tx }
