package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:   pgerrcode.UniqueViolation,
		Detail: `Key (email)=(alice@x.com) already exists.`,
	}
	err := MapDBError(pgErr)
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if GetField(err) != "email" {
		t.Fatalf("expected field email, got %q", GetField(err))
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	if got := MapDBError(context.DeadlineExceeded); GetCode(got) != ErrCodeTimeout {
		t.Fatalf("expected timeout, got %v", got)
	}
	if got := MapDBError(context.Canceled); GetCode(got) != ErrCodeCanceled {
		t.Fatalf("expected canceled, got %v", got)
	}
}

func TestMapDBError_PassthroughUnknown(t *testing.T) {
	original := errors.New("dial tcp: connection refused")
	if got := MapDBError(original); !errors.Is(got, original) {
		t.Fatalf("unknown errors must pass through, got %v", got)
	}
}

func TestMapDBError_Nil(t *testing.T) {
	if MapDBError(nil) != nil {
		t.Fatalf("nil must map to nil")
	}
}
