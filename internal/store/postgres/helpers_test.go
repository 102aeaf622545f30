package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	if !isUniqueViolation(unique) {
		t.Fatal("expected 23505 to be a unique violation")
	}
	if !isUniqueViolation(errors.Join(errors.New("commit failed"), unique)) {
		t.Fatal("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error is not a unique violation")
	}
}

func TestNullHelpers(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Fatal("empty string should map to NULL")
	}
	if nullIfEmpty("x") != "x" {
		t.Fatal("non-empty string should pass through")
	}
	if nullStringPtr(sql.NullString{}) != nil {
		t.Fatal("invalid NullString should map to nil")
	}
	if got := nullStringPtr(sql.NullString{String: "x", Valid: true}); got == nil || *got != "x" {
		t.Fatalf("unexpected pointer %v", got)
	}
	if nullTimePtr(sql.NullTime{}) != nil {
		t.Fatal("invalid NullTime should map to nil")
	}
}
