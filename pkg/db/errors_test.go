package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type uniqueModel struct {
	ID    int
	Email string `gorm:"uniqueIndex:ux_unique_models_email"`
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_bookings_user_event"}
	wrapped := fmt.Errorf("insert booking: %w", pgErr)

	if !IsUniqueViolation(wrapped, "ux_bookings_user_event") {
		t.Fatalf("expected constraint match")
	}
	if !IsUniqueViolation(wrapped, "") {
		t.Fatalf("expected any-constraint match")
	}
	if IsUniqueViolation(wrapped, "ux_other") {
		t.Fatalf("expected other constraint to not match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatalf("foreign key violation is not a unique violation")
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:unique_violation?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&uniqueModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := conn.Create(&uniqueModel{Email: "a@example.com"}).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err = conn.Create(&uniqueModel{Email: "a@example.com"}).Error
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if !IsUniqueViolation(err, "ux_unique_models_email") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestIsUniqueViolation_Nil(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is not a violation")
	}
	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatal("unrelated error should not match")
	}
}
