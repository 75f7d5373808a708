package database

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type row struct {
	ID   uint
	Code string `gorm:"uniqueIndex"`
}

func TestOpenSQLiteAndUniqueViolation(t *testing.T) {
	db, err := Open("sqlite://:memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ClosePostgres(db)

	if err := Ping(db); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(&row{Code: "A"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	err = db.Create(&row{Code: "A"}).Error
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Nil", nil, false},
		{"Postgres 23505", &pgconn.PgError{Code: "23505"}, true},
		{"Postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"Gorm translated", gorm.ErrDuplicatedKey, true},
		{"Other", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		if got := IsUniqueViolation(tt.err); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPingWithoutDatabase(t *testing.T) {
	if err := Ping(nil); err == nil {
		t.Errorf("expected error for nil db")
	}
}
