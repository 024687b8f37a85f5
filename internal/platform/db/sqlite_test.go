package db

import (
	"path/filepath"
	"testing"
)

func TestConnectSQLiteFile(t *testing.T) {
	database, err := ConnectSQLite(filepath.Join(t.TempDir(), "assembly.sqlite"))
	if err != nil {
		t.Fatalf("connect sqlite: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			t.Fatalf("close sqlite: %v", err)
		}
	}()
	if database.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %q", database.Driver)
	}
	var one int
	if err := database.DB.Raw("SELECT 1").Scan(&one).Error; err != nil {
		t.Fatalf("select 1: %v", err)
	}
	if one != 1 {
		t.Fatalf("expected 1, got %d", one)
	}
}

func TestConnectPostgresRequiresDSN(t *testing.T) {
	if _, err := ConnectPostgres(""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
