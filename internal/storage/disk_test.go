package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDatabaseSize(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "marcador.db")

	if n, err := DatabaseSize(db); err != nil || n != 0 {
		t.Errorf("missing database: %d, %v", n, err)
	}
	files := map[string]string{db: "hello", db + "-wal": "ab", db + "-shm": "c", db + ".bak": "ignored"}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	n, err := DatabaseSize(db)
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Errorf("got %d bytes, want 8", n)
	}
	if n, _ := DatabaseSize(""); n != 0 {
		t.Errorf("empty path: got %d", n)
	}
}

func TestDatabaseSize_live(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.db")
	s, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	n, err := DatabaseSize(path)
	if err != nil || n == 0 {
		t.Errorf("open database size = %d, %v", n, err)
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	for path, content := range map[string]string{
		filepath.Join(dir, "a.marcado.pdf"): "abc",
		filepath.Join(sub, "b.marcado.pdf"): "de",
	} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		dir  string
		want int64
	}{
		{"tree", dir, 5},
		{"subdir", sub, 2},
		{"missing", filepath.Join(dir, "nope"), 0},
		{"empty path", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DirSize(tt.dir)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}
