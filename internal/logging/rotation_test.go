package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kmsgrab.log")

	rw, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer rw.Close()
	rw.maxSize = 64 // shrink the threshold so the test stays small

	line := bytes.Repeat([]byte("x"), 40)
	for i := 0; i < 3; i++ {
		if _, err := rw.Write(line); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("current log missing: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("backup log missing: %v", err)
	}
}
