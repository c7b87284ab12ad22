package files

import (
	"bytes"
	"strings"
	"testing"
)

func TestSaveAndRead(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	name, err := s.Save("report.pdf", []byte("pdf bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(name, "_report.pdf") {
		t.Errorf("stored name %q does not keep the original filename", name)
	}

	data, err := s.Read(name)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(data, []byte("pdf bytes")) {
		t.Errorf("read %q", data)
	}
}

func TestSave_SameNameNoCollision(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	a, err := s.Save("notes.txt", []byte("first"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := s.Save("notes.txt", []byte("second"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a == b {
		t.Fatalf("both uploads stored as %q", a)
	}

	got, err := s.Read(a)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "first" {
		t.Errorf("first upload overwritten: %q", got)
	}
}

func TestSave_SanitizesPathComponents(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	name, err := s.Save("../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		t.Errorf("stored name %q leaks path components", name)
	}
	if _, err := s.Read(name); err != nil {
		t.Errorf("Read after sanitized save: %v", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	name, err := s.Save("doc.txt", []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(name); err != nil {
		t.Errorf("second Delete: %v", err)
	}
	if _, err := s.Read(name); err == nil {
		t.Error("Read succeeded after Delete")
	}
}
