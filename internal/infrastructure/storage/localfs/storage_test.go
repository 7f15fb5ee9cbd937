package localfs

import (
	"context"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestStorageRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "irs/p519.pdf", strings.NewReader("pdf bytes")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, "irs/p901.pdf", strings.NewReader("more")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := s.Open(ctx, "irs/p519.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "pdf bytes" {
		t.Fatalf("unexpected body: %q", body)
	}

	ok, err := s.Exists(ctx, "irs/p519.pdf")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
	ok, err = s.Exists(ctx, "irs/missing.pdf")
	if err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v", ok, err)
	}
	if ok, _ := s.Exists(ctx, "irs"); ok {
		t.Fatalf("directories are not objects")
	}

	keys, err := s.List(ctx, "irs")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"irs/p519.pdf", "irs/p901.pdf"}) {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if keys, err := s.List(ctx, "nope"); err != nil || len(keys) != 0 {
		t.Fatalf("List(missing dir) = %v, %v", keys, err)
	}
}

func TestStorageRejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.Open(context.Background(), "../etc/passwd"); err == nil {
		t.Fatalf("expected escape to be rejected")
	}
}
