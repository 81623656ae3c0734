package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorage_PutGetDelete(t *testing.T) {
	t.Parallel()

	st, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	ctx := context.Background()
	key := "receipts/u1/r.pdf"

	if err := st.Put(ctx, key, strings.NewReader("%PDF-1.4 receipt"), "application/pdf"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rc, err := st.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "%PDF-1.4 receipt" {
		t.Fatalf("unexpected content: %q", got)
	}
	if err := st.Put(ctx, key, strings.NewReader("%PDF-1.4 replaced"), "application/pdf"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	rc, err = st.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	got, _ = io.ReadAll(rc)
	rc.Close()
	if string(got) != "%PDF-1.4 replaced" {
		t.Fatalf("unexpected content after overwrite: %q", got)
	}

	if err := st.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := st.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStorage_KeysStayInsideBase(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	st, err := NewLocalStorage(base)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	full, err := st.path("../../etc/passwd")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if !strings.HasPrefix(full, base) {
		t.Fatalf("path escaped base: %s", full)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), Config{Driver: "ftp"}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := New(context.Background(), Config{Driver: "s3"}); err == nil {
		t.Fatal("expected error for s3 without bucket")
	}
}

func TestLocalStorage_FailedPutLeavesNothing(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	st, err := NewLocalStorage(base)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	err = st.Put(context.Background(), "receipts/u1/broken.png", io.MultiReader(strings.NewReader("partial"), failingReader{}), "image/png")
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := st.Get(context.Background(), "receipts/u1/broken.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(base, "receipts", "u1"))
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestValidateReceipt(t *testing.T) {
	pdf := []byte("%PDF-1.7\n" + strings.Repeat("x", 100))
	data, mime, err := ValidateReceipt(bytes.NewReader(pdf))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "application/pdf" || len(data) != len(pdf) {
		t.Fatalf("unexpected result: %s %d", mime, len(data))
	}

	if _, _, err := ValidateReceipt(bytes.NewReader(nil)); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
	if _, _, err := ValidateReceipt(strings.NewReader("plain text")); !errors.Is(err, ErrInvalidMimeType) {
		t.Fatalf("expected ErrInvalidMimeType, got %v", err)
	}
	if _, _, err := ValidateFile(bytes.NewReader(pdf), ReceiptMimeTypes, 10); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestExtensionForMime(t *testing.T) {
	if ExtensionForMime("image/png") != ".png" || ExtensionForMime("text/plain") != "" {
		t.Fatal("unexpected extension mapping")
	}
}
