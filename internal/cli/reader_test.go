package cli

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestNonBlockingReader_ReadLine(t *testing.T) {
	r := NewNonBlockingReader(strings.NewReader("hello world\nsecond\n"))

	line, err := r.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if line != "hello world" {
		t.Errorf("line = %q, want hello world", line)
	}

	line, err = r.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if line != "second" {
		t.Errorf("line = %q, want second", line)
	}
}

func TestNonBlockingReader_TrimsWhitespace(t *testing.T) {
	r := NewNonBlockingReader(strings.NewReader("  padded  \n"))

	line, err := r.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if line != "padded" {
		t.Errorf("line = %q, want padded", line)
	}
}

func TestNonBlockingReader_ContextCancellation(t *testing.T) {
	// A pipe with no writer blocks forever; cancellation must still return.
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	r := NewNonBlockingReader(pr)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.ReadLine(ctx)
	if !errors.Is(err, ErrInputCancelled) {
		t.Errorf("ReadLine = %v, want ErrInputCancelled", err)
	}
}

func TestNonBlockingReader_NilReaderPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for nil reader")
		}
	}()
	NewNonBlockingReader(nil)
}
