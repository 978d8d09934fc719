package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDumpWritesUnderDay(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }

	key, err := s.Dump(context.Background(), "flow1", "poll", []byte(`{"task_status":"ERROR"}`))
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if key != "2024-03-09/flow1-poll.json" {
		t.Fatalf("key = %q", key)
	}
	data, err := os.ReadFile(filepath.Join(dir, "2024-03-09", "flow1-poll.json"))
	if err != nil || string(data) != `{"task_status":"ERROR"}` {
		t.Fatalf("read back = %q, %v", data, err)
	}
}

func TestSanitizeKey(t *testing.T) {
	cases := map[string]string{
		"a/b.json":     "a/b.json",
		"/abs/x.json":  "abs/x.json",
		"./rel/y.json": "rel/y.json",
		`win\z.json`:   "win/z.json",
	}
	for in, want := range cases {
		got, err := sanitizeKey(in)
		if err != nil || got != want {
			t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "..", "../etc/passwd", "a/../../b"} {
		if _, err := sanitizeKey(bad); err == nil {
			t.Fatalf("sanitizeKey(%q) should fail", bad)
		}
	}
}

func TestWriteHonoursContext(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Write(ctx, "x.json", []byte("{}")); err == nil {
		t.Fatalf("expected context error")
	}
}
