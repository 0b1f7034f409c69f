package batch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"sqlguard/internal/model"
	"sqlguard/internal/validator"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestFileWalker_Walk(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.sql":            "SELECT 1",
		"readme.md":        "not sql",
		"reports/b.sql":    "SELECT 2",
		"vendor/skip.sql":  "SELECT 3",
		".hidden/skip.sql": "SELECT 4",
	})

	walker := NewFileWalker([]string{"sql"}, []string{"vendor"})
	paths, errs := walker.Walk(context.Background(), root)

	var got []string
	for p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, filepath.ToSlash(rel))
	}
	if err := <-errs; err != nil {
		t.Fatalf("Walk error: %v", err)
	}

	sort.Strings(got)
	want := []string{"a.sql", "reports/b.sql"}
	if len(got) != len(want) {
		t.Fatalf("Walk() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Walk()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFileWalker_Cancel(t *testing.T) {
	root := writeTree(t, map[string]string{"a.sql": "SELECT 1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	walker := NewFileWalker([]string{"sql"}, nil)
	paths, errs := walker.Walk(ctx, root)

	for range paths {
	}
	if err := <-errs; err == nil {
		t.Error("Walk with cancelled context returned no error")
	}
}

func TestWorkerPool_Start(t *testing.T) {
	root := writeTree(t, map[string]string{
		"ok.sql":  "SELECT 1",
		"bad.sql": "DROP TABLE users",
	})

	paths := make(chan string, 3)
	paths <- filepath.Join(root, "ok.sql")
	paths <- filepath.Join(root, "bad.sql")
	paths <- filepath.Join(root, "missing.sql")
	close(paths)

	pool := NewWorkerPool(2, validator.New(validator.Config{}))
	results := pool.Start(context.Background(), paths)

	byFile := make(map[string]FileResult)
	for res := range results {
		byFile[filepath.Base(res.File)] = res
	}
	if len(byFile) != 3 {
		t.Fatalf("got %d results, want 3", len(byFile))
	}

	if res := byFile["ok.sql"]; res.Err != nil || !res.Result.OK() {
		t.Errorf("ok.sql: err=%v verdict=%v, want clean pass", res.Err, res.Result.Verdict)
	}
	if res := byFile["bad.sql"]; res.Err != nil || res.Result.Reason != model.ReasonNotSelectOrWith {
		t.Errorf("bad.sql: err=%v reason=%s, want %s", res.Err, res.Result.Reason, model.ReasonNotSelectOrWith)
	}
	if res := byFile["missing.sql"]; res.Err == nil {
		t.Error("missing.sql: want a read error")
	}
}
