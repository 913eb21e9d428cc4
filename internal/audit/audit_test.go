package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAppend_CreatesFileAndWritesJSONL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	id1, err := Append(dir, &Entry{Kind: KindLLMCall, Model: "test-model", Prompt: "p", Response: "r", TaskCount: 2})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id1 == "" {
		t.Fatalf("expected id")
	}
	_, err = Append(dir, &Entry{Kind: KindLabel, ParentID: id1, Label: "good", Reason: "ok"})
	if err != nil {
		t.Fatalf("append label: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line is not JSON: %v", err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(entries))
	}
	if entries[0].Model != "test-model" || entries[0].CreatedAt.IsZero() {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].ParentID != id1 {
		t.Errorf("label parent = %q, want %q", entries[1].ParentID, id1)
	}
}

func TestAppend_RejectsInvalidEntries(t *testing.T) {
	dir := t.TempDir()
	if _, err := Append(dir, nil); err == nil {
		t.Error("nil entry should fail")
	}
	if _, err := Append(dir, &Entry{}); err == nil {
		t.Error("entry without kind should fail")
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(err) {
		t.Error("invalid entries must not create the log")
	}
}

func TestAppend_KeepsCallerID(t *testing.T) {
	id, err := Append(t.TempDir(), &Entry{ID: "fixed", Kind: KindLLMCall})
	if err != nil {
		t.Fatal(err)
	}
	if id != "fixed" {
		t.Errorf("id = %q, want fixed", id)
	}
}
