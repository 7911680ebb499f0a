package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCollectJSONFilesRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{"announcementId":"a"}`)
	mustWriteFile(t, filepath.Join(root, "b.txt"), `x`)
	mustWriteFile(t, filepath.Join(root, ".hidden.json"), `{}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.JSON"), `{"id":"c"}`)
	mustWriteFile(t, filepath.Join(root, ".git", "d.json"), `{}`)

	files, err := collectJSONFiles(root, true)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 json files, got %d (%v)", len(files), files)
	}
}

func TestCollectJSONFilesNonRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{"announcementId":"a"}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.json"), `{"id":"c"}`)

	files, err := collectJSONFiles(root, false)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 json file, got %d (%v)", len(files), files)
	}
}

func TestCollectJSONFilesRejectsFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "a.json")
	mustWriteFile(t, path, `{}`)

	if _, err := collectJSONFiles(path, true); err == nil {
		t.Fatalf("expected a plain file to be rejected")
	}
	if _, err := collectJSONFiles("  ", true); err == nil {
		t.Fatalf("expected an empty path to be rejected")
	}
}

func TestValidateFilesReportsEachRejection(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	valid := filepath.Join(root, "valid.json")
	mongoStyle := filepath.Join(root, "mongo.json")
	badType := filepath.Join(root, "bad_type.json")
	malformed := filepath.Join(root, "malformed.json")
	mustWriteFile(t, valid, `{"announcementId":"a-1","type":"lost","userId":"u-1"}`)
	mustWriteFile(t, mongoStyle, `{"_id":"665f1c2b9d3e4a0012345678","type":" Found "}`)
	mustWriteFile(t, badType, `{"announcementId":"a-2","type":"stolen"}`)
	mustWriteFile(t, malformed, `{"announcementId":`)

	var out bytes.Buffer
	result := validateFiles([]string{valid, mongoStyle, badType, malformed}, &out)

	if result.Scanned != 4 || result.Valid != 2 || result.Invalid != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	report := out.String()
	if !strings.Contains(report, "INVALID "+badType) {
		t.Fatalf("expected %s to be reported, got:\n%s", badType, report)
	}
	if !strings.Contains(report, "INVALID "+malformed+": malformed JSON") {
		t.Fatalf("expected %s to be reported as malformed, got:\n%s", malformed, report)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
