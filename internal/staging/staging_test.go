package staging

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestStagingManager(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "staging-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	mgr := NewManager(tmpDir)

	if mgr.FinalDir() != tmpDir {
		t.Errorf("expected FinalDir %s, got %s", tmpDir, mgr.FinalDir())
	}

	expectedStaging := filepath.Join(tmpDir, ".staging", "2024-05-10")
	if mgr.StagingDir("2024-05-10") != expectedStaging {
		t.Errorf("expected StagingDir %s, got %s", expectedStaging, mgr.StagingDir("2024-05-10"))
	}

	if err := mgr.PrepareStaging("2024-05-10"); err != nil {
		t.Fatalf("PrepareStaging failed: %v", err)
	}

	if _, err := os.Stat(expectedStaging); os.IsNotExist(err) {
		t.Error("staging directory not created")
	}

	body := []byte("PAR1 fake parquet body")
	destPath := filepath.Join(mgr.StagingDir("2024-05-10"), "NDX_20240510.parquet")

	size, err := mgr.WriteToStaging(destPath, func(w io.Writer) error {
		_, err := w.Write(body)
		return err
	})
	if err != nil {
		t.Fatalf("WriteToStaging failed: %v", err)
	}

	if size != int64(len(body)) {
		t.Errorf("expected size %d, got %d", len(body), size)
	}

	content, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("failed to read staged file: %v", err)
	}
	if string(content) != string(body) {
		t.Errorf("content mismatch: expected %s, got %s", body, content)
	}

	if _, err := os.Stat(destPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not exist after a successful write")
	}

	if err := mgr.CommitStaging("2024-05-10"); err != nil {
		t.Fatalf("CommitStaging failed: %v", err)
	}

	finalPath := filepath.Join(tmpDir, "NDX_20240510.parquet")
	if _, err := os.Stat(finalPath); os.IsNotExist(err) {
		t.Error("file not moved to final directory")
	}

	if err := mgr.CleanupStaging("2024-05-10"); err != nil {
		t.Fatalf("CleanupStaging failed: %v", err)
	}

	if _, err := os.Stat(mgr.StagingDir("2024-05-10")); !os.IsNotExist(err) {
		t.Error("staging directory should be removed after cleanup")
	}
}

func TestWriteToStaging_FailureRemovesTemp(t *testing.T) {
	mgr := NewManager(t.TempDir())
	destPath := filepath.Join(mgr.StagingDir("2024-05-10"), "NDX_20240510.parquet")

	_, err := mgr.WriteToStaging(destPath, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("encoder failed")
	})
	if err == nil {
		t.Fatal("expected error from failing writer")
	}

	if _, err := os.Stat(destPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be removed after a failed write")
	}
	if _, err := os.Stat(destPath); !os.IsNotExist(err) {
		t.Error("destination should not exist after a failed write")
	}
}
