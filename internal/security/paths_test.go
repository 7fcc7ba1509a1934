package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	reports := filepath.Join(tmpDir, "reports")
	private := filepath.Join(tmpDir, "private")
	for _, dir := range []string{reports, private} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(filepath.Join(private, "secret.html"), []byte("secret"), 0644); err != nil {
		t.Fatalf("Failed to create private file: %v", err)
	}
	link := filepath.Join(reports, "elsewhere")
	if err := os.Symlink(private, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		dir       string
		wantError bool
	}{
		{"report in directory", filepath.Join(reports, "plot_chm.html"), reports, false},
		{"nested report", filepath.Join(reports, "2026", "plot.html"), reports, false},
		{"directory itself", reports, reports, false},
		{"dot-dot escape", filepath.Join(reports, "..", "private", "secret.html"), reports, true},
		{"relative escape", "../../../etc/passwd", reports, true},
		{"absolute path outside", "/etc/passwd", reports, true},
		{"symlink to outside", filepath.Join(link, "secret.html"), reports, true},
		{"symlink itself", link, reports, true},
		{"missing file under symlink", filepath.Join(link, "new.html"), reports, true},
		{"sibling with shared prefix", reports + "-old/plot.html", reports, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, tt.dir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil && !errors.Is(err, ErrOutsideAllowedDirs) {
				t.Errorf("expected ErrOutsideAllowedDirs, got %v", err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_MissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if err := ValidatePathWithinDirectory(filepath.Join(missing, "a.html"), missing); err == nil {
		t.Error("expected error for a directory that does not exist")
	}
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	tests := []struct {
		name      string
		filePath  string
		dirs      []string
		wantError bool
	}{
		{"first dir", filepath.Join(dir1, "a.html"), []string{dir1, dir2}, false},
		{"second dir", filepath.Join(dir2, "b.html"), []string{dir1, dir2}, false},
		{"outside all", "/etc/passwd", []string{dir1, dir2}, true},
		{"none configured", filepath.Join(dir1, "a.html"), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinAllowedDirs(tt.filePath, tt.dirs)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinAllowedDirs() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}
