package resource

import (
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "src", "main.go")
	abs := filepath.Join(base, "assets", "logo.png")

	tests := []struct {
		name      string
		url       string
		source    string
		want      string
		wantLocal bool
		wantErr   bool
	}{
		{"relative", "img/a.png", source, filepath.Join(base, "src", "img", "a.png"), true, false},
		{"parent", "../docs/a.png", source, filepath.Join(base, "docs", "a.png"), true, false},
		{"dot", "./a.png", source, filepath.Join(base, "src", "a.png"), true, false},
		{"absolute path", abs, source, abs, true, false},
		{"absolute unclean", filepath.Join(base, "assets") + "/../assets/logo.png", source, abs, true, false},
		{"absolute ignores source", abs, "", abs, true, false},
		{"file uri", "file://" + filepath.ToSlash(abs), source, abs, true, false},
		{"https uri verbatim", "https://example.com/a.png", source, "https://example.com/a.png", false, false},
		{"data uri verbatim", "data:image/png;base64,AAAA", source, "data:image/png;base64,AAAA", false, false},
		{"surrounding space", "  img/a.png ", source, filepath.Join(base, "src", "img", "a.png"), true, false},
		{"percent in name", "100%.png", source, filepath.Join(base, "src", "100%.png"), true, false},
		{"empty url", "", source, "", false, true},
		{"blank url", "   ", source, "", false, true},
		{"relative without source", "a.png", "", "", false, true},
		{"file uri without path", "file://", source, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, local, err := Resolve(tt.url, tt.source)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolved: got %q, want %q", got, tt.want)
			}
			if local != tt.wantLocal {
				t.Errorf("local: got %v, want %v", local, tt.wantLocal)
			}
		})
	}
}

func TestResolve_RelativeToSourceDirectory(t *testing.T) {
	got, local, err := Resolve("img/pic.png", "/proj/src/file.ext")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !local || got != filepath.FromSlash("/proj/src/img/pic.png") {
		t.Errorf("got %q (local=%v), want /proj/src/img/pic.png", got, local)
	}

	got, local, err = Resolve("https://host/pic.png", "/proj/src/file.ext")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if local || got != "https://host/pic.png" {
		t.Errorf("got %q (local=%v), want URI verbatim", got, local)
	}
}
