package bundler

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestManifest_SaveLoad(t *testing.T) {
	t.Run("Successful save and load", func(t *testing.T) {
		memFs := afero.NewMemMapFs()
		m := NewManifest()
		m.Record("app", &BuildResult{
			Kind:     "script",
			Filename: "abc123.js",
			Path:     "/public/build/abc123.js",
			URL:      "/build/abc123.js",
			Digest:   "ff",
			Inputs:   []string{"js/a.js", "js/b.js"},
			BuiltAt:  fixedNowFunc(),
		})

		if err := m.Save(memFs, "/public/build/manifest.json"); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		loaded, err := LoadManifest(memFs, "/public/build/manifest.json")
		if err != nil {
			t.Fatalf("LoadManifest() error = %v", err)
		}
		entry, ok := loaded.Bundles["app"]
		if !ok {
			t.Fatal("expected entry for app")
		}
		if entry.Filename != "abc123.js" || entry.URL != "/build/abc123.js" || len(entry.Inputs) != 2 {
			t.Fatalf("unexpected entry %+v", entry)
		}
		if !entry.BuiltAt.Equal(fixedNowFunc()) {
			t.Fatalf("expected BuiltAt %v, got %v", fixedNowFunc(), entry.BuiltAt)
		}
	})

	t.Run("Missing file yields empty manifest", func(t *testing.T) {
		loaded, err := LoadManifest(afero.NewMemMapFs(), "/nope.json")
		if err != nil {
			t.Fatal(err)
		}
		if len(loaded.Bundles) != 0 {
			t.Fatalf("expected empty manifest, got %d entries", len(loaded.Bundles))
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		memFs := afero.NewMemMapFs()
		if err := afero.WriteFile(memFs, "/m.json", []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadManifest(memFs, "/m.json"); err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})

	t.Run("Error - directory creation failure", func(t *testing.T) {
		mockFs := &mockFailingFs{Fs: afero.NewMemMapFs(), failOnMkdirAll: true}
		if err := NewManifest().Save(mockFs, "/build/manifest.json"); err == nil {
			t.Fatal("expected error for directory creation failure, got nil")
		}
	})
}

func TestManifest_Names(t *testing.T) {
	m := NewManifest()
	for _, name := range []string{"vendor", "app", "print"} {
		m.Record(name, &BuildResult{Kind: "stylesheet", BuiltAt: time.Unix(0, 0)})
	}
	names := m.Names()
	if len(names) != 3 || names[0] != "app" || names[1] != "print" || names[2] != "vendor" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestManifest_RecordCopiesInputs(t *testing.T) {
	res := &BuildResult{Inputs: []string{"a.js"}}
	m := NewManifest()
	m.Record("app", res)
	res.Inputs[0] = "changed.js"
	if m.Bundles["app"].Inputs[0] != "a.js" {
		t.Fatal("expected Record to copy the inputs")
	}
}
