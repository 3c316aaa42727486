package bundler

import (
	"crypto/md5"
	"errors"
	"strconv"
	"testing"

	"github.com/spf13/afero"
)

func TestIdentity(t *testing.T) {
	files := []string{"/public/js/a.js", "https://cdn.example.com/lib.js", "/public/js/b.js"}

	t.Run("Stable across calls", func(t *testing.T) {
		first := Identity(defaultHashFunc, "/public", files, "")
		for i := 0; i < 5; i++ {
			if got := Identity(defaultHashFunc, "/public", files, ""); got != first {
				t.Fatalf("identity changed between calls: %s != %s", got, first)
			}
		}
	})

	t.Run("Normalized against root", func(t *testing.T) {
		got := Identity(defaultHashFunc, "/public", files, "salt")
		want := xxhex("js/a.js-https://cdn.example.com/lib.js-js/b.js" + "salt")
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	})

	t.Run("Order matters", func(t *testing.T) {
		reversed := []string{files[2], files[1], files[0]}
		if Identity(defaultHashFunc, "/public", files, "") == Identity(defaultHashFunc, "/public", reversed, "") {
			t.Fatal("expected identity to depend on reference order")
		}
	})

	t.Run("md5 compatible names", func(t *testing.T) {
		got := Identity(md5.New, "public/", []string{"public/js/a.js"}, "")
		if len(got) != 32 {
			t.Fatalf("expected 32 hex characters, got %q", got)
		}
		if got != hexDigest(md5.New, "js/a.js") {
			t.Fatalf("unexpected md5 identity %s", got)
		}
	})
}

func TestAggregateModTime(t *testing.T) {
	memFs := afero.NewMemMapFs()
	createTestFile(t, memFs, "/public/a.js", "a", t1)
	createTestFile(t, memFs, "/public/b.js", "b", t2)

	t.Run("Sums local times", func(t *testing.T) {
		got, err := aggregateModTime(memFs, defaultHashFunc, "", []string{"/public/a.js", "/public/b.js"})
		if err != nil {
			t.Fatal(err)
		}
		if got != t1+t2 {
			t.Fatalf("expected %d, got %d", t1+t2, got)
		}
	})

	t.Run("Remote pseudo time depends on user agent", func(t *testing.T) {
		remote := []string{"https://cdn.example.com/lib.js"}
		firefox, err := aggregateModTime(memFs, defaultHashFunc, "Firefox", remote)
		if err != nil {
			t.Fatal(err)
		}
		again, _ := aggregateModTime(memFs, defaultHashFunc, "Firefox", remote)
		chrome, _ := aggregateModTime(memFs, defaultHashFunc, "Chrome", remote)

		if firefox != again {
			t.Fatalf("expected deterministic pseudo time, got %d and %d", firefox, again)
		}
		if firefox == chrome {
			t.Fatal("expected different user agents to produce different pseudo times")
		}

		want, _ := strconv.ParseUint(xxhex(remote[0] + "Firefox")[:8], 16, 64)
		if firefox != int64(want) {
			t.Fatalf("expected %d, got %d", want, firefox)
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := aggregateModTime(memFs, defaultHashFunc, "", []string{"/public/missing.js"})
		if !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound, got %v", err)
		}
	})
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		name        string
		modTime     int64
		withModTime bool
		want        string
	}{
		{"With time", 123, true, "abc123.js"},
		{"Zero time", 0, true, "abc0.js"},
		{"Without time", 123, false, "abc.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := artifactName("abc", tt.modTime, tt.withModTime, ".js"); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
