package assets

import (
	"context"
	"strings"
	"testing"
)

func TestComputeFingerprint(t *testing.T) {
	dep := ComputeFingerprint([]byte("PNG"), nil)
	other := ComputeFingerprint([]byte("PNG2"), nil)

	t.Run("deterministic", func(t *testing.T) {
		a := ComputeFingerprint([]byte("body {}"), []DepFingerprint{{Name: "logo.png", Fingerprint: dep}})
		b := ComputeFingerprint([]byte("body {}"), []DepFingerprint{{Name: "logo.png", Fingerprint: dep}})
		if a != b {
			t.Error("equal inputs produced different fingerprints")
		}
	})

	t.Run("no dependencies", func(t *testing.T) {
		if ComputeFingerprint([]byte("x"), nil) != ComputeFingerprint([]byte("x"), []DepFingerprint{}) {
			t.Error("nil and empty dependency lists should hash alike")
		}
		if dep == other {
			t.Error("different content produced the same fingerprint")
		}
	})

	t.Run("dependency order does not matter", func(t *testing.T) {
		a := ComputeFingerprint([]byte("x"), []DepFingerprint{{Name: "a", Fingerprint: dep}, {Name: "b", Fingerprint: other}})
		b := ComputeFingerprint([]byte("x"), []DepFingerprint{{Name: "b", Fingerprint: other}, {Name: "a", Fingerprint: dep}})
		if a != b {
			t.Error("dependency order changed the fingerprint")
		}
	})

	t.Run("dependency fingerprint matters", func(t *testing.T) {
		a := ComputeFingerprint([]byte("x"), []DepFingerprint{{Name: "a", Fingerprint: dep}})
		b := ComputeFingerprint([]byte("x"), []DepFingerprint{{Name: "a", Fingerprint: other}})
		if a == b {
			t.Error("a changed dependency did not change the fingerprint")
		}
	})

	t.Run("dependency name matters", func(t *testing.T) {
		a := ComputeFingerprint([]byte("x"), []DepFingerprint{{Name: "a", Fingerprint: dep}})
		b := ComputeFingerprint([]byte("x"), []DepFingerprint{{Name: "b", Fingerprint: dep}})
		if a == b {
			t.Error("a renamed dependency did not change the fingerprint")
		}
	})

	t.Run("public prefix", func(t *testing.T) {
		deps := []DepFingerprint{{Name: "a", Fingerprint: dep}}
		if ComputePrefixedFingerprint([]byte("x"), deps, "") != ComputeFingerprint([]byte("x"), deps) {
			t.Error("an empty prefix should not change the fingerprint")
		}
		if ComputePrefixedFingerprint([]byte("x"), nil, "/static") != ComputeFingerprint([]byte("x"), nil) {
			t.Error("a prefix should not change the fingerprint of an asset without dependencies")
		}
		a := ComputePrefixedFingerprint([]byte("x"), deps, "/static")
		b := ComputePrefixedFingerprint([]byte("x"), deps, "https://cdn.example.com")
		if a == b || a == ComputeFingerprint([]byte("x"), deps) {
			t.Error("the prefix did not change the fingerprint of an asset with dependencies")
		}
	})

	t.Run("fields are framed", func(t *testing.T) {
		if ComputeFingerprint([]byte("ab"), nil) == ComputeFingerprint([]byte("a"), []DepFingerprint{{Name: "b"}}) {
			t.Error("content and dependency name are not separated")
		}
	})
}

func TestFingerprintEncoding(t *testing.T) {
	f := ComputeFingerprint([]byte("x"), nil)

	if len(f.String()) != 64 {
		t.Errorf("String() has %d chars, want 64", len(f.String()))
	}
	if len(f.Short()) != ShortLen || !strings.HasPrefix(f.String(), f.Short()) {
		t.Errorf("Short() = %q is not a %d char prefix of %q", f.Short(), ShortLen, f.String())
	}
	if f.IsZero() || !(Fingerprint{}).IsZero() {
		t.Error("IsZero is wrong")
	}

	parsed, err := ParseFingerprint(f.String())
	if err != nil {
		t.Fatalf("ParseFingerprint: %v", err)
	}
	if parsed != f {
		t.Error("ParseFingerprint did not round trip")
	}
	if _, err := ParseFingerprint("zz"); err == nil {
		t.Error("invalid hex should fail")
	}
	if _, err := ParseFingerprint("abcd"); err == nil {
		t.Error("short digest should fail")
	}
}

func TestHashedPath(t *testing.T) {
	f := ComputeFingerprint([]byte("x"), nil)
	h := f.Short()

	tests := []struct {
		name string
		want string
	}{
		{"images/logo.png", "images/logo." + h + ".png"},
		{"app.min.js", "app.min." + h + ".js"},
		{"LICENSE", "LICENSE." + h},
		{"fonts/.htaccess", "fonts/.htaccess." + h},
	}
	for _, tt := range tests {
		if got := HashedPath(tt.name, f); got != tt.want {
			t.Errorf("HashedPath(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

// hashAssets resolves and fingerprints assets with the pipeline's hasher.
func hashAssets(t *testing.T, workers int, assets []*Asset) map[string]Fingerprint {
	t.Helper()
	g, err := (&Resolver{}).Resolve(assets)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b := &build{Pipeline: New(Options{Workers: workers}), log: testLogger()}
	if err := b.hash(context.Background(), g); err != nil {
		t.Fatalf("hash: %v", err)
	}
	out := make(map[string]Fingerprint, g.Len())
	for _, a := range g.Order() {
		out[a.Name] = a.Fingerprint
	}
	return out
}

func chainAssets(leaf string) []*Asset {
	return []*Asset{
		newAsset("index.html", `<link href="css/style.css"><img src="images/unrelated.png">`),
		newAsset("css/style.css", `@import "theme.css"; a { background: url(../images/logo.png); }`),
		newAsset("css/theme.css", `b { background: url(../images/icon.svg); }`),
		newAsset("images/icon.svg", leaf),
		newAsset("images/logo.png", "PNG"),
		newAsset("images/unrelated.png", "PNG2"),
	}
}

func TestHash_DeterministicAcrossWorkers(t *testing.T) {
	want := hashAssets(t, 1, chainAssets("<svg/>"))
	for _, workers := range []int{2, 4, 16} {
		got := hashAssets(t, workers, chainAssets("<svg/>"))
		for name, f := range want {
			if got[name] != f {
				t.Errorf("workers=%d: fingerprint of %s differs", workers, name)
			}
		}
	}
}

func TestHash_TransitiveSensitivity(t *testing.T) {
	before := hashAssets(t, 4, chainAssets("<svg/>"))
	after := hashAssets(t, 4, chainAssets("<svg />"))

	for _, name := range []string{"images/icon.svg", "css/theme.css", "css/style.css", "index.html"} {
		if before[name] == after[name] {
			t.Errorf("%s should change when images/icon.svg changes", name)
		}
	}
	for _, name := range []string{"images/logo.png", "images/unrelated.png"} {
		if before[name] != after[name] {
			t.Errorf("%s should not change when images/icon.svg changes", name)
		}
	}
}

func TestHash_LeafHashesRawBytes(t *testing.T) {
	got := hashAssets(t, 2, chainAssets("<svg/>"))
	if got["images/logo.png"] != ComputeFingerprint([]byte("PNG"), nil) {
		t.Error("an asset without dependencies should hash its bytes only")
	}
}
