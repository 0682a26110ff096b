package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSecret_Inline(t *testing.T) {
	b, err := LoadSecret("  " + testAccessSecret + "  ")
	if err != nil {
		t.Fatalf("LoadSecret: %v", err)
	}
	if string(b) != testAccessSecret {
		t.Errorf("LoadSecret = %q, want %q", b, testAccessSecret)
	}
}

func TestLoadSecret_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte(testRefreshSecret+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := LoadSecret("file:" + path)
	if err != nil {
		t.Fatalf("LoadSecret: %v", err)
	}
	if string(b) != testRefreshSecret {
		t.Errorf("LoadSecret = %q, want %q", b, testRefreshSecret)
	}
}

func TestLoadSecret_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"too short", "short"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadSecret(tc.in); !errors.Is(err, ErrInvalidSecret) {
				t.Errorf("LoadSecret(%q): want ErrInvalidSecret, got %v", tc.in, err)
			}
		})
	}
	if _, err := LoadSecret("file:" + filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("LoadSecret with missing file should fail")
	}
}

func TestResolveSecrets(t *testing.T) {
	a, r, err := ResolveSecrets("", "", false)
	if err != nil {
		t.Fatalf("ResolveSecrets dev fallback: %v", err)
	}
	if string(a) == string(r) {
		t.Error("dev fallback secrets must differ")
	}
	if _, _, err := ResolveSecrets("", "", true); err == nil {
		t.Error("production must not fall back to dev secrets")
	}
	if _, _, err := ResolveSecrets(testAccessSecret, testAccessSecret, false); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("shared secrets: want ErrWeakSecret, got %v", err)
	}
	a, r, err = ResolveSecrets(testAccessSecret, testRefreshSecret, true)
	if err != nil {
		t.Fatalf("ResolveSecrets: %v", err)
	}
	if string(a) != testAccessSecret || string(r) != testRefreshSecret {
		t.Error("ResolveSecrets returned wrong secrets")
	}
}

func TestTokenDigest(t *testing.T) {
	if TokenDigest("") != "" {
		t.Error("empty token digest should be empty")
	}
	d1, d2 := TokenDigest("a.b.c"), TokenDigest("a.b.c")
	if d1 != d2 || len(d1) != 16 {
		t.Errorf("TokenDigest not stable or wrong length: %q %q", d1, d2)
	}
	if TokenDigest("a.b.d") == d1 {
		t.Error("different tokens should have different digests")
	}
}
