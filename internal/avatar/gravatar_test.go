package avatar

import (
	"strings"
	"testing"
)

func TestGravatarURL_Normalization(t *testing.T) {
	t.Parallel()

	a := GravatarURL("User@Example.com")
	b := GravatarURL("  user@example.com ")
	if a != b {
		t.Errorf("normalized addresses should produce the same URL: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "https://www.gravatar.com/avatar/") {
		t.Errorf("unexpected URL: %q", a)
	}
}

func TestGravatarURL_KnownHash(t *testing.T) {
	t.Parallel()

	// md5("user@example.com") is a fixed value
	got := GravatarURL("user@example.com")
	want := "https://www.gravatar.com/avatar/b58996c504c5638798eb6b511e6f49af?d=identicon"
	if got != want {
		t.Errorf("GravatarURL = %q, want %q", got, want)
	}
}
