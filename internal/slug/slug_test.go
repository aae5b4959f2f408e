package slug

import (
	"regexp"
	"testing"
)

func TestSlugify_Pattern(t *testing.T) {
	tests := []struct {
		title   string
		pattern string
	}{
		{"A New Day", `^a-new-day-[0-9a-z]{6}$`},
		{"How to train your dragon?!", `^how-to-train-your-dragon-[0-9a-z]{6}$`},
		{"  Trailing   spaces  ", `^trailing-spaces-[0-9a-z]{6}$`},
		{"Crème brûlée", `^creme-brulee-[0-9a-z]{6}$`},
		{"!!!", `^[0-9a-z]{6}$`},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := Slugify(tt.title)
			if !regexp.MustCompile(tt.pattern).MatchString(got) {
				t.Errorf("Slugify(%q) = %q, want match %s", tt.title, got, tt.pattern)
			}
		})
	}
}

// 同じタイトルでもサフィックスで区別される
func TestSlugify_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := Slugify("A New Day")
		if seen[s] {
			t.Fatalf("duplicate slug: %s", s)
		}
		seen[s] = true
	}
}

func TestRandomSuffix_ZeroPadded(t *testing.T) {
	for i := 0; i < 200; i++ {
		if s := randomSuffix(); len(s) != suffixLength {
			t.Fatalf("randomSuffix() = %q, want length %d", s, suffixLength)
		}
	}
}
