package security

import (
	"strings"
	"testing"
)

func TestSanitizeBody_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{"段落", "<p>本文</p>", []string{"<p>本文</p>"}},
		{"見出し", "<h2>見出し</h2>", []string{"<h2>見出し</h2>"}},
		{"リスト", "<ul><li>項目</li></ul>", []string{"<ul>", "<li>項目</li>", "</ul>"}},
		{"コード", "<pre><code>func main() {}</code></pre>", []string{"<pre><code>func main() {}</code></pre>"}},
		{"強調", "<strong>太字</strong><em>斜体</em>", []string{"<strong>太字</strong>", "<em>斜体</em>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeBody(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("SanitizeBody(%q) = %q, want contains %q", tt.input, got, want)
				}
			}
		})
	}
}

func TestSanitizeBody_RemovesDangerousContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{"scriptタグ", `<p>ok</p><script>alert(1)</script>`, []string{"<script", "alert(1)"}},
		{"iframeタグ", `<iframe src="https://evil.example"></iframe>`, []string{"<iframe"}},
		{"onイベント属性", `<p onclick="steal()">x</p>`, []string{"onclick", "steal()"}},
		{"javascriptスキーム", `<a href="javascript:alert(1)">x</a>`, []string{"javascript:"}},
		{"http画像", `<img src="http://example.com/a.png">`, []string{"http://example.com/a.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeBody(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("SanitizeBody(%q) = %q, must not contain %q", tt.input, got, absent)
				}
			}
		})
	}
}

func TestSanitizeBody_Links(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.SanitizeBody(`<a href="https://example.com">link</a>`)

	for _, want := range []string{`href="https://example.com"`, `target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("SanitizeBody() = %q, want contains %q", got, want)
		}
	}
}

func TestSanitizeBody_PlainTextUnchanged(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := "It was a good day"
	if got := sanitizer.SanitizeBody(input); got != input {
		t.Errorf("SanitizeBody(%q) = %q, want unchanged", input, got)
	}
	if got := sanitizer.SanitizeBody(""); got != "" {
		t.Errorf("SanitizeBody(\"\") = %q, want empty", got)
	}
}

func TestSanitizeBody_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p>hello <a href="https://example.com">x</a></p><script>bad()</script>`
	first := sanitizer.SanitizeBody(input)
	second := sanitizer.SanitizeBody(first)
	if first != second {
		t.Errorf("not idempotent: first=%q second=%q", first, second)
	}
}

func TestSanitizeText_StripsAllTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.SanitizeText(`I <b>like</b> <script>x()</script>turtles`)
	if strings.Contains(got, "<") {
		t.Errorf("SanitizeText() = %q, want no tags", got)
	}
	if !strings.Contains(got, "like") || !strings.Contains(got, "turtles") {
		t.Errorf("SanitizeText() = %q, want text preserved", got)
	}
}
