package render

import "testing"

func TestToTelegramHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "inline styles", in: "**bold** and *it* and ~~gone~~ `x<y`", want: "<b>bold</b> and <i>it</i> and <s>gone</s> <code>x&lt;y</code>"},
		{name: "escaping", in: "a < b & c > d", want: "a &lt; b &amp; c &gt; d"},
		{name: "heading", in: "# Title\n\nbody", want: "<b>Title</b>\n\nbody"},
		{name: "fenced code", in: "```go\nfmt.Println(\"<hi>\")\n```", want: `<pre><code class="language-go">fmt.Println(&#34;&lt;hi&gt;&#34;)</code></pre>`},
		{name: "bullet list", in: "- one\n- two", want: "• one\n• two"},
		{name: "ordered list", in: "1. a\n2. b", want: "1. a\n2. b"},
		{name: "link", in: "[site](https://example.com?a=1&b=2)", want: `<a href="https://example.com?a=1&amp;b=2">site</a>`},
		{name: "blockquote", in: "> quoted", want: "<blockquote>quoted</blockquote>"},
		{name: "soft break", in: "line one\nline two", want: "line one\nline two"},
		{name: "paragraphs", in: "first\n\nsecond", want: "first\n\nsecond"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ToTelegramHTML(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ToTelegramHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToTelegramHTMLEmpty(t *testing.T) {
	t.Parallel()

	got, err := ToTelegramHTML("   ")
	if err != nil || got != "" {
		t.Fatalf("expected empty output without error, got %q, %v", got, err)
	}
}
