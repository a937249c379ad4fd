// Package telegramhtml turns free-form model output into the small HTML
// subset accepted by the Telegram Bot API parse mode "HTML".
package telegramhtml

import (
	"regexp"
	"strings"
)

var (
	fencedRe = regexp.MustCompile("```([\\s\\S]*?)```")

	// Applied in order: bold before italic so "**x**" is not split by "*".
	inlineRules = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`\*\*(.*?)\*\*`), "<b>$1</b>"},
		{regexp.MustCompile(`__(.*?)__`), "<b>$1</b>"},
		{regexp.MustCompile(`\*(.*?)\*`), "<i>$1</i>"},
		{regexp.MustCompile(`_(.*?)_`), "<i>$1</i>"},
		{regexp.MustCompile("`(.*?)`"), "<code>$1</code>"},
		{regexp.MustCompile(`~~(.*?)~~`), "<s>$1</s>"},
	}
)

// MarkdownToHTML converts the markdown dialect models tend to emit into
// HTML tags. Fenced blocks become <pre> and their content is left as is;
// everything outside them gets the inline rules.
func MarkdownToHTML(text string) string {
	matches := fencedRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return convertInline(text)
	}

	var b strings.Builder
	b.Grow(len(text) + 16)
	last := 0
	for _, m := range matches {
		b.WriteString(convertInline(text[last:m[0]]))
		b.WriteString("<pre>")
		b.WriteString(text[m[2]:m[3]])
		b.WriteString("</pre>")
		last = m[1]
	}
	b.WriteString(convertInline(text[last:]))
	return b.String()
}

func convertInline(text string) string {
	for _, rule := range inlineRules {
		text = rule.re.ReplaceAllString(text, rule.repl)
	}
	return text
}
