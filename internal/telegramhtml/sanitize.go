package telegramhtml

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/khmercoders/kcbot/internal/biz/domain"
)

// AllowedTags is the tag set Telegram renders
var AllowedTags = []string{
	"b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "a", "tg-spoiler",
}

// maxCollapsePasses bounds the empty/nested cleanup loop
const maxCollapsePasses = 32

var (
	escaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#x27;",
	)

	anchorOpenRe = regexp.MustCompile(`(?i)&lt;a\s+href=&quot;([^&"]+)&quot;&gt;`)
	anyTagRe     = regexp.MustCompile(`<[^>]*>`)
	tokenRe      = regexp.MustCompile(`<(/?)([a-zA-Z-]+)(?:\s[^>]*)?>`)

	reenable  []tagPattern
	emptyTags []tagPattern
	nested    []tagPattern
)

type tagPattern struct {
	tag  string
	re   *regexp.Regexp
	repl string
}

func init() {
	for _, tag := range AllowedTags {
		q := regexp.QuoteMeta(tag)
		reenable = append(reenable,
			tagPattern{tag, regexp.MustCompile(`(?i)&lt;` + q + `&gt;`), "<" + tag + ">"},
			tagPattern{tag, regexp.MustCompile(`(?i)&lt;/` + q + `&gt;`), "</" + tag + ">"},
		)
		if tag == "a" {
			continue
		}
		emptyTags = append(emptyTags, tagPattern{tag, regexp.MustCompile(`(?i)<` + q + `></` + q + `>`), ""})
		if tag == "pre" {
			continue
		}
		nested = append(nested, tagPattern{
			tag,
			regexp.MustCompile(`(?i)<` + q + `>([^<]*)<` + q + `>([^<]*)</` + q + `>([^<]*)</` + q + `>`),
			"<" + tag + ">${1}${2}${3}</" + tag + ">",
		})
	}
}

// Render converts markdown and sanitizes the result
func Render(text string) (string, error) {
	return Sanitize(MarkdownToHTML(text))
}

// Sanitize escapes everything and re-enables only AllowedTags. When the
// result is not well formed, or anything goes wrong, the tags are stripped
// and a *domain.SanitizationError is returned alongside the plain text.
// The returned string is always safe to send.
func Sanitize(text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = StripTags(text)
			err = &domain.SanitizationError{Reason: fmt.Sprint(r)}
		}
	}()

	sanitized := escaper.Replace(text)
	for _, p := range reenable {
		sanitized = p.re.ReplaceAllLiteralString(sanitized, p.repl)
	}
	sanitized = anchorOpenRe.ReplaceAllString(sanitized, `<a href="$1">`)
	sanitized = collapse(sanitized)

	if reason := checkStructure(sanitized); reason != "" {
		return anyTagRe.ReplaceAllString(sanitized, ""), &domain.SanitizationError{Reason: reason}
	}
	return sanitized, nil
}

// StripTags removes every tag and escapes what is left
func StripTags(text string) string {
	return escaper.Replace(anyTagRe.ReplaceAllString(text, ""))
}

// collapse removes empty pairs and one level of same-tag nesting per pass
// until nothing changes.
func collapse(html string) string {
	for i := 0; i < maxCollapsePasses; i++ {
		before := html
		for _, p := range emptyTags {
			html = p.re.ReplaceAllLiteralString(html, "")
		}
		for _, p := range nested {
			html = p.re.ReplaceAllString(html, p.repl)
		}
		if html == before {
			break
		}
	}
	return html
}

// checkStructure reports why the tag structure would be rejected, or "" if it is fine
func checkStructure(html string) string {
	var stack []string
	for _, m := range tokenRe.FindAllStringSubmatch(html, -1) {
		closing, tag := m[1] == "/", strings.ToLower(m[2])
		if !closing {
			for _, open := range stack {
				if open == tag {
					return "nested <" + tag + ">"
				}
			}
			stack = append(stack, tag)
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1] != tag {
			return "unexpected </" + tag + ">"
		}
		stack = stack[:len(stack)-1]
	}
	if len(stack) > 0 {
		return "unclosed <" + stack[len(stack)-1] + ">"
	}
	return ""
}
