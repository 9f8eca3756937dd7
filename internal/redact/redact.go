// Package redact scrubs credentials and personal data from log lines and
// emitted events.
package redact

import (
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

const mask = "[REDACTED]"

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Applied in order; later rules must not re-match the output of earlier ones.
var rules = []rule{
	{regexp.MustCompile(`(?i)(authorization\s*[:=]\s*bearer\s+)[A-Za-z0-9._\-+/=]+`), "${1}" + mask},
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._\-+/=]+`), "${1}" + mask},
	{regexp.MustCompile(`(?i)(x-api-key\s*[:=]\s*)[A-Za-z0-9._\-+/=]+`), "${1}" + mask},
	{regexp.MustCompile(`(?i)(api[_-]?keys?\s*[:=]\s*\[)[^\]]+(\])`), "${1}REDACTED${2}"},
	{regexp.MustCompile(`(?i)(api[_-]?keys?\s*[:=]\s*)[A-Za-z0-9._\-+/=]+`), "${1}" + mask},
	{regexp.MustCompile(`\bsk-(?:ant-)?[A-Za-z0-9_\-]{10,}`), "sk-" + mask},
	{regexp.MustCompile(`(?i)\b(key|token|secret|password)\s*[:=]\s*[A-Za-z0-9._\-+/=]{6,}`), "${1}=" + mask},
}

var (
	urlRe       = regexp.MustCompile(`https?://[^\s"'<>]+`)
	emailAddrRe = regexp.MustCompile(`\b([A-Za-z0-9])[A-Za-z0-9._%+\-]*@([A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,})\b`)
)

// String redacts known secret patterns from free-form strings. URLs lose
// credentials, query strings and token-like path segments. Email addresses
// keep their first character and domain.
func String(s string) string {
	if s == "" {
		return s
	}
	out := urlRe.ReplaceAllStringFunc(s, redactURL)
	for _, r := range rules {
		out = r.re.ReplaceAllString(out, r.repl)
	}
	out = emailAddrRe.ReplaceAllString(out, "${1}***@${2}")
	for strings.Contains(out, mask+mask) {
		out = strings.ReplaceAll(out, mask+mask, mask)
	}
	return out
}

// Any formats the value with %+v and redacts secrets.
func Any(v any) string {
	return String(fmt.Sprintf("%+v", v))
}

// Sprintf formats like fmt.Sprintf and redacts the result.
func Sprintf(format string, args ...interface{}) string {
	return String(fmt.Sprintf(format, args...))
}

// Logf prints a redacted log line.
func Logf(format string, args ...interface{}) {
	log.Print(Sprintf(format, args...))
}

// Fatalf prints a redacted fatal log line.
func Fatalf(format string, args ...interface{}) {
	log.Fatal(Sprintf(format, args...))
}

func redactURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "[REDACTED_URL]"
	}

	segs := strings.Split(u.Path, "/")
	for i, seg := range segs {
		if tokenLike(seg) {
			segs[i] = mask
		}
	}
	out := u.Scheme + "://" + u.Host + strings.Join(segs, "/")
	if u.RawQuery != "" {
		out += "?" + mask
	}
	return out
}

// tokenLike reports path segments that look generated rather than chosen:
// long ones, or ones that mix letters and digits beyond a short version tag.
func tokenLike(seg string) bool {
	if len(seg) >= 24 {
		return true
	}
	var letters, digits int
	for _, r := range seg {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	return letters > 0 && digits > 0 && len(seg) >= 8
}
