package viewer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// goldmark escapes raw HTML unless html.WithUnsafe is set.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Markdown renders text as sanitized HTML.
func Markdown(text string) template.HTML {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(text) + "</p>")
	}
	return template.HTML(buf.String())
}

// toFloat parses numbers that may arrive as JSON numbers or strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// FormatNumber abbreviates large values (K, M, B, T with two decimals) and
// groups digits of smaller ones. Non-numeric input is printed as is.
func FormatNumber(v any) string {
	n, ok := toFloat(v)
	if !ok {
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	}
	switch {
	case n >= 1e12:
		return strconv.FormatFloat(n/1e12, 'f', 2, 64) + "T"
	case n >= 1e9:
		return strconv.FormatFloat(n/1e9, 'f', 2, 64) + "B"
	case n >= 1e6:
		return strconv.FormatFloat(n/1e6, 'f', 2, 64) + "M"
	case n >= 1e3:
		return strconv.FormatFloat(n/1e3, 'f', 2, 64) + "K"
	}
	return GroupDigits(n)
}

// GroupDigits prints n with no-break-space thousands groups and at most three
// decimals, trailing zeros dropped.
func GroupDigits(n float64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := strconv.FormatFloat(math.Round(n*1000)/1000, 'f', -1, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var sb strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteRune('\u00a0')
		}
		sb.WriteRune(r)
	}
	if frac != "" {
		sb.WriteByte(',')
		sb.WriteString(frac)
	}
	return sign + sb.String()
}

// FormatPercent renders p with two decimals.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

// FormatTime renders an ISO timestamp or time value for display.
func FormatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Local().Format("02.01.2006, 15:04:05")
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return t
		}
		return parsed.Local().Format("02.01.2006, 15:04:05")
	}
	return fmt.Sprint(v)
}

// FormatSize renders bytes as kilobytes.
func FormatSize(n int64) string {
	return strconv.FormatFloat(float64(n)/1024, 'f', 2, 64) + " KB"
}

// prettyJSON indents v for the metadata block.
func prettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// cssToken keeps class-name fragments to a safe alphabet.
func cssToken(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// LangLink is one entry of the language switcher.
type LangLink struct {
	Label  string
	Href   string
	Active bool
}

// langLinks rebuilds the current URL for each language, keeping the other
// query parameters.
func langLinks(current *url.URL, lang string) []LangLink {
	links := make([]LangLink, 0, 2)
	for _, l := range []string{"en", "ru"} {
		u := *current
		q := u.Query()
		q.Set("lang", l)
		u.RawQuery = q.Encode()
		links = append(links, LangLink{Label: strings.ToUpper(l), Href: u.Path + "?" + u.RawQuery, Active: l == lang})
	}
	return links
}
