// Package extract pulls a proposal's title, body, voting options and
// results out of arbitrary governance pages.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Unknown marks a field the page did not provide.
const Unknown = "UNKNOWN"

// MaxBodyRunes bounds the plain-text body taken from pages without
// hydration data.
const MaxBodyRunes = 5000

// Result is the source-agnostic part of an extracted record.
type Result struct {
	Title          string
	Body           string
	Options        []string
	CurrentResults map[string]any
	Metadata       map[string]any
}

// FromHTML extracts from a page, preferring embedded Next.js hydration data
// and falling back to the visible text.
func FromHTML(html string) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{Title: Unknown, Options: []string{}, Metadata: map[string]any{}}
	}

	if res, ok := fromNextData(doc); ok {
		return res
	}
	return fromText(doc)
}

func fromNextData(doc *goquery.Document) (Result, bool) {
	raw := strings.TrimSpace(doc.Find(`script#__NEXT_DATA__`).First().Text())
	if raw == "" {
		return Result{}, false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return Result{}, false
	}
	pageProps, ok := Lookup(data, "props", "pageProps")
	if !ok {
		return Result{}, false
	}
	if _, isMap := pageProps.(map[string]any); !isMap {
		return Result{}, false
	}

	info, _ := Lookup(pageProps, "proposalInfo")

	title := firstString(
		lookupValue(info, "title"),
		deepValue(pageProps, "proposal", "title"),
	)
	body := firstString(
		lookupValue(info, "description"),
		deepValue(pageProps, "proposal", "description"),
		deepValue(pageProps, "proposal", "body"),
	)

	options := StringSlice(lookupValue(info, "choices"))
	if options == nil {
		options = StringSlice(deepValue(pageProps, "proposal", "choices"))
	}
	if options == nil {
		options = StringSlice(deepValue(pageProps, "proposal", "options"))
	}
	if options == nil {
		options = optionsFromWording(lookupValue(info, "description"))
	}

	votes := deepValue(pageProps, "proposal", "votes")
	if !truthy(votes) {
		votes = deepValue(pageProps, "votes")
	}
	if !truthy(votes) {
		votes = nil
	}
	status := firstString(
		deepValue(pageProps, "proposal", "status"),
		lookupValue(info, "status"),
	)

	if title == "" && body == "" {
		return Result{}, false
	}
	if title == "" {
		title = Unknown
	}

	res := Result{
		Title:    title,
		Body:     body,
		Options:  options,
		Metadata: map[string]any{"nextjs": true},
	}
	if res.Options == nil {
		res.Options = []string{}
	}
	if votes != nil || status != "" {
		var statusValue any
		if status != "" {
			statusValue = status
		}
		res.CurrentResults = map[string]any{"votes": votes, "status": statusValue}
	}
	return res, true
}

// optionsFromWording covers pages that only describe the choices in prose,
// e.g. "Vote YES to ... Vote NO to ...".
func optionsFromWording(description any) []string {
	d, ok := description.(string)
	if !ok || d == "" {
		return nil
	}
	upper := strings.ToUpper(d)
	if !strings.Contains(upper, "VOTE YES") || !strings.Contains(upper, "VOTE NO") {
		return nil
	}
	if strings.Contains(upper, "ABSTAIN") {
		return []string{"YES", "NO", "ABSTAIN"}
	}
	return []string{"YES", "NO"}
}

func fromText(doc *goquery.Document) Result {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = Unknown
	}

	doc.Find("script, style, noscript, template").Remove()

	var parts []string
	collectText(doc.Selection, &parts)
	text := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")

	return Result{
		Title:    title,
		Body:     truncateRunes(text, MaxBodyRunes),
		Options:  []string{},
		Metadata: map[string]any{},
	}
}

// collectText gathers text nodes in document order, keeping element
// boundaries as word breaks.
func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			*parts = append(*parts, child.Text())
			return
		}
		collectText(child, parts)
	})
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func lookupValue(root any, path ...string) any {
	v, _ := Lookup(root, path...)
	return v
}

func deepValue(root any, path ...string) any {
	v, _ := FindFirstDeep(root, path...)
	return v
}

func firstString(values ...any) string {
	for _, v := range values {
		if s := String(v); s != "" {
			return s
		}
	}
	return ""
}
