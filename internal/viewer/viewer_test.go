package viewer

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govai/internal/logging"
	"govai/internal/report"
)

const sampleReport = `{
  "input": {"url": "https://snapshot.box/#/s:dao.eth/proposal/0xabc", "fetched_at": "2025-01-02T03:04:05.000Z", "source_type": "snapshot"},
  "extracted": {
    "source_type": "snapshot",
    "title": "Fund <b>grants</b>",
    "body": "# Heading\n\nSome **bold** text <script>alert(1)</script>",
    "options": ["For", "Against"],
    "current_results": {"scores": [300, 100], "scores_total": 400, "state": "closed"},
    "metadata": {"proposal_id": "0xabc"}
  },
  "analysis": {"summary": "Short summary", "key_changes": ["Change [A](https://example.org/a)"], "risks": [{"description": "Risk B"}], "benefits": [], "unknowns": [], "evidence_quotes": ["quoted"]},
  "recommendation": {"suggested_option": "For", "confidence": "medium", "reasoning": ["First reason", "Second **reason**"], "conflicts_with_user_principles": []},
  "limitations": ["Limited data"],
  "__ambient": {"verified": true, "model": "m-1", "request_id": "req-9", "auction": {"status": "completed", "bids": {"placed": 3, "revealed": 2}}},
  "__verification_boundary": {"deterministic": ["input.url"], "interpretive": ["analysis.summary"], "notes": ["note one"]}
}`

func newTestViewer(t *testing.T) (*Viewer, string) {
	t.Helper()
	dir := t.TempDir()
	v, err := New(Config{Logger: logging.Nop()}, report.Store{Dir: dir})
	require.NoError(t, err)
	return v, dir
}

func get(t *testing.T, v *Viewer, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	v.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListPage(t *testing.T) {
	v, dir := newTestViewer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`x`), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.json"), past, past))

	rec := get(t, v, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "DAO Governance Reports")
	assert.Contains(t, body, "Total reports: 2")
	assert.NotContains(t, body, "notes.txt")
	assert.Less(t, strings.Index(body, "new.json"), strings.Index(body, "old.json"))
	assert.Contains(t, body, "0.00 KB")
}

func TestListPageEmptyRussian(t *testing.T) {
	v, _ := newTestViewer(t)
	rec := get(t, v, "/?lang=ru")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Нет доступных отчётов")
	assert.Contains(t, rec.Body.String(), `lang="ru"`)
}

func TestReportPage(t *testing.T) {
	v, dir := newTestViewer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.json"), []byte(sampleReport), 0o644))

	rec := get(t, v, "/report/r.json")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "Fund &lt;b&gt;grants&lt;/b&gt;")
	assert.Contains(t, body, "<strong>bold</strong>")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "Scores")
	assert.Contains(t, body, "75.00%")
	assert.Contains(t, body, "25.00%")
	assert.Contains(t, body, "Risk B")
	assert.Contains(t, body, "Limited data")
	assert.Contains(t, body, "Request ID")
	assert.Contains(t, body, "req-9")
	assert.Contains(t, body, "note one")
	assert.Contains(t, body, "proposal_id")
	assert.Contains(t, body, `<a href="https://example.org/a">A</a>`)
}

func TestReportPageReasoningList(t *testing.T) {
	v, dir := newTestViewer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.json"), []byte(sampleReport), 0o644))

	body := get(t, v, "/report/r.json").Body.String()
	assert.NotContains(t, body, "[&quot;First reason&quot;")
	first := strings.Index(body, "<li><p>First reason</p>")
	second := strings.Index(body, "<li><p>Second <strong>reason</strong></p>")
	require.True(t, first > 0 && second > 0)
	assert.Less(t, first, second)
}

func TestReportPageFailedVerification(t *testing.T) {
	v, dir := newTestViewer(t)
	doc := `{
  "analysis": {"summary": "s", "key_changes": [], "risks": [], "benefits": [], "unknowns": [], "evidence_quotes": []},
  "__ambient": {
    "verified": false,
    "verified_by_validators": false,
    "request_id": "req-1",
    "events": [
      {"kind": "auction", "type": "auction.started"},
      {"kind": "verification", "type": "verification.failed", "payload": {"reason": "mismatch"}}
    ]
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.json"), []byte(doc), 0o644))

	rec := get(t, v, "/report/f.json")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<strong>Verified:</strong> <span class="badge badge-rejected">No</span>`)
	assert.Contains(t, body, "<strong>Validators:</strong> No")
	assert.Contains(t, body, "Verification events")
	assert.Contains(t, body, `<li class="path">verification.failed</li>`)
	assert.NotContains(t, body, "auction.started")
}

func TestReportPageVotesKeepOrder(t *testing.T) {
	v, dir := newTestViewer(t)
	doc := `{"extracted": {"title": "t", "body": "b", "options": [], "current_results": {"votes": {"yes": "30", "abstain": 10, "no": 60}, "status": "passed"}, "metadata": {}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v.json"), []byte(doc), 0o644))

	body := get(t, v, "/report/v.json").Body.String()
	yes := strings.Index(body, ">yes<")
	abstain := strings.Index(body, ">abstain<")
	no := strings.Index(body, ">no<")
	require.True(t, yes > 0 && abstain > 0 && no > 0)
	assert.Less(t, yes, abstain)
	assert.Less(t, abstain, no)
	assert.Contains(t, body, "60.00%")
	assert.Contains(t, body, "badge-passed")
}

func TestReportPageErrorReport(t *testing.T) {
	v, dir := newTestViewer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "e.json"), []byte(`{"status":"error","error":"boom"}`), 0o644))

	rec := get(t, v, "/report/e.json?lang=ru")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Анализ завершился ошибкой")
	assert.Contains(t, rec.Body.String(), "boom")
}

func TestReportPageErrors(t *testing.T) {
	v, dir := newTestViewer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`not json`), 0o644))

	assert.Equal(t, http.StatusNotFound, get(t, v, "/report/missing.json").Code)
	assert.Equal(t, http.StatusNotFound, get(t, v, "/report/bad.json").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, v, "/report/..").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, v, "/report/"+url.PathEscape(`..\secret`)).Code)
	assert.Equal(t, http.StatusBadRequest, get(t, v, "/report/a%2Fb.json").Code)

	rec := get(t, v, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")
}

func TestLangLinksPreserveQuery(t *testing.T) {
	u, err := url.Parse("/report/x.json?foo=bar&lang=en")
	require.NoError(t, err)
	links := langLinks(u, "en")
	require.Len(t, links, 2)
	assert.True(t, links[0].Active)
	assert.Equal(t, "/report/x.json?foo=bar&lang=ru", links[1].Href)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "1.50T", FormatNumber(1.5e12))
	assert.Equal(t, "2.00B", FormatNumber(2e9))
	assert.Equal(t, "3.25M", FormatNumber(3.25e6))
	assert.Equal(t, "1.00K", FormatNumber("1000"))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "12,5", FormatNumber(12.5))
	assert.Equal(t, "n/a", FormatNumber("n/a"))
	assert.Equal(t, "1\u00a0234", GroupDigits(1234))
}

func TestMarkdownEscapesRawHTML(t *testing.T) {
	out := string(Markdown("hello <img src=x onerror=alert(1)> **world**"))
	assert.Contains(t, out, "<strong>world</strong>")
	assert.NotContains(t, out, "<img")
	assert.Empty(t, Markdown("  "))
}
