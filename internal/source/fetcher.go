package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	alexerrors "govai/internal/errors"
	"govai/internal/extract"
	"govai/internal/httpclient"
	"govai/internal/logging"
	"govai/internal/observability"
)

const maxPageSize = 10 << 20

// Options configures a Fetcher. Zero values select the public endpoints.
type Options struct {
	HTTPClient  *http.Client
	SnapshotURL string
	TallyURL    string
	TallyAPIKey string
	Logger      logging.Logger
	Metrics     *observability.Metrics
	Tracer      *observability.TracerProvider
	Now         func() time.Time
}

// Fetcher resolves a proposal URL to a Record, trying Snapshot, then Tally,
// then the page itself.
type Fetcher struct {
	http     *http.Client
	snapshot *SnapshotClient
	tally    *TallyClient
	logger   logging.Logger
	metrics  *observability.Metrics
	tracer   *observability.TracerProvider
	now      func() time.Time
}

// NewFetcher builds a Fetcher. The Tally fast path is enabled only when an
// API key is configured.
func NewFetcher(opts Options) *Fetcher {
	logger := logging.OrNop(opts.Logger)
	client := opts.HTTPClient
	if client == nil {
		client = httpclient.New(60*time.Second, logger)
	}
	snapshotURL := opts.SnapshotURL
	if snapshotURL == "" {
		snapshotURL = "https://hub.snapshot.org/graphql"
	}
	tallyURL := opts.TallyURL
	if tallyURL == "" {
		tallyURL = "https://api.tally.xyz/query"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	f := &Fetcher{
		http:     client,
		snapshot: NewSnapshotClient(snapshotURL, client),
		logger:   logger,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		now:      now,
	}
	if key := strings.TrimSpace(opts.TallyAPIKey); key != "" {
		f.tally = NewTallyClient(tallyURL, key, client)
	}
	return f
}

// FetchAndExtract returns the normalized record for rawURL. Fast-path
// failures are logged and fall through; only the generic fetch can fail
// the call.
func (f *Fetcher) FetchAndExtract(ctx context.Context, rawURL string) (rec Record, err error) {
	ctx, span := f.tracer.StartSpan(ctx, observability.SpanFetch, attribute.String(observability.AttrURL, rawURL))
	defer func() {
		span.SetAttributes(attribute.String(observability.AttrSource, string(rec.SourceType)))
		observability.EndSpan(span, err)
	}()

	if ref, ok := ParseSnapshotURL(rawURL); ok {
		p, err := f.snapshot.FetchProposal(ctx, ref.ProposalID)
		if err == nil {
			f.metrics.ObserveFetch(string(SourceSnapshot), "ok")
			return NormalizeSnapshot(p, f.now()), nil
		}
		f.metrics.ObserveFetch(string(SourceSnapshot), "error")
		f.logger.Debug("snapshot fast path failed for %s: %v", rawURL, err)
	}

	if ref, ok := ParseTallyURL(rawURL); ok && f.tally != nil {
		rec, err := f.fetchTally(ctx, ref)
		if err == nil {
			f.metrics.ObserveFetch(string(SourceTally), "ok")
			return rec, nil
		}
		f.metrics.ObserveFetch(string(SourceTally), "error")
		f.logger.Warn("[tally] fast-path failed: url=%s error=%v", rawURL, err)
	}

	rec, err = f.fetchGeneric(ctx, rawURL)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	f.metrics.ObserveFetch(string(classifyHost(rawURL)), outcome)
	return rec, err
}

func (f *Fetcher) fetchTally(ctx context.Context, ref TallyRef) (Record, error) {
	g, err := f.tally.ResolveGovernor(ctx, ref.Slug)
	if err != nil {
		return Record{}, err
	}
	p, err := f.tally.Proposal(ctx, g.ID, ref.OnchainID)
	if err != nil {
		return Record{}, err
	}
	return NormalizeTally(g, p, f.now()), nil
}

func (f *Fetcher) fetchGeneric(ctx context.Context, rawURL string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Record{}, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Record{}, alexerrors.ClassifyHTTPStatus(&alexerrors.HTTPError{
			Service:    "failed to fetch URL",
			StatusCode: resp.StatusCode,
		})
	}
	body, err := httpclient.ReadAllWithLimit(resp.Body, maxPageSize)
	if err != nil {
		return Record{}, fmt.Errorf("read page: %w", err)
	}

	return fromExtract(classifyHost(rawURL), f.now(), extract.FromHTML(string(body))), nil
}

// classifyHost marks daodao.zone pages; everything else fetched as HTML is
// generic.
func classifyHost(rawURL string) SourceType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SourceGeneric
	}
	host := strings.ToLower(u.Hostname())
	if host == "daodao.zone" || strings.HasSuffix(host, ".daodao.zone") {
		return SourceDAODAO
	}
	return SourceGeneric
}
