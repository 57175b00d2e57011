package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

func TestParseSnapshotURL(t *testing.T) {
	ref, ok := ParseSnapshotURL("https://snapshot.org/#/aave.eth/proposal/0xabc")
	require.True(t, ok)
	assert.Equal(t, SnapshotRef{Space: "aave.eth", ProposalID: "0xabc"}, ref)

	ref, ok = ParseSnapshotURL("https://v1.snapshot.org/#proposal/0xdef")
	require.True(t, ok)
	assert.Equal(t, "0xdef", ref.ProposalID)

	_, ok = ParseSnapshotURL("https://snapshot.org/#/aave.eth/proposal/")
	assert.False(t, ok)
	_, ok = ParseSnapshotURL("https://example.com/#/aave.eth/proposal/0xabc")
	assert.False(t, ok)
}

func TestParseTallyURL(t *testing.T) {
	ref, ok := ParseTallyURL("https://www.tally.xyz/gov/uniswap/proposal/83")
	require.True(t, ok)
	assert.Equal(t, TallyRef{Slug: "uniswap", OnchainID: "83"}, ref)

	for _, raw := range []string{
		"https://tally.xyz/gov/uniswap",
		"https://www.tally.xyz/dao/uniswap/proposal/83",
		"https://evil.tally.xyz.example/gov/uniswap/proposal/83",
	} {
		_, ok := ParseTallyURL(raw)
		assert.False(t, ok, raw)
	}
}

type gqlCall struct {
	Query     string
	Variables map[string]any
	APIKey    string
	Agent     string
}

// gqlServer answers by matching the operation name in the query text.
func gqlServer(t *testing.T, responses map[string]string) (*httptest.Server, *[]gqlCall) {
	t.Helper()
	var mu sync.Mutex
	calls := []gqlCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.Unmarshal(raw, &req))
		mu.Lock()
		calls = append(calls, gqlCall{Query: req.Query, Variables: req.Variables, APIKey: r.Header.Get("Api-Key"), Agent: r.Header.Get("User-Agent")})
		mu.Unlock()
		for op, body := range responses {
			if strings.Contains(req.Query, "query "+op+"(") {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, body)
				return
			}
		}
		http.Error(w, "unexpected query", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFetchSnapshotProposal(t *testing.T) {
	srv, calls := gqlServer(t, map[string]string{
		"Proposal": `{"data":{"proposal":{"id":"0xabc","title":"Raise cap","body":"Body text","choices":["For","Against"],"start":1,"end":2,"state":"closed","author":"0xme","type":"single-choice","quorum":0,"scores":[10,5],"scores_total":15,"scores_updated":3,"space":{"id":"aave.eth","name":"Aave"}}}}`,
	})

	f := NewFetcher(Options{SnapshotURL: srv.URL, Now: func() time.Time { return fixedNow }})
	rec, err := f.FetchAndExtract(context.Background(), "https://snapshot.org/#/aave.eth/proposal/0xabc")
	require.NoError(t, err)

	assert.Equal(t, SourceSnapshot, rec.SourceType)
	assert.Equal(t, "2025-03-04T05:06:07.890Z", rec.FetchedAt)
	assert.Equal(t, "Raise cap", rec.Title)
	assert.Equal(t, []string{"For", "Against"}, rec.Options)
	assert.Equal(t, []float64{10, 5}, rec.CurrentResults["scores"])
	assert.Equal(t, "0xabc", rec.Metadata["proposal_id"])
	assert.Equal(t, "Aave", rec.Metadata["space_name"])

	require.Len(t, *calls, 1)
	assert.Equal(t, "0xabc", (*calls)[0].Variables["id"])
	assert.Equal(t, "gov-ai-demo/1.0", (*calls)[0].Agent)
}

func TestSnapshotFailureFallsBackToGeneric(t *testing.T) {
	srv, _ := gqlServer(t, map[string]string{"Proposal": `{"data":{"proposal":null}}`})

	f := NewFetcher(Options{
		SnapshotURL: srv.URL,
		Now:         func() time.Time { return fixedNow },
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if strings.Contains(r.URL.Host, "snapshot.org") {
				return htmlResponse(`<title>Snapshot</title><p>spa shell</p>`), nil
			}
			return http.DefaultTransport.RoundTrip(r)
		})},
	})
	rec, err := f.FetchAndExtract(context.Background(), "https://snapshot.org/#/aave.eth/proposal/0xabc")
	require.NoError(t, err)
	assert.Equal(t, SourceGeneric, rec.SourceType)
	assert.Equal(t, "Snapshot", rec.Title)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func htmlResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

const tallyProposalBody = `{"data":{"proposal":{"id":"p-1","onchainId":"83","status":"executed","quorum":"40000000",
"metadata":{"title":"Deploy v3","description":"Deploy on chain X","discourseURL":"https://gov.example/t/1","snapshotURL":"","txHash":"0xtx","ipfsHash":""},
"governor":{"id":"g-1","slug":"uniswap","name":"Uniswap","chainId":"eip155:1"},
"organization":{"id":"o-1","slug":"uniswap","name":"Uniswap"},
"voteStats":[{"type":"against","votesCount":"5","votersCount":2,"percent":10},{"type":"pendingfor","votesCount":"0","votersCount":0,"percent":0},{"type":"for","votesCount":"45","votersCount":9,"percent":90}],
"executableCalls":[{"target":"0x1"},{"target":"0x2"}]}}}`

func TestFetchTallyResolvesGovernorBySlug(t *testing.T) {
	srv, calls := gqlServer(t, map[string]string{
		"Governor": `{"data":{"governor":{"id":"g-1","slug":"uniswap","name":"Uniswap Governor","chainId":"eip155:1","organization":{"id":"o-1","slug":"uniswap","name":"Uniswap"}}}}`,
		"Proposal": tallyProposalBody,
	})

	f := NewFetcher(Options{TallyURL: srv.URL, TallyAPIKey: "secret", Now: func() time.Time { return fixedNow }})
	rec, err := f.FetchAndExtract(context.Background(), "https://www.tally.xyz/gov/uniswap/proposal/83")
	require.NoError(t, err)

	assert.Equal(t, SourceTally, rec.SourceType)
	assert.Equal(t, "Deploy v3", rec.Title)
	assert.Equal(t, []string{"FOR", "AGAINST"}, rec.Options)
	assert.Len(t, rec.CurrentResults["voteStats"], 3)
	assert.Equal(t, "g-1", rec.Metadata["governor_id"])
	assert.Equal(t, "Uniswap Governor", rec.Metadata["governor_name"])
	assert.Equal(t, "uniswap", rec.Metadata["organization_slug"])
	assert.Equal(t, "83", rec.Metadata["onchain_id"])
	assert.Equal(t, 2, rec.Metadata["executable_calls_count"])
	assert.Nil(t, rec.Metadata["snapshot_url"])

	results, err := json.Marshal(rec.CurrentResults)
	require.NoError(t, err)
	assert.Contains(t, string(results), `{"type":"against","votesCount":"5","votersCount":2,"percent":10}`)
	meta, err := json.Marshal(rec.Metadata)
	require.NoError(t, err)
	assert.Contains(t, string(meta), `"quorum":"40000000"`)

	require.Len(t, *calls, 2)
	assert.Equal(t, "secret", (*calls)[0].APIKey)
	input := (*calls)[1].Variables["input"].(map[string]any)
	assert.Equal(t, "g-1", input["governorId"])
	assert.Equal(t, "83", input["onchainId"])
}

func TestFetchTallyFallsBackToOrganization(t *testing.T) {
	srv, calls := gqlServer(t, map[string]string{
		"Governor":     `{"errors":[{"message":"governor not found"}]}`,
		"Organization": `{"data":{"organization":{"id":"o-9","slug":"arbitrum","name":"Arbitrum"}}}`,
		"Governors":    `{"data":{"governors":{"nodes":[{"id":"g-a","slug":"arb-treasury","isPrimary":false},{"id":"g-b","slug":"arb-core","isPrimary":true,"organization":{"id":"o-9","slug":"arbitrum","name":"Arbitrum"}},{}]}}}`,
		"Proposal":     tallyProposalBody,
	})

	f := NewFetcher(Options{TallyURL: srv.URL, TallyAPIKey: "k"})
	rec, err := f.FetchAndExtract(context.Background(), "https://tally.xyz/gov/arbitrum/proposal/83")
	require.NoError(t, err)
	assert.Equal(t, "g-b", rec.Metadata["governor_id"])
	assert.Equal(t, "arbitrum", rec.Metadata["organization_slug"])

	require.Len(t, *calls, 4)
	filters := (*calls)[2].Variables["input"].(map[string]any)["filters"].(map[string]any)
	assert.Equal(t, "o-9", filters["organizationId"])
	assert.Equal(t, true, filters["includeInactive"])
}

func TestTallyErrorsSurface(t *testing.T) {
	srv, _ := gqlServer(t, map[string]string{
		"Governor": `{"errors":[{"message":"rate limited"}]}`,
	})
	client := NewTallyClient(srv.URL, "k", http.DefaultClient)
	_, err := client.ResolveGovernor(context.Background(), "uniswap")
	require.Error(t, err)
	assert.Equal(t, "Tally GraphQL returned errors: rate limited", err.Error())

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 500), http.StatusUnauthorized)
	}))
	defer bad.Close()
	_, err = NewTallyClient(bad.URL, "k", http.DefaultClient).GovernorBySlug(context.Background(), "uniswap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
	assert.LessOrEqual(t, len(err.Error()), 260)
}

func TestTallyWithoutKeyUsesGenericPage(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<title>Tally</title>`)
	}))
	defer page.Close()

	f := NewFetcher(Options{})
	assert.Nil(t, f.tally)

	rec, err := f.FetchAndExtract(context.Background(), page.URL+"/gov/uniswap/proposal/1")
	require.NoError(t, err)
	assert.Equal(t, SourceGeneric, rec.SourceType)
	assert.Equal(t, "Tally", rec.Title)
}

func TestGenericFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(Options{}).FetchAndExtract(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, "failed to fetch URL: HTTP 404", err.Error())
}

func TestClassifyHost(t *testing.T) {
	assert.Equal(t, SourceDAODAO, classifyHost("https://daodao.zone/dao/x/proposals/A1"))
	assert.Equal(t, SourceDAODAO, classifyHost("https://testnet.daodao.zone/dao/x"))
	assert.Equal(t, SourceGeneric, classifyHost("https://notdaodao.zone/x"))
}
