package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SnapshotRef identifies a proposal from a Snapshot hash route such as
// https://snapshot.org/#/aave.eth/proposal/0xabc.
type SnapshotRef struct {
	Space      string
	ProposalID string
}

// ParseSnapshotURL recognizes Snapshot proposal links.
func ParseSnapshotURL(raw string) (SnapshotRef, bool) {
	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(strings.ToLower(u.Hostname()), "snapshot.org") {
		return SnapshotRef{}, false
	}
	fragment := strings.TrimPrefix(strings.TrimPrefix(u.Fragment, "#"), "/")
	var parts []string
	for _, p := range strings.Split(fragment, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	for i, p := range parts {
		if p == "proposal" && i+1 < len(parts) {
			ref := SnapshotRef{ProposalID: parts[i+1]}
			if i > 0 {
				ref.Space = parts[0]
			}
			return ref, true
		}
	}
	return SnapshotRef{}, false
}

const snapshotProposalQuery = `
query Proposal($id: String!) {
  proposal(id: $id) {
    id
    title
    body
    choices
    start
    end
    state
    author
    type
    quorum
    scores
    scores_total
    scores_updated
    space { id name }
  }
}`

// SnapshotProposal is the subset of the Snapshot hub schema the analyzer uses.
type SnapshotProposal struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	Choices       []string  `json:"choices"`
	Start         *int64    `json:"start"`
	End           *int64    `json:"end"`
	State         *string   `json:"state"`
	Author        *string   `json:"author"`
	Type          *string   `json:"type"`
	Quorum        *float64  `json:"quorum"`
	Scores        []float64 `json:"scores"`
	ScoresTotal   *float64  `json:"scores_total"`
	ScoresUpdated *int64    `json:"scores_updated"`
	Space         *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"space"`
}

// SnapshotClient queries the Snapshot hub GraphQL API.
type SnapshotClient struct {
	gql *graphQLClient
}

// NewSnapshotClient builds a client for endpoint using httpClient.
func NewSnapshotClient(endpoint string, httpClient *http.Client) *SnapshotClient {
	return &SnapshotClient{gql: &graphQLClient{
		service:  "Snapshot",
		endpoint: endpoint,
		http:     httpClient,
	}}
}

// FetchProposal loads one proposal by id.
func (c *SnapshotClient) FetchProposal(ctx context.Context, id string) (*SnapshotProposal, error) {
	var data struct {
		Proposal *SnapshotProposal `json:"proposal"`
	}
	if err := c.gql.do(ctx, snapshotProposalQuery, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Proposal == nil {
		return nil, fmt.Errorf("snapshot proposal %s: %w", id, ErrNotFound)
	}
	return data.Proposal, nil
}

// NormalizeSnapshot converts a hub proposal into a Record.
func NormalizeSnapshot(p *SnapshotProposal, fetchedAt time.Time) Record {
	title := p.Title
	if title == "" {
		title = "UNKNOWN"
	}
	options := p.Choices
	if options == nil {
		options = []string{}
	}

	var results map[string]any
	if len(p.Scores) > 0 {
		results = map[string]any{
			"scores":         p.Scores,
			"scores_total":   p.ScoresTotal,
			"scores_updated": p.ScoresUpdated,
			"state":          p.State,
		}
	}

	metadata := map[string]any{
		"proposal_id": p.ID,
		"space_id":    nil,
		"space_name":  nil,
		"author":      p.Author,
		"start":       p.Start,
		"end":         p.End,
		"state":       p.State,
		"type":        p.Type,
		"quorum":      p.Quorum,
	}
	if p.Space != nil {
		metadata["space_id"] = p.Space.ID
		metadata["space_name"] = p.Space.Name
	}

	return Record{
		SourceType:     SourceSnapshot,
		FetchedAt:      FormatTimestamp(fetchedAt),
		Title:          title,
		Body:           p.Body,
		Options:        options,
		CurrentResults: results,
		Metadata:       metadata,
	}
}
