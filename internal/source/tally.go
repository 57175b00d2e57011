package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TallyRef identifies a proposal from a link such as
// https://www.tally.xyz/gov/uniswap/proposal/83.
type TallyRef struct {
	Slug      string
	OnchainID string
}

// ParseTallyURL recognizes Tally proposal links.
func ParseTallyURL(raw string) (TallyRef, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return TallyRef{}, false
	}
	host := strings.ToLower(u.Hostname())
	if host != "www.tally.xyz" && host != "tally.xyz" {
		return TallyRef{}, false
	}
	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 4 || parts[0] != "gov" || parts[2] != "proposal" {
		return TallyRef{}, false
	}
	return TallyRef{Slug: parts[1], OnchainID: parts[3]}, true
}

const (
	tallyGovernorQuery = `
query Governor($input: GovernorInput!) {
  governor(input: $input) {
    id
    slug
    name
    chainId
    organization { id slug name }
  }
}`

	tallyOrganizationQuery = `
query Organization($input: OrganizationInput!) {
  organization(input: $input) {
    id
    slug
    name
  }
}`

	tallyGovernorsQuery = `
query Governors($input: GovernorsInput!) {
  governors(input: $input) {
    nodes {
      ... on Governor {
        id
        slug
        name
        chainId
        isPrimary
        organization { id slug name }
      }
    }
  }
}`

	tallyProposalQuery = `
query Proposal($input: ProposalInput!) {
  proposal(input: $input) {
    id
    onchainId
    status
    quorum
    metadata { title description discourseURL snapshotURL txHash ipfsHash }
    governor { id slug name chainId }
    organization { id slug name }
    voteStats { type votesCount votersCount percent }
    executableCalls { target signature calldata value }
  }
}`
)

// TallyOrganization is a Tally DAO.
type TallyOrganization struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// TallyGovernor is one governor contract of an organization.
type TallyGovernor struct {
	ID           string             `json:"id"`
	Slug         string             `json:"slug"`
	Name         string             `json:"name"`
	ChainID      string             `json:"chainId"`
	IsPrimary    bool               `json:"isPrimary"`
	Organization *TallyOrganization `json:"organization"`
}

// TallyVoteStat is the tally for one vote type. Counts are kept as sent,
// Tally returns votesCount as a decimal string.
type TallyVoteStat struct {
	Type        string          `json:"type"`
	VotesCount  json.RawMessage `json:"votesCount"`
	VotersCount json.RawMessage `json:"votersCount"`
	Percent     json.RawMessage `json:"percent"`
}

// TallyProposal is the subset of the Tally proposal schema the analyzer uses.
type TallyProposal struct {
	ID        string          `json:"id"`
	OnchainID string          `json:"onchainId"`
	Status    string          `json:"status"`
	Quorum    json.RawMessage `json:"quorum"`
	Metadata  *struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		DiscourseURL string `json:"discourseURL"`
		SnapshotURL  string `json:"snapshotURL"`
		TxHash       string `json:"txHash"`
		IpfsHash     string `json:"ipfsHash"`
	} `json:"metadata"`
	Governor        *TallyGovernor     `json:"governor"`
	Organization    *TallyOrganization `json:"organization"`
	VoteStats       []TallyVoteStat    `json:"voteStats"`
	ExecutableCalls []json.RawMessage  `json:"executableCalls"`
}

// TallyClient queries the Tally GraphQL API. It requires an API key.
type TallyClient struct {
	gql *graphQLClient
}

// NewTallyClient builds a client for endpoint authenticated with apiKey.
func NewTallyClient(endpoint, apiKey string, httpClient *http.Client) *TallyClient {
	return &TallyClient{gql: &graphQLClient{
		service:   "Tally",
		endpoint:  endpoint,
		http:      httpClient,
		headers:   map[string]string{"Api-Key": apiKey},
		bodyInErr: 200,
	}}
}

// GovernorBySlug looks up a governor by its slug.
func (c *TallyClient) GovernorBySlug(ctx context.Context, slug string) (*TallyGovernor, error) {
	var data struct {
		Governor *TallyGovernor `json:"governor"`
	}
	if err := c.gql.do(ctx, tallyGovernorQuery, map[string]any{"input": map[string]any{"slug": slug}}, &data); err != nil {
		return nil, err
	}
	if data.Governor == nil || data.Governor.ID == "" {
		return nil, fmt.Errorf("tally governor not found for slug: %s: %w", slug, ErrNotFound)
	}
	return data.Governor, nil
}

// OrganizationBySlug looks up an organization by its slug.
func (c *TallyClient) OrganizationBySlug(ctx context.Context, slug string) (*TallyOrganization, error) {
	var data struct {
		Organization *TallyOrganization `json:"organization"`
	}
	if err := c.gql.do(ctx, tallyOrganizationQuery, map[string]any{"input": map[string]any{"slug": slug}}, &data); err != nil {
		return nil, err
	}
	if data.Organization == nil || data.Organization.ID == "" {
		return nil, fmt.Errorf("tally organization not found for slug: %s: %w", slug, ErrNotFound)
	}
	return data.Organization, nil
}

// PrimaryGovernor returns the organization's primary governor, or its first
// governor when none is flagged primary.
func (c *TallyClient) PrimaryGovernor(ctx context.Context, organizationID string) (*TallyGovernor, error) {
	var data struct {
		Governors struct {
			Nodes []*TallyGovernor `json:"nodes"`
		} `json:"governors"`
	}
	vars := map[string]any{"input": map[string]any{
		"filters": map[string]any{
			"organizationId":   organizationID,
			"includeInactive":  true,
			"excludeSecondary": true,
		},
		"page": map[string]any{"limit": 50},
	}}
	if err := c.gql.do(ctx, tallyGovernorsQuery, vars, &data); err != nil {
		return nil, err
	}

	var governors []*TallyGovernor
	for _, g := range data.Governors.Nodes {
		if g != nil && g.ID != "" && g.Slug != "" {
			governors = append(governors, g)
		}
	}
	if len(governors) == 0 {
		return nil, fmt.Errorf("tally governors not found for organizationId: %s: %w", organizationID, ErrNotFound)
	}
	for _, g := range governors {
		if g.IsPrimary {
			return g, nil
		}
	}
	return governors[0], nil
}

// ResolveGovernor treats the path slug as a governor slug first and falls
// back to an organization slug when no governor matches.
func (c *TallyClient) ResolveGovernor(ctx context.Context, slug string) (*TallyGovernor, error) {
	g, err := c.GovernorBySlug(ctx, slug)
	if err == nil {
		return g, nil
	}
	if !isTallyNotFound(err) {
		return nil, err
	}
	org, err := c.OrganizationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return c.PrimaryGovernor(ctx, org.ID)
}

func isTallyNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "governor not found") || strings.Contains(msg, "not found for slug")
}

// Proposal loads a proposal by governor and on-chain id.
func (c *TallyClient) Proposal(ctx context.Context, governorID, onchainID string) (*TallyProposal, error) {
	var data struct {
		Proposal *TallyProposal `json:"proposal"`
	}
	vars := map[string]any{"input": map[string]any{"governorId": governorID, "onchainId": onchainID}}
	if err := c.gql.do(ctx, tallyProposalQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Proposal == nil || data.Proposal.ID == "" {
		return nil, fmt.Errorf("tally proposal not found for governorId+onchainId: %w", ErrNotFound)
	}
	return data.Proposal, nil
}

var tallyOptionOrder = []string{"FOR", "AGAINST", "ABSTAIN"}

// NormalizeTally converts a governor and proposal into a Record. Internal
// vote types such as pendingFor are not voting options and are dropped from
// Options, though they remain in the raw vote stats.
func NormalizeTally(g *TallyGovernor, p *TallyProposal, fetchedAt time.Time) Record {
	title, body := "UNKNOWN", ""
	var discourse, snapshotURL, txHash, ipfsHash any
	if p.Metadata != nil {
		if p.Metadata.Title != "" {
			title = p.Metadata.Title
		}
		body = p.Metadata.Description
		discourse = nonEmpty(p.Metadata.DiscourseURL)
		snapshotURL = nonEmpty(p.Metadata.SnapshotURL)
		txHash = nonEmpty(p.Metadata.TxHash)
		ipfsHash = nonEmpty(p.Metadata.IpfsHash)
	}

	present := map[string]bool{}
	for _, v := range p.VoteStats {
		present[strings.ToUpper(v.Type)] = true
	}
	options := []string{}
	for _, o := range tallyOptionOrder {
		if present[o] {
			options = append(options, o)
		}
	}

	var results map[string]any
	if len(p.VoteStats) > 0 {
		results = map[string]any{"voteStats": p.VoteStats}
	}

	var chainID, orgSlug, orgName any
	var governorID, governorSlug, governorName any
	if g != nil {
		governorID, governorSlug, governorName = nonEmpty(g.ID), nonEmpty(g.Slug), nonEmpty(g.Name)
		chainID = nonEmpty(g.ChainID)
		if g.Organization != nil {
			orgSlug, orgName = nonEmpty(g.Organization.Slug), nonEmpty(g.Organization.Name)
		}
	}
	if chainID == nil && p.Governor != nil {
		chainID = nonEmpty(p.Governor.ChainID)
	}
	if p.Organization != nil {
		if orgSlug == nil {
			orgSlug = nonEmpty(p.Organization.Slug)
		}
		if orgName == nil {
			orgName = nonEmpty(p.Organization.Name)
		}
	}

	var quorum any
	if len(p.Quorum) > 0 && string(p.Quorum) != "null" {
		quorum = p.Quorum
	}

	return Record{
		SourceType:     SourceTally,
		FetchedAt:      FormatTimestamp(fetchedAt),
		Title:          title,
		Body:           body,
		Options:        options,
		CurrentResults: results,
		Metadata: map[string]any{
			"governor_id":            governorID,
			"governor_slug":          governorSlug,
			"governor_name":          governorName,
			"chain_id":               chainID,
			"organization_slug":      orgSlug,
			"organization_name":      orgName,
			"proposal_id":            nonEmpty(p.ID),
			"onchain_id":             nonEmpty(p.OnchainID),
			"status":                 nonEmpty(p.Status),
			"quorum":                 quorum,
			"discourse_url":          discourse,
			"snapshot_url":           snapshotURL,
			"tx_hash":                txHash,
			"ipfs_hash":              ipfsHash,
			"executable_calls_count": len(p.ExecutableCalls),
		},
	}
}

// nonEmpty returns s, or nil for the empty string so it encodes as null.
func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
