package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	alexerrors "govai/internal/errors"
	"govai/internal/httpclient"
)

const maxGraphQLResponse = 8 << 20

// ErrNotFound reports that an upstream returned no object for the lookup.
var ErrNotFound = errors.New("not found")

// GraphQLError carries the first error message of a GraphQL response.
type GraphQLError struct {
	Service string
	Message string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("%s GraphQL returned errors: %s", e.Service, e.Message)
}

type graphQLClient struct {
	service   string
	endpoint  string
	http      *http.Client
	headers   map[string]string
	bodyInErr int
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do posts query and decodes the data member into out.
func (c *graphQLClient) do(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode %s query: %w", c.service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s GraphQL request: %w", c.service, err)
	}
	defer resp.Body.Close()

	body, err := httpclient.ReadAllWithLimit(resp.Body, maxGraphQLResponse)
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &alexerrors.HTTPError{Service: c.service + " GraphQL error", StatusCode: resp.StatusCode}
		if c.bodyInErr > 0 {
			httpErr.Body = httpclient.Snippet(body, c.bodyInErr)
		}
		return alexerrors.ClassifyHTTPStatus(httpErr)
	}

	var decoded graphQLResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("decode %s response: %w", c.service, err)
	}
	if len(decoded.Errors) > 0 {
		msg := decoded.Errors[0].Message
		if msg == "" {
			msg = "unknown"
		}
		return &GraphQLError{Service: c.service, Message: msg}
	}
	if len(decoded.Data) == 0 || string(decoded.Data) == "null" {
		return fmt.Errorf("%s GraphQL returned no data: %w", c.service, ErrNotFound)
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", c.service, err)
	}
	return nil
}
