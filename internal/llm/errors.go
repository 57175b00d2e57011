package llm

import (
	"errors"
	"fmt"

	alexerrors "govai/internal/errors"
	"govai/internal/httpclient"
)

// ResponseError reports a response that arrived but could not be used,
// such as a non-JSON body or an answer without content.
type ResponseError struct {
	Provider   string
	StatusCode int
	Reason     string
	Raw        string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

func newResponseError(provider string, status int, reason string, raw []byte) error {
	respErr := &ResponseError{
		Provider:   provider,
		StatusCode: status,
		Reason:     reason,
		Raw:        httpclient.Snippet(raw, 500),
	}
	return &alexerrors.PermanentError{Err: respErr, StatusCode: status, Message: respErr.Error()}
}

// ErrorMeta extracts the diagnostic fields recorded for a failed attempt:
// the HTTP status and the first part of the response body.
func ErrorMeta(err error) map[string]any {
	if err == nil {
		return nil
	}
	meta := map[string]any{}
	var respErr *ResponseError
	var httpErr *alexerrors.HTTPError
	switch {
	case errors.As(err, &respErr):
		meta["status"] = respErr.StatusCode
		if respErr.Raw != "" {
			meta["raw"] = respErr.Raw
		}
	case errors.As(err, &httpErr):
		meta["status"] = httpErr.StatusCode
		if httpErr.Body != "" {
			meta["raw"] = httpErr.Body
		}
	default:
		if code := alexerrors.StatusCode(err); code > 0 {
			meta["status"] = code
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
