package llm

import "context"

// Do runs req on client, streaming when req.Stream is set and the client
// supports it. A buffered answer is handed to OnDelta in one piece.
func Do(ctx context.Context, client Client, req Request, callbacks Callbacks) (*Completion, error) {
	if req.Stream {
		if streaming, ok := client.(StreamingClient); ok {
			return streaming.Stream(ctx, req, callbacks)
		}
	}
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if callbacks.OnDelta != nil && resp.Content != "" {
		callbacks.OnDelta(resp.Content)
	}
	return resp, nil
}
