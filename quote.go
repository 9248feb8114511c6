package inspirehub

import (
	"context"
	"net/http"
)

// Quote fetches the motivational quote of the day. It returns nil
// without error when the backend has none.
func (c *Client) Quote(ctx context.Context) (*Quote, error) {
	var quotes []Quote
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodGet,
		Path:   "/quote",
	}, &quotes); err != nil {
		return nil, err
	}

	if len(quotes) == 0 {
		return nil, nil
	}

	return &quotes[0], nil
}
