package inspirehub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the id shared by an original call and its retry.
const RequestIDHeader = "X-Request-ID"

// Request describes one logical API call. The gateway may send it twice:
// the original attempt and, after a successful renewal, a single retry.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is encoded as JSON unless it is a *Multipart.
	Body   any
	Header http.Header

	// Retried is set by the gateway before the retry attempt. A request
	// with Retried set never triggers a renewal.
	Retried bool
	// SkipAuth sends the request without credential and disables renewal,
	// for endpoints like login where a 401 means bad input.
	SkipAuth bool
}

// pathSegment escapes id for use as one path segment. Ids that would
// be resolved as dot segments are rejected.
func pathSegment(id string) (string, error) {
	switch id {
	case "", ".", "..":
		return "", fmt.Errorf("%w: invalid id %q", ErrValidation, id)
	}
	return url.PathEscape(id), nil
}

// newRequest builds the HTTP request for one attempt of r, authorized
// with token when it is not empty.
func (c *Client) newRequest(ctx context.Context, r *Request, token string) (*http.Request, error) {
	rel, err := url.Parse(strings.TrimPrefix(r.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse path: %w", err)
	}
	u := c.baseURL.ResolveReference(rel)
	u.RawQuery = r.Query.Encode()

	var (
		reqBody     io.Reader
		contentType string
	)
	switch body := r.Body.(type) {
	case nil:
	case *Multipart:
		reqBody, contentType, err = body.encode()
		if err != nil {
			return nil, fmt.Errorf("encode multipart: %w", err)
		}
	default:
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if token != "" {
		req.Header.Set("Authorization", c.authScheme+" "+token)
	} else {
		req.Header.Del("Authorization")
	}

	return req, nil
}

// Call sends r through the gateway and decodes a successful JSON
// response into v when v is not nil.
func (c *Client) Call(ctx context.Context, r *Request, v any) (*http.Response, error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return resp, err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	if v != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}

	return resp, nil
}

// do executes r with the active credential. On a 401 for a request that
// has not been retried yet, it renews the session once and re-sends the
// same request. Any other failure is returned as is.
func (c *Client) do(ctx context.Context, r *Request) (*http.Response, error) {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	if r.Header.Get(RequestIDHeader) == "" {
		r.Header.Set(RequestIDHeader, uuid.NewString())
	}

	log := c.log.WithFields(logrus.Fields{
		"request_id": r.Header.Get(RequestIDHeader),
		"method":     r.Method,
		"path":       r.Path,
	})

	var token string
	if !r.SkipAuth {
		token = c.session.AccessToken()
	}

	resp, err := c.send(ctx, r, token, log)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || r.Retried || r.SkipAuth {
		return c.checkStatus(resp, log)
	}

	unauthorized := newAPIError(resp)
	_ = resp.Body.Close()

	log.Debug("Unauthorized, renewing session")

	token, err = c.session.renew(ctx, token)
	if err != nil {
		log.WithError(err).Debug("Renewal failed, not retrying")
		return nil, errors.Join(unauthorized, err)
	}

	r.Retried = true
	log = log.WithField("retried", true)

	resp, err = c.send(ctx, r, token, log)
	if err != nil {
		return nil, err
	}

	return c.checkStatus(resp, log)
}

// send performs a single attempt.
func (c *Client) send(ctx context.Context, r *Request, token string, log logrus.FieldLogger) (*http.Response, error) {
	req, err := c.newRequest(ctx, r, token)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		log.WithError(err).Debug("Request failed")
		return nil, err
	}

	log.WithField("status", resp.StatusCode).Debug("Response received")

	return resp, nil
}

// checkStatus turns non-2xx responses into an *APIError.
func (c *Client) checkStatus(resp *http.Response, log logrus.FieldLogger) (*http.Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	apiErr := newAPIError(resp)
	if resp.Body != nil {
		_ = resp.Body.Close()
	}

	log.WithError(apiErr).Debug("Request rejected")

	return resp, apiErr
}
