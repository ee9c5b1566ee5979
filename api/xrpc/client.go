////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package xrpc implements api.Client over the service's JSON-over-HTTP
// procedure interface. Queries are GET /xrpc/<nsid> with URL parameters and
// procedures are POST /xrpc/<nsid> with a JSON body. Every call carries the
// caller's bearer token.
package xrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/api"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 8 << 20

// Params configures the transport.
type Params struct {
	// Timeout bounds each HTTP round trip. Zero means no timeout beyond the
	// caller's context.
	Timeout time.Duration
}

// GetDefaultParams returns a Params object containing the default parameters.
func GetDefaultParams() Params {
	return Params{Timeout: 30 * time.Second}
}

// Client talks to one service endpoint on behalf of one account.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ api.Client = (*Client)(nil)

// NewClient returns a Client for the service at baseURL authenticating with
// token. A nil httpClient uses a new http.Client with the timeout in params.
func NewClient(baseURL, token string, httpClient *http.Client,
	params Params) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("a service URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrapf(err, "invalid service URL %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: params.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}, nil
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// query issues a GET for the NSID and decodes the response into out, if out
// is not nil.
func (c *Client) query(ctx context.Context, nsid string, params url.Values,
	out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, nsid, params, nil)
	if err != nil {
		return err
	}
	return decode(nsid, body, out)
}

// procedure issues a POST for the NSID with in as its JSON body and decodes
// the response into out, if out is not nil.
func (c *Client) procedure(ctx context.Context, nsid string, in,
	out interface{}) error {
	body, err := c.do(ctx, http.MethodPost, nsid, nil, in)
	if err != nil {
		return err
	}
	return decode(nsid, body, out)
}

func decode(nsid string, body []byte, out interface{}) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", nsid)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, nsid string,
	params url.Values, in interface{}) ([]byte, error) {
	target := c.baseURL + "/xrpc/" + nsid
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s request", nsid)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s request", nsid)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	jww.TRACE.Printf("[XRPC] %s %s", method, nsid)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s failed", nsid)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s response", nsid)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, classify(nsid, resp.StatusCode, body)
}

// classify maps an error response onto the api error taxonomy. Server
// failures are left unclassified and treated as transport failures.
func classify(nsid string, status int, body []byte) error {
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		e.Error = http.StatusText(status)
		e.Message = strings.TrimSpace(string(body))
	}
	msg := nsid + ": " + e.Error
	if e.Message != "" {
		msg += ": " + e.Message
	}

	switch {
	case e.Error == "InvalidCursor" || e.Error == "ExpiredCursor":
		return errors.Wrap(api.ErrStaleCursor, msg)
	case status == http.StatusNotFound || e.Error == "NotFound" ||
		e.Error == "ConvoNotFound" || e.Error == "MessageNotFound":
		return errors.Wrap(api.ErrNotFound, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Wrap(api.ErrUnauthorized, msg)
	case status >= 400 && status < 500:
		return errors.Wrap(api.ErrRejected, msg)
	default:
		return errors.Errorf("%s (status %d)", msg, status)
	}
}
