package blossom

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/vaultsync/go-nostr"
)

// httpCall makes an HTTP request to the media server and returns the response body
func (c *Client) httpCall(
	ctx context.Context,
	method string,
	path string,
	contentType string,
	authorization string,
	body []byte,
	result any,
) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(c.mediaserver + path)
	req.Header.SetMethod(method)
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.httpClient.DoDeadline(req, resp, deadline)
	} else {
		err = c.httpClient.Do(req, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case status >= 300:
		reason := resp.Header.Peek("X-Reason")
		return nil, fmt.Errorf("%s returned an error (%d): %s", path, status, string(reason))
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body(), result); err != nil {
			return nil, fmt.Errorf("invalid response from %s: %w", path, err)
		}
	}

	// the response is released when we return
	return append([]byte(nil), resp.Body()...), nil
}

// authorizationHeader creates a kind 24242 authorization event valid for one minute
func (c *Client) authorizationHeader(ctx context.Context, verb string, hashes ...string) (string, error) {
	evt := nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindBlobAuthorization,
		Content:   verb + " vault blob",
		Tags: nostr.Tags{
			nostr.Tag{"t", verb},
			nostr.Tag{"expiration", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10)},
		},
	}
	for _, hash := range hashes {
		evt.Tags = append(evt.Tags, nostr.Tag{"x", hash})
	}

	if err := c.signer.SignEvent(ctx, &evt); err != nil {
		return "", fmt.Errorf("failed to sign authorization: %w", err)
	}

	jevt, _ := json.Marshal(evt)
	return "Nostr " + base64.StdEncoding.EncodeToString(jevt), nil
}
