// Package blossom is a client for Blossom blob servers (BUD-01, BUD-02). The vault only
// ever stores ciphertext there, so blobs are addressed by the hash of the encrypted bytes.
package blossom

import (
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/vaultsync/go-nostr"
)

var ErrNotFound = errors.New("blob not found")

// Client represents a Blossom client for interacting with a media server
type Client struct {
	mediaserver string
	httpClient  *fasthttp.Client
	signer      nostr.Signer
}

// NewClient creates a new Blossom client
func NewClient(mediaserver string, signer nostr.Signer) *Client {
	if nm, err := nostr.NormalizeHTTPURL(mediaserver); err == nil {
		mediaserver = nm
	} else if !strings.HasPrefix(mediaserver, "http") {
		mediaserver = "https://" + mediaserver
	}

	return &Client{
		mediaserver: strings.TrimSuffix(mediaserver, "/") + "/",
		httpClient:  createHTTPClient(),
		signer:      signer,
	}
}

func createHTTPClient() *fasthttp.Client {
	return &fasthttp.Client{
		ReadTimeout:                   10 * time.Second,
		WriteTimeout:                  10 * time.Second,
		MaxIdleConnDuration:           time.Hour,
		NoDefaultUserAgentHeader:      true,
		DisableHeaderNamesNormalizing: true,
		DisablePathNormalizing:        true,
		// increase DNS cache time to an hour instead of default minute
		Dial: (&fasthttp.TCPDialer{
			Concurrency:      4096,
			DNSCacheDuration: time.Hour,
		}).Dial,
	}
}

// GetSigner returns the client's signer
func (c *Client) GetSigner() nostr.Signer {
	return c.signer
}

// GetMediaServer returns the client's media server URL
func (c *Client) GetMediaServer() string {
	return c.mediaserver
}
