// Package transport issues authenticated HTTP requests to a JMAP
// server, selecting among basic, bearer and OAuth2 credential
// strategies. It performs no retries; retry policy belongs to callers.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"software.sslmate.com/src/go-pkcs12"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/common/ratelimit"
	"jmapmail/internal/jmap/protocol"
)

// maxErrorBodyBytes bounds how much of a failing response body is kept
// for the error message.
const maxErrorBodyBytes = 64 * 1024

// Options configures the HTTP behavior of a Client.
type Options struct {
	// SkipVerify disables TLS certificate verification.
	SkipVerify bool

	// PFXPath and PFXPassword optionally load a TLS client certificate
	// from a PKCS#12 file for mutual-TLS deployments.
	PFXPath     string
	PFXPassword string

	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration

	// RateLimit paces requests to this many per second; zero disables.
	RateLimit float64

	// Logger receives debug/warn output. Nil disables logging.
	Logger *slog.Logger
}

// Client wraps an HTTP client with credential handling for JMAP
// endpoints.
type Client struct {
	httpClient *http.Client
	creds      Credentials
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

// New creates a transport client for the given credentials.
func New(creds Credentials, opts Options) (*Client, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: opts.SkipVerify,
	}

	if opts.PFXPath != "" {
		cert, err := loadClientCertificate(opts.PFXPath, opts.PFXPassword)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
			Timeout:   timeout,
		},
		creds:   creds,
		limiter: ratelimit.New(opts.RateLimit),
		logger:  opts.Logger,
	}, nil
}

// loadClientCertificate decodes a PKCS#12 file into a TLS client
// certificate.
func loadClientCertificate(path, password string) (tls.Certificate, error) {
	pfxData, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read PFX file: %w", err)
	}
	key, cert, caCerts, err := pkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to decode PFX file: %w", err)
	}
	tlsCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}
	for _, ca := range caCerts {
		tlsCert.Certificate = append(tlsCert.Certificate, ca.Raw)
	}
	return tlsCert, nil
}

// do performs one authenticated request. Non-2xx responses become a
// *protocol.TransportError carrying the status and server body.
func (c *Client) do(ctx context.Context, method, url string, body io.Reader, contentType string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	logger.LogDebug(c.logger, "JMAP request", append([]any{"method", method, "url", url}, c.describeAuth()...)...)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &protocol.TransportError{
			StatusCode: resp.StatusCode,
			Body:       string(errBody),
		}
	}

	return resp, nil
}

// GetJSON performs an authenticated GET and decodes the JSON response
// into out.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// PostJSON performs an authenticated POST with a JSON body and decodes
// the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, url, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Download performs an authenticated GET for raw bytes. The caller must
// close the returned reader.
func (c *Client) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
