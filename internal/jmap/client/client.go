// Package client executes JMAP mail operations over the batched
// method-call protocol. A Client resolves the session once, then
// composes each operation from one or two method calls in a single
// request envelope.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/jmap/protocol"
	"jmapmail/internal/jmap/transport"
)

// Client executes JMAP operations against a single server. The session
// is fetched on first use and cached; Refresh discards the cache so a
// later call re-fetches it.
type Client struct {
	transport  *transport.Client
	sessionURL string
	logger     *slog.Logger

	mu      sync.Mutex
	session *protocol.Session
}

// New creates a client for the given host. The host may be a bare
// hostname, a base URL, or a full session URL.
func New(tr *transport.Client, host string, log *slog.Logger) *Client {
	return &Client{
		transport:  tr,
		sessionURL: protocol.DiscoveryURL(host),
		logger:     log,
	}
}

// Session returns the JMAP session, fetching and validating it on first
// use.
func (c *Client) Session(ctx context.Context) (*protocol.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	var session protocol.Session
	if err := c.transport.GetJSON(ctx, c.sessionURL, &session); err != nil {
		return nil, &protocol.SessionError{Reason: "fetch failed", Err: err}
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	logger.LogDebug(c.logger, "JMAP session resolved",
		"apiUrl", session.APIURL,
		"accounts", len(session.Accounts),
		"capabilities", session.GetCapabilityNames())

	c.session = &session
	return c.session, nil
}

// Refresh discards the cached session.
func (c *Client) Refresh() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// PrimaryAccountID resolves the account every operation acts on.
func (c *Client) PrimaryAccountID(ctx context.Context) (protocol.Id, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return "", err
	}
	return session.PrimaryAccountId()
}

// Call sends one request envelope and returns the parsed response
// envelope. Method-level errors are left in place for the call site to
// inspect; only envelope-level malformation is an error here. Call
// order is preserved so back-references between calls resolve
// server-side.
func (c *Client) Call(ctx context.Context, using []string, calls ...protocol.MethodCall) (*protocol.Response, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}

	req := protocol.Request{Using: using, MethodCalls: calls}

	var resp protocol.Response
	if err := c.transport.PostJSON(ctx, session.APIURL, &req, &resp); err != nil {
		return nil, err
	}
	if resp.MethodResponses == nil {
		return nil, &protocol.ProtocolError{Reason: "missing methodResponses"}
	}
	return &resp, nil
}

// callOne is the common single-call path: one method call, one checked
// response.
func (c *Client) callOne(ctx context.Context, using []string, name string, args interface{}) (*protocol.MethodResponse, error) {
	resp, err := c.Call(ctx, using, protocol.MethodCall{Name: name, Arguments: args, CallId: "c0"})
	if err != nil {
		return nil, err
	}
	return result(resp, "c0")
}

// result extracts the response for a call ID, converting the server
// error sentinel into a *protocol.MethodError.
func result(resp *protocol.Response, callId string) (*protocol.MethodResponse, error) {
	mr, ok := resp.Get(callId)
	if !ok {
		return nil, &protocol.ProtocolError{Reason: fmt.Sprintf("no response for call %s", callId)}
	}
	if mr.IsError() {
		return nil, mr.AsMethodError()
	}
	return mr, nil
}

// DownloadURL substitutes the four placeholders of a session blob
// download template. Values are escaped so IDs with reserved characters
// survive the substitution.
func DownloadURL(template string, accountId, blobId protocol.Id, name, mimeType string) string {
	r := strings.NewReplacer(
		"{accountId}", url.PathEscape(string(accountId)),
		"{blobId}", url.PathEscape(string(blobId)),
		"{name}", url.PathEscape(name),
		"{type}", url.QueryEscape(mimeType),
	)
	return r.Replace(template)
}

// DownloadBlob streams a blob through the transport's binary path. The
// caller must close the returned reader.
func (c *Client) DownloadBlob(ctx context.Context, blobId protocol.Id, name, mimeType string) (io.ReadCloser, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}
	accountId, err := session.PrimaryAccountId()
	if err != nil {
		return nil, err
	}
	u := DownloadURL(session.DownloadURL, accountId, blobId, name, mimeType)
	return c.transport.Download(ctx, u)
}
