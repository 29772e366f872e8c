package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"jmapmail/internal/jmap/protocol"
	"jmapmail/internal/jmap/transport"
)

// methodHandler produces the (name, arguments) pair of one method
// response for a received call.
type methodHandler func(t *testing.T, args json.RawMessage) (string, interface{})

// fakeServer is a scripted JMAP server: a session resource plus a
// per-method-name handler table for the API endpoint.
type fakeServer struct {
	*httptest.Server

	handlers map[string]methodHandler

	mu             sync.Mutex
	requests       []protocol.Request
	sessionFetches atomic.Int64
}

func newFakeServer(t *testing.T, handlers map[string]methodHandler) *fakeServer {
	t.Helper()
	fs := &fakeServer{handlers: handlers}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jmap", func(w http.ResponseWriter, r *http.Request) {
		fs.sessionFetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"capabilities": map[string]interface{}{
				protocol.CoreCapability:       map[string]interface{}{},
				protocol.MailCapability:       map[string]interface{}{},
				protocol.SubmissionCapability: map[string]interface{}{},
			},
			"accounts": map[string]interface{}{
				"A1": map[string]interface{}{"name": "test@example.com", "isPersonal": true},
			},
			"primaryAccounts": map[string]string{protocol.MailCapability: "A1"},
			"apiUrl":          fs.URL + "/api",
			"downloadUrl":     fs.URL + "/download/{accountId}/{blobId}/{name}?type={type}",
			"uploadUrl":       fs.URL + "/upload/{accountId}",
			"state":           "s1",
		})
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		var req protocol.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request envelope: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fs.mu.Lock()
		fs.requests = append(fs.requests, req)
		fs.mu.Unlock()

		var responses [][]interface{}
		for _, call := range req.MethodCalls {
			handler, ok := fs.handlers[call.Name]
			if !ok {
				t.Errorf("no handler for method %q", call.Name)
				responses = append(responses, []interface{}{
					protocol.ErrorMethodName,
					map[string]string{"type": "unknownMethod"},
					call.CallId,
				})
				continue
			}
			name, result := handler(t, call.Arguments.(json.RawMessage))
			responses = append(responses, []interface{}{name, result, call.CallId})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"methodResponses": responses,
			"sessionState":    "s1",
		})
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

// calls flattens all received method calls across envelopes.
func (fs *fakeServer) calls() []protocol.MethodCall {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []protocol.MethodCall
	for _, req := range fs.requests {
		out = append(out, req.MethodCalls...)
	}
	return out
}

func (fs *fakeServer) callCount(method string) int {
	n := 0
	for _, call := range fs.calls() {
		if call.Name == method {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, fs *fakeServer) *Client {
	t.Helper()
	tr, err := transport.New(transport.Credentials{
		Method:   transport.AuthBasic,
		Username: "test@example.com",
		Password: "secret",
	}, transport.Options{})
	if err != nil {
		t.Fatalf("transport.New() error: %v", err)
	}
	return New(tr, fs.URL, nil)
}

// mailboxHandler serves a fixed mailbox list.
func mailboxHandler(mailboxes []protocol.Mailbox) methodHandler {
	return func(t *testing.T, args json.RawMessage) (string, interface{}) {
		return protocol.MethodMailboxGet, protocol.GetMailboxesResponse{
			AccountId: "A1",
			State:     "m1",
			List:      mailboxes,
		}
	}
}

func strPtr(s string) *string { return &s }

func TestSession_CachedUntilRefresh(t *testing.T) {
	fs := newFakeServer(t, nil)
	c := newTestClient(t, fs)
	ctx := context.Background()

	if _, err := c.Session(ctx); err != nil {
		t.Fatalf("Session() error: %v", err)
	}
	if _, err := c.Session(ctx); err != nil {
		t.Fatalf("Session() error: %v", err)
	}
	if got := fs.sessionFetches.Load(); got != 1 {
		t.Errorf("session fetches = %d, want 1", got)
	}

	c.Refresh()
	if _, err := c.Session(ctx); err != nil {
		t.Fatalf("Session() error: %v", err)
	}
	if got := fs.sessionFetches.Load(); got != 2 {
		t.Errorf("session fetches after Refresh() = %d, want 2", got)
	}
}

func TestPrimaryAccountID(t *testing.T) {
	fs := newFakeServer(t, nil)
	c := newTestClient(t, fs)

	got, err := c.PrimaryAccountID(context.Background())
	if err != nil {
		t.Fatalf("PrimaryAccountID() error: %v", err)
	}
	if got != "A1" {
		t.Errorf("PrimaryAccountID() = %q, want %q", got, "A1")
	}
}

func TestQueryEmails_SendsLiteralArguments(t *testing.T) {
	var gotArgs json.RawMessage
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodEmailQuery: func(t *testing.T, args json.RawMessage) (string, interface{}) {
			gotArgs = args
			return protocol.MethodEmailQuery, protocol.QueryEmailsResponse{
				AccountId: "A1",
				Ids:       []protocol.Id{"E1", "E2"},
				Total:     2,
			}
		},
	})
	c := newTestClient(t, fs)

	resp, err := c.QueryEmails(context.Background(), QueryOptions{
		Filter: &protocol.EmailFilter{InMailbox: "M1"},
		Limit:  50,
	})
	if err != nil {
		t.Fatalf("QueryEmails() error: %v", err)
	}

	if len(resp.Ids) != 2 || resp.Ids[0] != "E1" {
		t.Errorf("Ids = %v, want [E1 E2]", resp.Ids)
	}
	if resp.Total != 2 {
		t.Errorf("Total = %d, want 2", resp.Total)
	}

	var args struct {
		AccountId string `json:"accountId"`
		Filter    struct {
			InMailbox string `json:"inMailbox"`
		} `json:"filter"`
		Sort  []protocol.SortOrder `json:"sort"`
		Limit uint32               `json:"limit"`
	}
	if err := json.Unmarshal(gotArgs, &args); err != nil {
		t.Fatalf("failed to decode query arguments: %v", err)
	}
	if args.AccountId != "A1" {
		t.Errorf("accountId = %q, want %q", args.AccountId, "A1")
	}
	if args.Filter.InMailbox != "M1" {
		t.Errorf("filter.inMailbox = %q, want %q", args.Filter.InMailbox, "M1")
	}
	if args.Limit != 50 {
		t.Errorf("limit = %d, want 50", args.Limit)
	}
	want := protocol.SortOrder{Property: "receivedAt", IsAscending: false}
	if len(args.Sort) != 1 || args.Sort[0] != want {
		t.Errorf("sort = %v, want [%v]", args.Sort, want)
	}

	if got := fs.callCount(protocol.MethodEmailQuery); got != 1 {
		t.Errorf("Email/query calls = %d, want 1", got)
	}
}

func TestGetEmail_NotFound(t *testing.T) {
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodEmailGet: func(t *testing.T, args json.RawMessage) (string, interface{}) {
			return protocol.MethodEmailGet, protocol.GetEmailsResponse{
				AccountId: "A1",
				NotFound:  []protocol.Id{"nope"},
			}
		},
	})
	c := newTestClient(t, fs)

	_, err := c.GetEmail(context.Background(), "nope", GetOptions{})
	if err == nil {
		t.Fatal("GetEmail() should fail for an unknown ID")
	}
	if !errors.Is(err, protocol.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetEmails_BodyFetchArguments(t *testing.T) {
	var gotArgs json.RawMessage
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodEmailGet: func(t *testing.T, args json.RawMessage) (string, interface{}) {
			gotArgs = args
			return protocol.MethodEmailGet, protocol.GetEmailsResponse{AccountId: "A1"}
		},
	})
	c := newTestClient(t, fs)

	if _, err := c.GetEmails(context.Background(), []protocol.Id{"E1"}, GetOptions{FetchTextBody: true}); err != nil {
		t.Fatalf("GetEmails() error: %v", err)
	}

	var args protocol.EmailGetRequest
	if err := json.Unmarshal(gotArgs, &args); err != nil {
		t.Fatalf("failed to decode get arguments: %v", err)
	}
	if !args.FetchTextBodyValues {
		t.Error("fetchTextBodyValues not set")
	}
	if args.MaxBodyValueBytes != protocol.MaxBodyValueBytes {
		t.Errorf("maxBodyValueBytes = %d, want %d", args.MaxBodyValueBytes, protocol.MaxBodyValueBytes)
	}
	hasBodyValues := false
	for _, p := range args.Properties {
		if p == "bodyValues" {
			hasBodyValues = true
		}
	}
	if !hasBodyValues {
		t.Errorf("properties %v missing bodyValues", args.Properties)
	}
}

func TestUpdateEmails_PartialFailure(t *testing.T) {
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodEmailSet: func(t *testing.T, args json.RawMessage) (string, interface{}) {
			return protocol.MethodEmailSet, map[string]interface{}{
				"accountId": "A1",
				"updated":   map[string]interface{}{"E1": nil},
				"notUpdated": map[string]interface{}{
					"E2": map[string]string{"type": "notFound"},
				},
			}
		},
	})
	c := newTestClient(t, fs)

	res, err := c.UpdateEmails(context.Background(), []protocol.Id{"E1", "E2"},
		[]protocol.PatchOp{protocol.SetKeyword(protocol.KeywordSeen, true)})
	if err != nil {
		t.Fatalf("UpdateEmails() error: %v", err)
	}

	if len(res.Succeeded) != 1 || res.Succeeded[0] != "E1" {
		t.Errorf("Succeeded = %v, want [E1]", res.Succeeded)
	}
	if se, ok := res.Failed["E2"]; !ok || se.Type != "notFound" {
		t.Errorf("Failed = %v, want E2 notFound", res.Failed)
	}
}

func TestDeleteEmails(t *testing.T) {
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodEmailSet: func(t *testing.T, args json.RawMessage) (string, interface{}) {
			var set protocol.SetRequest
			if err := json.Unmarshal(args, &set); err != nil {
				t.Fatalf("failed to decode set arguments: %v", err)
			}
			if len(set.Destroy) != 2 {
				t.Errorf("destroy = %v, want two IDs", set.Destroy)
			}
			return protocol.MethodEmailSet, protocol.SetResponse{
				AccountId: "A1",
				Destroyed: set.Destroy,
			}
		},
	})
	c := newTestClient(t, fs)

	res, err := c.DeleteEmails(context.Background(), []protocol.Id{"E1", "E2"})
	if err != nil {
		t.Fatalf("DeleteEmails() error: %v", err)
	}
	if len(res.Succeeded) != 2 {
		t.Errorf("Succeeded = %v, want both IDs", res.Succeeded)
	}
}

func TestLabels_PartialResolution(t *testing.T) {
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodEmailGet: func(t *testing.T, args json.RawMessage) (string, interface{}) {
			return protocol.MethodEmailGet, protocol.GetEmailsResponse{
				AccountId: "A1",
				List: []protocol.Email{{
					Id:         "E1",
					MailboxIds: map[protocol.Id]bool{"MA": true, "MZ": true},
				}},
			}
		},
		protocol.MethodMailboxGet: mailboxHandler([]protocol.Mailbox{
			{Id: "MA", Name: "Archive", Role: strPtr("archive")},
		}),
	})
	c := newTestClient(t, fs)

	labels, err := c.Labels(context.Background(), "E1")
	if err != nil {
		t.Fatalf("Labels() error: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("len(labels) = %d, want 2", len(labels))
	}
	if labels[0].Id != "MA" || labels[0].Name == nil || *labels[0].Name != "Archive" {
		t.Errorf("resolved label = %+v, want MA/Archive", labels[0])
	}
	if labels[1].Id != "MZ" || labels[1].Name != nil || labels[1].Role != nil {
		t.Errorf("unresolved label = %+v, want MZ with nil name/role", labels[1])
	}
}

func TestDownloadURL(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "path template",
			template: "https://example.com/download/{accountId}/{blobId}/{name}?type={type}",
			want:     "https://example.com/download/A1/B1/report%20final.pdf?type=application%2Fpdf",
		},
		{
			name:     "no placeholders",
			template: "https://example.com/raw",
			want:     "https://example.com/raw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DownloadURL(tt.template, "A1", "B1", "report final.pdf", "application/pdf")
			if got != tt.want {
				t.Errorf("DownloadURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
