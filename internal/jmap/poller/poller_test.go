package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"jmapmail/internal/jmap/client"
	"jmapmail/internal/jmap/protocol"
	"jmapmail/internal/jmap/transport"
)

// fakeMail is a scripted JMAP server for poll cycles. The ids and
// emails fields may be swapped between cycles.
type fakeMail struct {
	*httptest.Server

	mu            sync.Mutex
	ids           []protocol.Id
	emails        map[protocol.Id]protocol.Email
	lastQueryArgs json.RawMessage
	queries       int
}

func newFakeMail(t *testing.T) *fakeMail {
	t.Helper()
	fm := &fakeMail{emails: make(map[protocol.Id]protocol.Email)}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jmap", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"capabilities": map[string]interface{}{
				protocol.CoreCapability: map[string]interface{}{},
				protocol.MailCapability: map[string]interface{}{},
			},
			"accounts":        map[string]interface{}{"A1": map[string]interface{}{"name": "t"}},
			"primaryAccounts": map[string]string{protocol.MailCapability: "A1"},
			"apiUrl":          fm.URL + "/api",
			"downloadUrl":     fm.URL + "/blob/{accountId}/{blobId}/{name}?type={type}",
		})
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		var req protocol.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		fm.mu.Lock()
		defer fm.mu.Unlock()

		var responses [][]interface{}
		for _, call := range req.MethodCalls {
			args := call.Arguments.(json.RawMessage)
			switch call.Name {
			case protocol.MethodEmailQuery:
				fm.lastQueryArgs = args
				fm.queries++
				responses = append(responses, []interface{}{
					protocol.MethodEmailQuery,
					protocol.QueryEmailsResponse{AccountId: "A1", Ids: fm.ids, Total: uint32(len(fm.ids))},
					call.CallId,
				})
			case protocol.MethodEmailGet:
				var get protocol.EmailGetRequest
				if err := json.Unmarshal(args, &get); err != nil {
					t.Errorf("failed to decode Email/get arguments: %v", err)
				}
				var list []protocol.Email
				for _, id := range get.Ids {
					if email, ok := fm.emails[id]; ok {
						list = append(list, email)
					}
				}
				responses = append(responses, []interface{}{
					protocol.MethodEmailGet,
					protocol.GetEmailsResponse{AccountId: "A1", List: list},
					call.CallId,
				})
			default:
				t.Errorf("unexpected method %q", call.Name)
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"methodResponses": responses})
	})

	fm.Server = httptest.NewServer(mux)
	t.Cleanup(fm.Close)
	return fm
}

func (fm *fakeMail) queryCount() int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.queries
}

func (fm *fakeMail) queryArgs() json.RawMessage {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.lastQueryArgs
}

// serve replaces the scripted result set.
func (fm *fakeMail) serve(emails ...protocol.Email) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.ids = nil
	fm.emails = make(map[protocol.Id]protocol.Email, len(emails))
	for _, e := range emails {
		fm.ids = append(fm.ids, e.Id)
		fm.emails[e.Id] = e
	}
}

func newTestPoller(t *testing.T, fm *fakeMail, store StateStore, opts Options) *Poller {
	t.Helper()
	tr, err := transport.New(transport.Credentials{
		Method:      transport.AuthBearer,
		AccessToken: "t",
	}, transport.Options{})
	if err != nil {
		t.Fatalf("transport.New() error: %v", err)
	}
	return New(client.New(tr, fm.URL, nil), store, opts, nil)
}

func email(id protocol.Id, receivedAt time.Time) protocol.Email {
	return protocol.Email{
		Id:         id,
		ThreadId:   "T" + id,
		From:       []protocol.EmailAddress{{Email: "sender@example.com"}},
		Subject:    "subject " + string(id),
		ReceivedAt: receivedAt,
		Keywords:   map[string]bool{protocol.KeywordSeen: true},
	}
}

var (
	t1 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	t2 = t1.Add(time.Minute)
	t3 = t1.Add(2 * time.Minute)
)

func TestCycle_EmptyQueryIsIdempotent(t *testing.T) {
	fm := newFakeMail(t)
	store := NewMemoryStore()
	p := newTestPoller(t, fm, store, Options{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := p.Cycle(ctx)
		if err != nil {
			t.Fatalf("Cycle() error: %v", err)
		}
		if !res.NoData {
			t.Error("Cycle() should report no data")
		}
	}

	if v, _ := store.Get(ctx, defaultStateKey); v != "" {
		t.Errorf("watermark = %q, want unset", v)
	}
	if got := fm.queryCount(); got != 2 {
		t.Errorf("queries = %d, want 2", got)
	}
}

func TestCycle_EmitsAndAdvancesWatermark(t *testing.T) {
	fm := newFakeMail(t)
	fm.serve(email("E1", t1), email("E2", t2))
	store := NewMemoryStore()
	p := newTestPoller(t, fm, store, Options{Simple: true})
	ctx := context.Background()

	res, err := p.Cycle(ctx)
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if res.NoData {
		t.Fatal("Cycle() should emit data")
	}
	if len(res.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(res.Records))
	}
	if !res.Watermark.Equal(t2) {
		t.Errorf("Watermark = %v, want %v", res.Watermark, t2)
	}
	if res.Records[0].Subject == "" || !res.Records[0].IsRead {
		t.Errorf("projection incomplete: %+v", res.Records[0])
	}

	stored, _ := store.Get(ctx, defaultStateKey)
	if stored != t2.Format(time.RFC3339Nano) {
		t.Errorf("stored watermark = %q, want %q", stored, t2.Format(time.RFC3339Nano))
	}

	// A server with an inclusive after-boundary returns the newest
	// email again; the strict re-filter must drop it and leave the
	// watermark alone.
	res, err = p.Cycle(ctx)
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if !res.NoData {
		t.Error("boundary-duplicate cycle should report no data")
	}
	stored, _ = store.Get(ctx, defaultStateKey)
	if stored != t2.Format(time.RFC3339Nano) {
		t.Errorf("watermark after duplicate cycle = %q, want unchanged", stored)
	}

	// The second query must carry the watermark as its after filter.
	var args struct {
		Filter struct {
			After string `json:"after"`
		} `json:"filter"`
		Limit uint32 `json:"limit"`
	}
	if err := json.Unmarshal(fm.queryArgs(), &args); err != nil {
		t.Fatalf("failed to decode query arguments: %v", err)
	}
	if args.Filter.After != t2.Format(time.RFC3339) {
		t.Errorf("filter.after = %q, want %q", args.Filter.After, t2.Format(time.RFC3339))
	}
	if args.Limit != defaultPageSize {
		t.Errorf("limit = %d, want %d", args.Limit, defaultPageSize)
	}
}

func TestCycle_StrictFilterDropsBoundaryDuplicates(t *testing.T) {
	fm := newFakeMail(t)
	fm.serve(email("E1", t1), email("E2", t2), email("E3", t3))
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Set(ctx, defaultStateKey, t2.Format(time.RFC3339Nano)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	p := newTestPoller(t, fm, store, Options{Simple: true})
	res, err := p.Cycle(ctx)
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}

	// E1 and E2 are at or before the watermark; only E3 is new.
	if len(res.Records) != 1 || res.Records[0].Id != "E3" {
		t.Fatalf("Records = %+v, want only E3", res.Records)
	}
	if !res.Watermark.Equal(t3) {
		t.Errorf("Watermark = %v, want %v", res.Watermark, t3)
	}
}

func TestCycle_WatermarkMonotonic(t *testing.T) {
	fm := newFakeMail(t)
	fm.serve(email("E3", t3))
	store := NewMemoryStore()
	ctx := context.Background()
	p := newTestPoller(t, fm, store, Options{})

	if _, err := p.Cycle(ctx); err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}

	// Later cycles only ever see older mail; the watermark never moves
	// backwards.
	fm.serve(email("E1", t1))
	res, err := p.Cycle(ctx)
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if !res.NoData {
		t.Error("stale-only cycle should report no data")
	}
	stored, _ := store.Get(ctx, defaultStateKey)
	if stored != t3.Format(time.RFC3339Nano) {
		t.Errorf("watermark = %q, want %q", stored, t3.Format(time.RFC3339Nano))
	}
}

func TestCycle_FullRecords(t *testing.T) {
	fm := newFakeMail(t)
	fm.serve(email("E1", t1))
	p := newTestPoller(t, fm, NewMemoryStore(), Options{})

	res, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if len(res.Emails) != 1 || res.Emails[0].Id != "E1" {
		t.Errorf("Emails = %+v, want [E1]", res.Emails)
	}
	if res.Records != nil {
		t.Error("full mode should not populate Records")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	got, err := store.Get(ctx, "missing")
	if err != nil || got != "" {
		t.Errorf("Get(missing) = %q, %v; want empty, nil", got, err)
	}

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err = store.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("Get(k) = %q, %v; want %q, nil", got, err, "v")
	}
}
