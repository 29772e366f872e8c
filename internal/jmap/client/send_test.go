package client

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"jmapmail/internal/jmap/protocol"
)

func identityHandler(identities []protocol.Identity) methodHandler {
	return func(t *testing.T, args json.RawMessage) (string, interface{}) {
		return protocol.MethodIdentityGet, protocol.GetIdentitiesResponse{
			AccountId: "A1",
			List:      identities,
		}
	}
}

// createdEmailSetHandler accepts any single create and assigns it the
// given server ID.
func createdEmailSetHandler(serverId protocol.Id, capture *json.RawMessage) methodHandler {
	return func(t *testing.T, args json.RawMessage) (string, interface{}) {
		if capture != nil {
			*capture = args
		}
		var set protocol.SetRequest
		if err := json.Unmarshal(args, &set); err != nil {
			t.Fatalf("failed to decode Email/set arguments: %v", err)
		}
		created := make(map[protocol.Id]interface{})
		for creationId := range set.Create {
			created[creationId] = map[string]protocol.Id{"id": serverId}
		}
		return protocol.MethodEmailSet, map[string]interface{}{
			"accountId": "A1",
			"created":   created,
		}
	}
}

var draftsMailboxes = []protocol.Mailbox{
	{Id: "MI", Name: "Inbox", Role: strPtr("inbox")},
	{Id: "MD", Name: "Drafts", Role: strPtr("drafts")},
}

var testIdentities = []protocol.Identity{
	{Id: "I1", Name: "Test", Email: "test@example.com"},
}

func TestSendEmail_NoDraftsMailbox(t *testing.T) {
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodMailboxGet: mailboxHandler([]protocol.Mailbox{
			{Id: "MI", Name: "Inbox", Role: strPtr("inbox")},
		}),
	})
	c := newTestClient(t, fs)

	_, err := c.SendEmail(context.Background(), Message{
		To:       []string{"rcpt@example.com"},
		Subject:  "hi",
		TextBody: "hello",
	})
	if !errors.Is(err, protocol.ErrNoDraftsMailbox) {
		t.Fatalf("error = %v, want ErrNoDraftsMailbox", err)
	}

	// The failure must precede any mutating call.
	if got := fs.callCount(protocol.MethodEmailSet); got != 0 {
		t.Errorf("Email/set calls = %d, want 0", got)
	}
}

func TestSendEmail_TwoCallEnvelope(t *testing.T) {
	var setArgs, subArgs json.RawMessage
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodMailboxGet:  mailboxHandler(draftsMailboxes),
		protocol.MethodIdentityGet: identityHandler(testIdentities),
		protocol.MethodEmailSet:    createdEmailSetHandler("E99", &setArgs),
		protocol.MethodEmailSubmissionSet: func(t *testing.T, args json.RawMessage) (string, interface{}) {
			subArgs = args
			return protocol.MethodEmailSubmissionSet, map[string]interface{}{
				"accountId": "A1",
				"created":   map[string]interface{}{"sub": map[string]string{"id": "S1"}},
			}
		},
	})
	c := newTestClient(t, fs)

	id, err := c.SendEmail(context.Background(), Message{
		To:       []string{"Recipient <rcpt@example.com>"},
		Subject:  "hi",
		TextBody: "hello",
	})
	if err != nil {
		t.Fatalf("SendEmail() error: %v", err)
	}
	if id != "E99" {
		t.Errorf("SendEmail() = %q, want %q", id, "E99")
	}

	// Both calls must travel in one envelope, draft first.
	fs.mu.Lock()
	last := fs.requests[len(fs.requests)-1]
	fs.mu.Unlock()
	if len(last.MethodCalls) != 2 {
		t.Fatalf("envelope has %d calls, want 2", len(last.MethodCalls))
	}
	if last.MethodCalls[0].Name != protocol.MethodEmailSet ||
		last.MethodCalls[1].Name != protocol.MethodEmailSubmissionSet {
		t.Errorf("call order = %s, %s", last.MethodCalls[0].Name, last.MethodCalls[1].Name)
	}

	var set struct {
		Create map[protocol.Id]struct {
			MailboxIds map[protocol.Id]bool    `json:"mailboxIds"`
			Keywords   map[string]bool         `json:"keywords"`
			To         []protocol.EmailAddress `json:"to"`
		} `json:"create"`
	}
	if err := json.Unmarshal(setArgs, &set); err != nil {
		t.Fatalf("failed to decode Email/set arguments: %v", err)
	}
	if len(set.Create) != 1 {
		t.Fatalf("create has %d entries, want 1", len(set.Create))
	}
	var draftCreationId protocol.Id
	for creationId, draft := range set.Create {
		draftCreationId = creationId
		if !draft.MailboxIds["MD"] {
			t.Errorf("draft mailboxIds = %v, want Drafts (MD)", draft.MailboxIds)
		}
		if !draft.Keywords[protocol.KeywordDraft] {
			t.Errorf("draft keywords = %v, want $draft", draft.Keywords)
		}
		if len(draft.To) != 1 || draft.To[0].Email != "rcpt@example.com" || draft.To[0].Name != "Recipient" {
			t.Errorf("draft to = %v", draft.To)
		}
	}

	var sub struct {
		Create map[protocol.Id]struct {
			IdentityId protocol.Id `json:"identityId"`
			EmailId    string      `json:"emailId"`
		} `json:"create"`
		OnSuccessDestroyEmail []string `json:"onSuccessDestroyEmail"`
	}
	if err := json.Unmarshal(subArgs, &sub); err != nil {
		t.Fatalf("failed to decode EmailSubmission/set arguments: %v", err)
	}
	for creationId, s := range sub.Create {
		if s.IdentityId != "I1" {
			t.Errorf("identityId = %q, want %q", s.IdentityId, "I1")
		}
		if s.EmailId != protocol.CreationReference(draftCreationId) {
			t.Errorf("emailId = %q, want back-reference %q", s.EmailId, protocol.CreationReference(draftCreationId))
		}
		want := protocol.CreationReference(creationId)
		if len(sub.OnSuccessDestroyEmail) != 1 || sub.OnSuccessDestroyEmail[0] != want {
			t.Errorf("onSuccessDestroyEmail = %v, want [%s]", sub.OnSuccessDestroyEmail, want)
		}
	}
}

func TestSendEmail_SubmissionFailureExposesDraft(t *testing.T) {
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodMailboxGet:  mailboxHandler(draftsMailboxes),
		protocol.MethodIdentityGet: identityHandler(testIdentities),
		protocol.MethodEmailSet:    createdEmailSetHandler("E99", nil),
		protocol.MethodEmailSubmissionSet: func(t *testing.T, args json.RawMessage) (string, interface{}) {
			return protocol.ErrorMethodName, map[string]string{
				"type":        "forbiddenToSend",
				"description": "quota exceeded",
			}
		},
	})
	c := newTestClient(t, fs)

	_, err := c.SendEmail(context.Background(), Message{
		To:       []string{"rcpt@example.com"},
		Subject:  "hi",
		TextBody: "hello",
	})
	if err == nil {
		t.Fatal("SendEmail() should fail when the submission is rejected")
	}

	var sendErr *SendFailedError
	if !errors.As(err, &sendErr) {
		t.Fatalf("error type = %T, want *SendFailedError", err)
	}
	if sendErr.DraftId != "E99" {
		t.Errorf("DraftId = %q, want %q", sendErr.DraftId, "E99")
	}

	var methodErr *protocol.MethodError
	if !errors.As(err, &methodErr) {
		t.Fatalf("cause type = %T, want *protocol.MethodError", sendErr.Err)
	}
	if methodErr.Type != "forbiddenToSend" {
		t.Errorf("Type = %q, want %q", methodErr.Type, "forbiddenToSend")
	}
}

func TestSaveDraft_SingleCall(t *testing.T) {
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodMailboxGet:  mailboxHandler(draftsMailboxes),
		protocol.MethodIdentityGet: identityHandler(testIdentities),
		protocol.MethodEmailSet:    createdEmailSetHandler("E42", nil),
	})
	c := newTestClient(t, fs)

	id, err := c.SaveDraft(context.Background(), Message{
		To:       []string{"rcpt@example.com"},
		Subject:  "wip",
		TextBody: "not finished",
	})
	if err != nil {
		t.Fatalf("SaveDraft() error: %v", err)
	}
	if id != "E42" {
		t.Errorf("SaveDraft() = %q, want %q", id, "E42")
	}
	if got := fs.callCount(protocol.MethodEmailSubmissionSet); got != 0 {
		t.Errorf("EmailSubmission/set calls = %d, want 0", got)
	}
}

func TestReply_CopiesThreadingHeaders(t *testing.T) {
	var setArgs json.RawMessage
	fs := newFakeServer(t, map[string]methodHandler{
		protocol.MethodMailboxGet:  mailboxHandler(draftsMailboxes),
		protocol.MethodIdentityGet: identityHandler(testIdentities),
		protocol.MethodEmailGet: func(t *testing.T, args json.RawMessage) (string, interface{}) {
			return protocol.MethodEmailGet, protocol.GetEmailsResponse{
				AccountId: "A1",
				List: []protocol.Email{{
					Id:         "E1",
					ThreadId:   "T1",
					From:       []protocol.EmailAddress{{Name: "Bob", Email: "bob@example.com"}},
					Subject:    "Hello",
					MessageId:  []string{"<m1@example.com>"},
					References: []string{"<m0@example.com>"},
				}},
			}
		},
		protocol.MethodEmailSet: createdEmailSetHandler("E100", &setArgs),
		protocol.MethodEmailSubmissionSet: func(t *testing.T, args json.RawMessage) (string, interface{}) {
			return protocol.MethodEmailSubmissionSet, map[string]interface{}{
				"accountId": "A1",
				"created":   map[string]interface{}{"sub": map[string]string{"id": "S1"}},
			}
		},
	})
	c := newTestClient(t, fs)

	if _, err := c.Reply(context.Background(), "E1", Message{TextBody: "thanks"}); err != nil {
		t.Fatalf("Reply() error: %v", err)
	}

	var set struct {
		Create map[protocol.Id]struct {
			To         []protocol.EmailAddress `json:"to"`
			Subject    string                  `json:"subject"`
			InReplyTo  []string                `json:"inReplyTo"`
			References []string                `json:"references"`
		} `json:"create"`
	}
	if err := json.Unmarshal(setArgs, &set); err != nil {
		t.Fatalf("failed to decode Email/set arguments: %v", err)
	}
	for _, draft := range set.Create {
		if len(draft.To) != 1 || draft.To[0].Email != "bob@example.com" {
			t.Errorf("to = %v, want bob@example.com", draft.To)
		}
		if draft.Subject != "Re: Hello" {
			t.Errorf("subject = %q, want %q", draft.Subject, "Re: Hello")
		}
		if len(draft.InReplyTo) != 1 || draft.InReplyTo[0] != "<m1@example.com>" {
			t.Errorf("inReplyTo = %v", draft.InReplyTo)
		}
		wantRefs := "<m0@example.com> <m1@example.com>"
		if got := strings.Join(draft.References, " "); got != wantRefs {
			t.Errorf("references = %q, want %q", got, wantRefs)
		}
	}
}

func TestReplySubject(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{"Hello", "Re: Hello"},
		{"Re: Hello", "Re: Hello"},
		{"RE: Hello", "RE: Hello"},
		{"", "Re: "},
	}

	for _, tt := range tests {
		if got := replySubject(tt.subject); got != tt.want {
			t.Errorf("replySubject(%q) = %q, want %q", tt.subject, got, tt.want)
		}
	}
}
