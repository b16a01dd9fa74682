package greenroom

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// Shared test scaffolding: minimal collaborator implementations whose
// capability surface is composed per test by embedding the base types.

const testAddr = "0xa1b2c3d4e5f60718293a4b5c6d7e8f9012345678"

type fakeWallet struct {
	addr string
	sig  any
	err  error
}

func (w *fakeWallet) Address() string { return w.addr }

func (w *fakeWallet) SignMessage(ctx context.Context, message string) (any, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.sig != nil {
		return w.sig, nil
	}
	return []byte("sig:" + message), nil
}

// signlessWallet has an address but no signing capability.
type signlessWallet struct{ addr string }

func (w *signlessWallet) Address() string { return w.addr }

type dialResult struct {
	client Client
	err    error
}

type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	results []dialResult // consumed in order; empty means a fresh fakeClient
	delay   time.Duration
}

func (d *fakeDialer) Dial(ctx context.Context, signer Signer) (Client, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	var r dialResult
	if len(d.results) > 0 {
		r = d.results[0]
		d.results = d.results[1:]
	}
	d.mu.Unlock()
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if r.client == nil && r.err == nil {
		r.client = &fakeClient{inboxID: fmt.Sprintf("inbox-%d-%s", n, signer.Address())}
	}
	return r.client, r.err
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// revokingDialer adds the installation-recovery capability.
type revokingDialer struct {
	*fakeDialer
	inboxID    string
	installs   [][]byte
	revokes    int
	revokeErr  error
	revokedIDs [][]byte
}

func (d *revokingDialer) InboxIDForAddress(ctx context.Context, address string) (string, error) {
	return d.inboxID, nil
}

func (d *revokingDialer) Installations(ctx context.Context, inboxID string) ([][]byte, error) {
	return d.installs, nil
}

func (d *revokingDialer) RevokeInstallations(ctx context.Context, signer Signer, inboxID string, installationIDs [][]byte) error {
	d.revokes++
	d.revokedIDs = installationIDs
	return d.revokeErr
}

type fakeClient struct {
	inboxID string
	inboxes map[string]string // FindInboxID answers
	convs   map[string]Conversation
	findErr error
	convErr error
	syncErr error

	mu    sync.Mutex
	syncs int
}

func (c *fakeClient) InboxID() string { return c.inboxID }

func (c *fakeClient) FindInboxID(ctx context.Context, address string) (string, error) {
	if c.findErr != nil {
		return "", c.findErr
	}
	return c.inboxes[address], nil
}

func (c *fakeClient) Conversation(ctx context.Context, id string) (Conversation, error) {
	if c.convErr != nil {
		return nil, c.convErr
	}
	conv, ok := c.convs[id]
	if !ok {
		return nil, nil
	}
	return conv, nil
}

func (c *fakeClient) SyncConversations(ctx context.Context) error {
	c.mu.Lock()
	c.syncs++
	c.mu.Unlock()
	return c.syncErr
}

func (c *fakeClient) syncCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncs
}

type fakeConv struct {
	id     string
	sendID string

	mu      sync.Mutex
	sends   []string
	sendErr error
	pages   func(q MessageQuery) ([]RawMessage, error)
	queries []MessageQuery
}

func (c *fakeConv) ID() string { return c.id }

func (c *fakeConv) Send(ctx context.Context, content string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.sends = append(c.sends, content)
	return c.sendID, nil
}

func (c *fakeConv) Messages(ctx context.Context, q MessageQuery) ([]RawMessage, error) {
	c.mu.Lock()
	c.queries = append(c.queries, q)
	pages := c.pages
	c.mu.Unlock()
	if pages == nil {
		return nil, nil
	}
	return pages(q)
}

func (c *fakeConv) sentContents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sends...)
}

func (c *fakeConv) recordedQueries() []MessageQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MessageQuery(nil), c.queries...)
}

func testSession(c Client) *Session {
	return &Session{Address: testAddr, Client: c}
}

func rawText(id, sender, content string, ns int64) RawMessage {
	return RawMessage{ID: id, SenderInboxID: sender, Content: content, SentAtNs: ns}
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
