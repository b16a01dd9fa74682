package greenroom

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	sessionCreateTimeout = 60 * time.Second
	sessionSyncTimeout   = 20 * time.Second
)

// Session is one wallet's live connection to the messaging network.
type Session struct {
	Address string
	Client  Client
}

// Sessions caches one Session per wallet address. Creation is memoized, so
// concurrent GetSession calls for the same address share a single dial
// instead of racing; a failed dial leaves no cache entry behind.
type Sessions struct {
	dialer        Dialer
	createTimeout time.Duration
	syncTimeout   time.Duration

	mu    sync.Mutex
	cache map[string]*Session
	group singleflight.Group
}

// NewSessions returns a session cache dialing through d.
func NewSessions(d Dialer) *Sessions {
	return &Sessions{
		dialer:        d,
		createTimeout: sessionCreateTimeout,
		syncTimeout:   sessionSyncTimeout,
		cache:         make(map[string]*Session),
	}
}

// GetSession returns the cached session for the wallet's address, creating
// it on first use.
func (s *Sessions) GetSession(ctx context.Context, wallet Wallet) (*Session, error) {
	if wallet == nil {
		return nil, fmt.Errorf("get session: no wallet: %w", ErrWalletNotReady)
	}
	addr, err := NormalizeAddress(wallet.Address())
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	signer, ok := wallet.(MessageSigner)
	if !ok {
		return nil, fmt.Errorf("get session %s: wallet cannot sign: %w", addr, ErrWalletNotReady)
	}

	s.mu.Lock()
	if sess, ok := s.cache[addr]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	ch := s.group.DoChan(addr, func() (any, error) {
		s.mu.Lock()
		if sess, ok := s.cache[addr]; ok {
			s.mu.Unlock()
			return sess, nil
		}
		s.mu.Unlock()

		sess, err := s.createSession(addr, &walletSigner{address: addr, wallet: signer})
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[addr] = sess
		s.mu.Unlock()
		return sess, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("get session %s: %w", addr, ctx.Err())
	}
}

// ClearSession drops the cached session for one wallet address.
func (s *Sessions) ClearSession(address string) {
	addr := strings.ToLower(strings.TrimSpace(address))
	s.mu.Lock()
	delete(s.cache, addr)
	s.mu.Unlock()
}

// Reset drops every cached session.
func (s *Sessions) Reset() {
	s.mu.Lock()
	s.cache = make(map[string]*Session)
	s.mu.Unlock()
}

// createSession dials the network for addr and classifies the failures
// worth acting on: installation quota exhaustion triggers the revoke and
// retry flow, timeouts and storage trouble become ErrSessionTimeout.
// Creation is shared across callers, so it deliberately does not inherit
// any single caller's context.
func (s *Sessions) createSession(addr string, signer Signer) (*Session, error) {
	client, err := s.dial(signer)
	if err != nil {
		switch {
		case isInstallationLimit(err):
			log.Printf("createSession: %s hit installation limit, revoking: %v", addr, err)
			client, err = s.recoverInstallations(addr, signer)
			if err != nil {
				return nil, fmt.Errorf("create session %s: %w: %v", addr, ErrInstallationLimitExceeded, err)
			}
		case isCreationTimeout(err):
			return nil, fmt.Errorf("create session %s: %w: %v", addr, ErrSessionTimeout, err)
		default:
			return nil, fmt.Errorf("create session %s: %w", addr, err)
		}
	}

	s.syncConversations(client, addr)
	return &Session{Address: addr, Client: client}, nil
}

// dial races the dialer against the creation deadline. On timeout it stops
// waiting; the dial itself keeps running and its late result is discarded.
func (s *Sessions) dial(signer Signer) (Client, error) {
	type result struct {
		client Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := s.dialer.Dial(context.Background(), signer)
		ch <- result{c, err}
	}()

	timer := time.NewTimer(s.createTimeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.client, r.err
	case <-timer.C:
		return nil, fmt.Errorf("dial %s: no client after %s: %w", signer.Address(), s.createTimeout, ErrSessionTimeout)
	}
}

// recoverInstallations frees the inbox's installation quota and retries the
// dial once. Any failure along the way surfaces as the original limit
// condition at the caller.
func (s *Sessions) recoverInstallations(addr string, signer Signer) (Client, error) {
	mgr, ok := s.dialer.(InstallationManager)
	if !ok {
		return nil, errors.New("dialer cannot revoke installations")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.createTimeout)
	defer cancel()

	inboxID, err := mgr.InboxIDForAddress(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("resolve inbox: %w", err)
	}
	if inboxID == "" {
		return nil, errors.New("no inbox registered for address")
	}
	installations, err := mgr.Installations(ctx, inboxID)
	if err != nil {
		return nil, fmt.Errorf("list installations: %w", err)
	}
	if err := mgr.RevokeInstallations(ctx, signer, inboxID, installations); err != nil {
		return nil, fmt.Errorf("revoke %d installations: %w", len(installations), err)
	}
	log.Printf("recoverInstallations: revoked %d installations for %s", len(installations), addr)
	return s.dial(signer)
}

// syncConversations refreshes consented conversations after a session comes
// up, waiting at most syncTimeout. Failure or overrun is logged and
// swallowed; history and the live feed tolerate partial sync.
func (s *Sessions) syncConversations(client Client, addr string) {
	done := make(chan error, 1)
	go func() {
		done <- client.SyncConversations(context.Background())
	}()
	select {
	case err := <-done:
		if err != nil {
			log.Printf("syncConversations: %s: %v", addr, err)
		}
	case <-time.After(s.syncTimeout):
		log.Printf("syncConversations: %s still syncing after %s, not waiting", addr, s.syncTimeout)
	}
}

// walletSigner adapts the caller's wallet into the canonical Signer handed
// to the dialer.
type walletSigner struct {
	address string
	wallet  MessageSigner
}

func (w *walletSigner) Address() string { return w.address }

func (w *walletSigner) SignMessage(ctx context.Context, message string) ([]byte, error) {
	raw, err := w.wallet.SignMessage(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	sig, err := normalizeSignature(raw)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return sig, nil
}

// normalizeSignature canonicalizes the shapes wallet bridges return for a
// signature: raw bytes, hex strings with or without the 0x prefix, and
// JSON-decoded numeric arrays.
func normalizeSignature(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		if len(t) == 0 {
			return nil, errors.New("empty signature")
		}
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "0x")
		s = strings.TrimPrefix(s, "0X")
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("decode hex signature: %w", err)
		}
		if len(b) == 0 {
			return nil, errors.New("empty signature")
		}
		return b, nil
	case []any:
		if len(t) == 0 {
			return nil, errors.New("empty signature")
		}
		b := make([]byte, len(t))
		for i, e := range t {
			f, ok := e.(float64)
			if !ok || f != math.Trunc(f) || f < 0 || f > 255 {
				return nil, fmt.Errorf("signature element %d is not a byte", i)
			}
			b[i] = byte(f)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported signature shape %T", v)
	}
}
