// Package relaynet implements the greenroom collaborator surface over
// NIP-29 relay-based groups. One group per stream channel, chat as kind 9
// events, membership through kind 9000 moderation events, and a wallet
// directory of kind 10432 announcements binding an Ethereum address to the
// messaging pubkey derived from its signature.
package relaynet

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/nbd-wtf/go-nostr"

	"github.com/offstage-live/greenroom"
)

// NIP-29 group kinds plus this network's own directory kinds.
const (
	kindGroupChatMessage = 9     // chat message, h tag = group id
	kindGroupPutUser     = 9000  // moderation: add member, p tag
	kindGroupEditMeta    = 9002  // moderation: edit metadata
	kindGroupCreate      = 9007  // create group
	kindGroupMetadata    = 39000 // relay-generated metadata, d tag = group id
	kindGroupMembers     = 39002 // relay-generated member list, p tags
	kindSimpleGroupList  = 10009 // NIP-51 simple group list
	kindDeletion         = 5     // NIP-09 deletion request
	kindInboxAnnounce    = 10432 // wallet directory: w tag = address
	kindRegistration     = 1432  // one per active device session
)

// keyDerivationPhrase is signed by the wallet to derive the messaging key.
// Changing it rotates every account's key, so it is versioned.
const keyDerivationPhrase = "greenroom messaging key v1 for %s"

const defaultMaxInstallations = 10

// Dialer creates relay-backed clients. Each Dial registers a device session
// (kind 1432); when an address already has maxInstalls live sessions the
// dial fails until older ones are revoked, which greenroom's session manager
// does through the InstallationManager surface below.
type Dialer struct {
	relays      []string
	pool        *nostr.SimplePool
	maxInstalls int
}

func NewDialer(relays []string) *Dialer {
	return &Dialer{
		relays:      relays,
		pool:        nostr.NewSimplePool(context.Background()),
		maxInstalls: defaultMaxInstallations,
	}
}

// Dial derives the account key from a wallet signature, enforces the
// session cap, registers this session, and announces the wallet binding on
// the directory relays.
func (d *Dialer) Dial(ctx context.Context, signer greenroom.Signer) (greenroom.Client, error) {
	addr, err := greenroom.NormalizeAddress(signer.Address())
	if err != nil {
		return nil, err
	}
	sk, pk, err := d.deriveKeys(ctx, signer)
	if err != nil {
		return nil, err
	}

	active, err := d.activeRegistrations(ctx, pk)
	if err != nil {
		return nil, fmt.Errorf("dial %s: list registrations: %w", addr, err)
	}
	if len(active) >= d.maxInstalls {
		return nil, fmt.Errorf("dial %s: already registered %d/%d installations", addr, len(active), d.maxInstalls)
	}

	nonce, err := randomHex(8)
	if err != nil {
		return nil, fmt.Errorf("dial %s: nonce: %w", addr, err)
	}
	reg := nostr.Event{
		Kind:      kindRegistration,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{{"n", nonce}},
	}
	if err := reg.Sign(sk); err != nil {
		return nil, fmt.Errorf("dial %s: sign registration: %w", addr, err)
	}
	if err := publishAll(ctx, d.pool, d.relays, reg); err != nil {
		return nil, fmt.Errorf("dial %s: register session: %w", addr, err)
	}

	announce := nostr.Event{
		Kind:      kindInboxAnnounce,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{{"w", addr}},
	}
	if err := announce.Sign(sk); err != nil {
		return nil, fmt.Errorf("dial %s: sign announcement: %w", addr, err)
	}
	if err := publishAll(ctx, d.pool, d.relays, announce); err != nil {
		return nil, fmt.Errorf("dial %s: announce: %w", addr, err)
	}

	log.Printf("dial: %s -> %s (%d/%d sessions)", addr, shortPK(pk), len(active)+1, d.maxInstalls)
	return newClient(d.pool, d.relays, addr, sk, pk), nil
}

// InboxIDForAddress resolves a wallet address through the directory.
func (d *Dialer) InboxIDForAddress(ctx context.Context, address string) (string, error) {
	re := d.pool.QuerySingle(ctx, d.relays, nostr.Filter{
		Kinds: []int{kindInboxAnnounce},
		Tags:  nostr.TagMap{"w": {address}},
	})
	if re == nil {
		return "", nil
	}
	return re.PubKey, nil
}

// Installations lists the ids of the inbox's live session registrations.
func (d *Dialer) Installations(ctx context.Context, inboxID string) ([][]byte, error) {
	active, err := d.activeRegistrations(ctx, inboxID)
	if err != nil {
		return nil, err
	}
	ids := make([][]byte, 0, len(active))
	for _, id := range active {
		b, err := hex.DecodeString(id)
		if err != nil {
			return nil, fmt.Errorf("installations: bad event id %q: %w", id, err)
		}
		ids = append(ids, b)
	}
	return ids, nil
}

// RevokeInstallations publishes a deletion request for the given session
// registrations, signed with the key derived from the wallet.
func (d *Dialer) RevokeInstallations(ctx context.Context, signer greenroom.Signer, inboxID string, installationIDs [][]byte) error {
	if len(installationIDs) == 0 {
		return nil
	}
	sk, pk, err := d.deriveKeys(ctx, signer)
	if err != nil {
		return err
	}
	if pk != inboxID {
		return fmt.Errorf("revoke: signer key %s does not own inbox %s", shortPK(pk), shortPK(inboxID))
	}

	tags := make(nostr.Tags, 0, len(installationIDs))
	for _, id := range installationIDs {
		tags = append(tags, nostr.Tag{"e", hex.EncodeToString(id)})
	}
	evt := nostr.Event{
		Kind:      kindDeletion,
		CreatedAt: nostr.Now(),
		Tags:      tags,
	}
	if err := evt.Sign(sk); err != nil {
		return fmt.Errorf("revoke: sign: %w", err)
	}
	if err := publishAll(ctx, d.pool, d.relays, evt); err != nil {
		return fmt.Errorf("revoke: publish: %w", err)
	}
	log.Printf("revoke: %s dropped %d registrations", shortPK(inboxID), len(installationIDs))
	return nil
}

// activeRegistrations returns registration event ids not covered by a later
// deletion request. Counting deletions client-side keeps the cap correct
// even on relays that store kind 5 without acting on it.
func (d *Dialer) activeRegistrations(ctx context.Context, pk string) ([]string, error) {
	regs, err := queryAll(ctx, d.pool, d.relays, nostr.Filter{
		Kinds:   []int{kindRegistration},
		Authors: []string{pk},
	})
	if err != nil {
		return nil, err
	}
	dels, err := queryAll(ctx, d.pool, d.relays, nostr.Filter{
		Kinds:   []int{kindDeletion},
		Authors: []string{pk},
	})
	if err != nil {
		return nil, err
	}

	revoked := make(map[string]bool)
	for _, evt := range dels {
		for _, tag := range evt.Tags {
			if len(tag) >= 2 && tag[0] == "e" {
				revoked[tag[1]] = true
			}
		}
	}
	var active []string
	for _, evt := range regs {
		if !revoked[evt.ID] {
			active = append(active, evt.ID)
		}
	}
	return active, nil
}

// deriveKeys turns the wallet's signature over the fixed phrase into a
// secp256k1 key pair. Same wallet, same key, on any device.
func (d *Dialer) deriveKeys(ctx context.Context, signer greenroom.Signer) (sk, pk string, err error) {
	addr, err := greenroom.NormalizeAddress(signer.Address())
	if err != nil {
		return "", "", err
	}
	sig, err := signer.SignMessage(ctx, fmt.Sprintf(keyDerivationPhrase, addr))
	if err != nil {
		return "", "", fmt.Errorf("derive key for %s: sign: %w", addr, err)
	}
	sum := sha256.Sum256(sig)
	sk = hex.EncodeToString(sum[:])
	pk, err = nostr.GetPublicKey(sk)
	if err != nil {
		return "", "", fmt.Errorf("derive key for %s: %w", addr, err)
	}
	return sk, pk, nil
}

func randomHex(chars int) (string, error) {
	b := make([]byte, chars/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// shortPK returns the first 8 characters of a public key for logs.
func shortPK(pk string) string {
	if len(pk) > 8 {
		return pk[:8]
	}
	return pk
}

// publishAll publishes a signed event to every relay and succeeds when at
// least one accepts it.
func publishAll(ctx context.Context, pool *nostr.SimplePool, relays []string, evt nostr.Event) error {
	if len(relays) == 0 {
		return fmt.Errorf("no relays configured")
	}
	var firstErr error
	accepted := 0
	for _, url := range relays {
		r, err := pool.EnsureRelay(url)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("connect %s: %w", url, err)
			}
			continue
		}
		if err := r.Publish(ctx, evt); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("publish to %s: %w", url, err)
			}
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return firstErr
	}
	return nil
}

// queryAll returns the first relay's full answer for a filter, moving to the
// next relay when one fails or has nothing.
func queryAll(ctx context.Context, pool *nostr.SimplePool, relays []string, filter nostr.Filter) ([]*nostr.Event, error) {
	var firstErr error
	for _, url := range relays {
		r, err := pool.EnsureRelay(url)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("connect %s: %w", url, err)
			}
			continue
		}
		evts, err := r.QuerySync(ctx, filter)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("query %s: %w", url, err)
			}
			continue
		}
		if len(evts) > 0 {
			return evts, nil
		}
	}
	return nil, firstErr
}
