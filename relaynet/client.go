package relaynet

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/offstage-live/greenroom"
)

// Client is one account's connection to the group relays. It satisfies
// greenroom.Client plus the directory, listing, and creation capabilities.
type Client struct {
	pool    *nostr.SimplePool
	relays  []string
	address string
	sk      string
	pk      string

	mu      sync.Mutex
	wallets map[string]string // inbox pubkey -> wallet address, from seen announcements
	groups  []string          // group ids from our NIP-51 list
}

func newClient(pool *nostr.SimplePool, relays []string, address, sk, pk string) *Client {
	return &Client{
		pool:    pool,
		relays:  relays,
		address: address,
		sk:      sk,
		pk:      pk,
		wallets: make(map[string]string),
	}
}

// InboxID returns the messaging pubkey this client signs with.
func (c *Client) InboxID() string { return c.pk }

// Address returns the wallet address this client was dialed for.
func (c *Client) Address() string { return c.address }

// FindInboxID resolves a wallet address through the directory. Empty with a
// nil error means no announcement exists.
func (c *Client) FindInboxID(ctx context.Context, address string) (string, error) {
	re := c.pool.QuerySingle(ctx, c.relays, nostr.Filter{
		Kinds: []int{kindInboxAnnounce},
		Tags:  nostr.TagMap{"w": {address}},
	})
	if re == nil {
		return "", nil
	}
	c.rememberWallet(re.PubKey, address)
	return re.PubKey, nil
}

// ResolveAddress is the raw-string resolver generation; same directory.
func (c *Client) ResolveAddress(ctx context.Context, address string) (string, error) {
	return c.FindInboxID(ctx, address)
}

// CanMessage reports which addresses have an inbox announcement.
func (c *Client) CanMessage(ctx context.Context, addresses []string) (map[string]bool, error) {
	if len(addresses) == 0 {
		return map[string]bool{}, nil
	}
	evts, err := queryAll(ctx, c.pool, c.relays, nostr.Filter{
		Kinds: []int{kindInboxAnnounce},
		Tags:  nostr.TagMap{"w": addresses},
	})
	if err != nil {
		return nil, err
	}
	announced := make(map[string]bool)
	for _, evt := range evts {
		for _, tag := range evt.Tags {
			if len(tag) >= 2 && tag[0] == "w" {
				announced[tag[1]] = true
				c.rememberWallet(evt.PubKey, tag[1])
			}
		}
	}
	out := make(map[string]bool, len(addresses))
	for _, addr := range addresses {
		out[addr] = announced[addr]
	}
	return out, nil
}

// InboxStates returns the wallet bindings behind inbox pubkeys. With refresh
// it queries the relays; without, it serves announcements already seen.
func (c *Client) InboxStates(ctx context.Context, inboxIDs []string, refresh bool) ([]greenroom.InboxState, error) {
	if !refresh {
		return c.cachedStates(inboxIDs), nil
	}
	evts, err := queryAll(ctx, c.pool, c.relays, nostr.Filter{
		Kinds:   []int{kindInboxAnnounce},
		Authors: inboxIDs,
	})
	if err != nil {
		return nil, err
	}
	states := make([]greenroom.InboxState, 0, len(evts))
	for _, evt := range evts {
		addr := firstTagValue(evt, "w")
		if addr == "" {
			continue
		}
		c.rememberWallet(evt.PubKey, addr)
		states = append(states, inboxState(evt.PubKey, addr))
	}
	return states, nil
}

func (c *Client) cachedStates(inboxIDs []string) []greenroom.InboxState {
	c.mu.Lock()
	defer c.mu.Unlock()
	var states []greenroom.InboxState
	for _, id := range inboxIDs {
		if addr, ok := c.wallets[id]; ok {
			states = append(states, inboxState(id, addr))
		}
	}
	return states
}

func (c *Client) rememberWallet(pk, address string) {
	c.mu.Lock()
	c.wallets[pk] = address
	c.mu.Unlock()
}

func inboxState(pk, address string) greenroom.InboxState {
	ident := greenroom.Identifier{Kind: greenroom.IdentifierEthereum, Value: address}
	return greenroom.InboxState{
		InboxID:            pk,
		Identifiers:        []greenroom.Identifier{ident},
		RecoveryIdentifier: ident,
	}
}

// Conversation looks a group up by id via its relay-generated metadata
// event. Nil with a nil error means the relays have no such group.
func (c *Client) Conversation(ctx context.Context, id string) (greenroom.Conversation, error) {
	if id == "" {
		return nil, nil
	}
	re := c.pool.QuerySingle(ctx, c.relays, nostr.Filter{
		Kinds: []int{kindGroupMetadata},
		Tags:  nostr.TagMap{"d": {id}},
	})
	if re == nil {
		return nil, nil
	}
	return c.group(id), nil
}

// ListGroups returns handles for every group on our NIP-51 list.
func (c *Client) ListGroups(ctx context.Context) ([]greenroom.Conversation, error) {
	ids := c.fetchGroupList(ctx)
	convs := make([]greenroom.Conversation, 0, len(ids))
	for _, id := range ids {
		convs = append(convs, c.group(id))
	}
	return convs, nil
}

// SyncConversations re-reads the NIP-51 group list and keeps the relay
// connections warm.
func (c *Client) SyncConversations(ctx context.Context) error {
	ids := c.fetchGroupList(ctx)
	c.mu.Lock()
	c.groups = ids
	c.mu.Unlock()

	for _, url := range c.relays {
		if _, err := c.pool.EnsureRelay(url); err != nil {
			return fmt.Errorf("sync: connect %s: %w", url, err)
		}
	}
	return nil
}

func (c *Client) fetchGroupList(ctx context.Context) []string {
	re := c.pool.QuerySingle(ctx, c.relays, nostr.Filter{
		Kinds:   []int{kindSimpleGroupList},
		Authors: []string{c.pk},
	})
	if re == nil {
		return nil
	}
	var ids []string
	for _, tag := range re.Tags {
		if len(tag) >= 2 && tag[0] == "group" {
			ids = append(ids, tag[1])
		}
	}
	return ids
}

// CreateGroup creates a NIP-29 group with the given metadata and records it
// on our NIP-51 list. The creator is the group's admin.
func (c *Client) CreateGroup(ctx context.Context, meta greenroom.GroupMetadata) (greenroom.Conversation, error) {
	id, err := randomHex(8)
	if err != nil {
		return nil, fmt.Errorf("create group: random id: %w", err)
	}

	create := nostr.Event{
		Kind:      kindGroupCreate,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{{"h", id}, {"name", meta.Name}},
	}
	if err := create.Sign(c.sk); err != nil {
		return nil, fmt.Errorf("create group: sign: %w", err)
	}
	if err := publishAll(ctx, c.pool, c.relays, create); err != nil {
		return nil, fmt.Errorf("create group: publish: %w", err)
	}

	edit := nostr.Event{
		Kind:      kindGroupEditMeta,
		CreatedAt: nostr.Now(),
		Tags: nostr.Tags{
			{"h", id},
			{"name", meta.Name},
			{"about", meta.Description},
			{"picture", meta.ImageURL},
		},
	}
	if err := edit.Sign(c.sk); err != nil {
		return nil, fmt.Errorf("create group: sign metadata: %w", err)
	}
	if err := publishAll(ctx, c.pool, c.relays, edit); err != nil {
		return nil, fmt.Errorf("create group: publish metadata: %w", err)
	}

	if err := c.addToGroupList(ctx, id, meta.Name); err != nil {
		// The group exists; a stale list only costs a locate fallback.
		log.Printf("createGroup: %s: group list update failed: %v", id, err)
	}

	log.Printf("createGroup: created %q (%s)", meta.Name, id)
	return c.group(id), nil
}

// addToGroupList appends the group to our kind 10009 list and republishes it.
func (c *Client) addToGroupList(ctx context.Context, id, name string) error {
	existing := c.fetchGroupList(ctx)

	var tags nostr.Tags
	for _, gid := range existing {
		if gid == id {
			return nil
		}
		tags = append(tags, nostr.Tag{"group", gid, c.primaryRelay()})
	}
	tags = append(tags, nostr.Tag{"group", id, c.primaryRelay(), name})

	evt := nostr.Event{
		Kind:      kindSimpleGroupList,
		CreatedAt: nostr.Now(),
		Tags:      tags,
	}
	if err := evt.Sign(c.sk); err != nil {
		return fmt.Errorf("sign group list: %w", err)
	}
	if err := publishAll(ctx, c.pool, c.relays, evt); err != nil {
		return fmt.Errorf("publish group list: %w", err)
	}

	c.mu.Lock()
	c.groups = append(existing, id)
	c.mu.Unlock()
	return nil
}

func (c *Client) primaryRelay() string {
	if len(c.relays) > 0 {
		return c.relays[0]
	}
	return ""
}

func (c *Client) group(id string) *Group {
	return &Group{client: c, id: id}
}
