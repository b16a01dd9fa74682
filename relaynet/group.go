package relaynet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/offstage-live/greenroom"
)

// Group is a handle on one NIP-29 group, the conversation behind a stream
// channel.
type Group struct {
	client *Client
	id     string
}

// ID returns the group id.
func (g *Group) ID() string { return g.id }

// Send publishes a kind 9 chat message and returns its event id.
func (g *Group) Send(ctx context.Context, content string) (string, error) {
	evt := nostr.Event{
		Kind:      kindGroupChatMessage,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{{"h", g.id}},
		Content:   content,
	}
	if err := evt.Sign(g.client.sk); err != nil {
		return "", fmt.Errorf("send: sign: %w", err)
	}
	if err := publishAll(ctx, g.client.pool, g.client.relays, evt); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	return evt.GetID(), nil
}

// SendAttachment publishes an attachment message: the data URL rides the
// content, the file tag carries name, MIME type, and size.
func (g *Group) SendAttachment(ctx context.Context, att greenroom.Attachment) (string, error) {
	evt := nostr.Event{
		Kind:      kindGroupChatMessage,
		CreatedAt: nostr.Now(),
		Tags: nostr.Tags{
			{"h", g.id},
			{"file", att.Filename, att.MimeType, strconv.FormatInt(att.Size, 10)},
		},
		Content: att.DataURL,
	}
	if err := evt.Sign(g.client.sk); err != nil {
		return "", fmt.Errorf("send attachment: sign: %w", err)
	}
	if err := publishAll(ctx, g.client.pool, g.client.relays, evt); err != nil {
		return "", fmt.Errorf("send attachment: %w", err)
	}
	return evt.GetID(), nil
}

// Members reads the relay-generated member list. A group the relay has not
// materialized yet reads as empty.
func (g *Group) Members(ctx context.Context) ([]greenroom.Member, error) {
	re := g.client.pool.QuerySingle(ctx, g.client.relays, nostr.Filter{
		Kinds: []int{kindGroupMembers},
		Tags:  nostr.TagMap{"d": {g.id}},
	})
	if re == nil {
		return nil, nil
	}
	var members []greenroom.Member
	for _, tag := range re.Tags {
		if len(tag) >= 2 && tag[0] == "p" {
			members = append(members, greenroom.Member{InboxID: tag[1]})
		}
	}
	return members, nil
}

// AddMembersByInboxID publishes one put-user moderation event per member.
// Every member is attempted even when an earlier one fails; relays answer a
// put-user for someone already in the group with an "already" rejection,
// which is not a failure.
func (g *Group) AddMembersByInboxID(ctx context.Context, inboxIDs []string) error {
	var firstErr error
	for _, pk := range inboxIDs {
		evt := nostr.Event{
			Kind:      kindGroupPutUser,
			CreatedAt: nostr.Now(),
			Tags:      nostr.Tags{{"h", g.id}, {"p", pk}},
		}
		if err := evt.Sign(g.client.sk); err != nil {
			return fmt.Errorf("add member %s: sign: %w", shortPK(pk), err)
		}
		err := publishAll(ctx, g.client.pool, g.client.relays, evt)
		if err == nil || strings.Contains(strings.ToLower(err.Error()), "already") {
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("add member %s: %w", shortPK(pk), err)
		}
	}
	return firstErr
}

// Messages returns one history page of chat events, newest first. The
// query's nanosecond bound maps onto the relay's second-resolution cursor.
func (g *Group) Messages(ctx context.Context, q greenroom.MessageQuery) ([]greenroom.RawMessage, error) {
	filter := nostr.Filter{
		Kinds: []int{kindGroupChatMessage},
		Tags:  nostr.TagMap{"h": {g.id}},
		Limit: q.Limit,
	}
	if q.SentBeforeNs > 0 {
		until := nostr.Timestamp(q.SentBeforeNs / int64(time.Second))
		filter.Until = &until
	}
	evts, err := queryAll(ctx, g.client.pool, g.client.relays, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(evts, func(i, j int) bool {
		return evts[i].CreatedAt > evts[j].CreatedAt
	})
	raws := make([]greenroom.RawMessage, 0, len(evts))
	for _, evt := range evts {
		raws = append(raws, eventToRaw(evt))
	}
	return raws, nil
}

// StreamMessages subscribes to chat events from now on. The returned stop
// cancels the subscription.
func (g *Group) StreamMessages(ctx context.Context, h greenroom.StreamHandlers) (func() error, error) {
	sctx, cancel := context.WithCancel(ctx)
	since := nostr.Now()
	ch := g.client.pool.SubscribeMany(sctx, g.client.relays, nostr.Filter{
		Kinds: []int{kindGroupChatMessage},
		Tags:  nostr.TagMap{"h": {g.id}},
		Since: &since,
	})
	go func() {
		for re := range ch {
			if h.OnValue != nil {
				h.OnValue(eventToRaw(re.Event))
			}
		}
		if sctx.Err() == nil && h.OnFail != nil {
			h.OnFail(errors.New("subscription closed by relay"))
		}
	}()
	return func() error {
		cancel()
		return nil
	}, nil
}

// PublishPending re-checks the relay connections so queued frames flush.
func (g *Group) PublishPending(ctx context.Context) error {
	for _, url := range g.client.relays {
		if _, err := g.client.pool.EnsureRelay(url); err != nil {
			return fmt.Errorf("flush: connect %s: %w", url, err)
		}
	}
	return nil
}
