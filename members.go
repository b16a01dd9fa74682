package greenroom

import (
	"context"
	"log"
)

// SyncMembers reconciles the eligible wallet addresses into the
// conversation's membership. Addresses with a known inbox id that is not
// yet a member are added in one batched call; addresses the network cannot
// resolve are still attempted one at a time by identifier, since an address
// can be messageable before it is indexed. The whole operation is best
// effort: individual failures are logged and skipped, never surfaced.
//
// The returned count is the number of add operations attempted. It is
// informational; membership converges toward the eligible set over repeated
// syncs rather than being guaranteed by any single call.
func (s *Session) SyncMembers(ctx context.Context, conv Conversation, addresses []string) int {
	if conv == nil {
		return 0
	}
	addrs := normalizeAddressList(addresses)
	if len(addrs) == 0 {
		return 0
	}

	resolved := s.ResolveInboxIDs(ctx, addrs)
	current := conversationMembers(ctx, conv)

	var (
		batch      []string
		unresolved []string
	)
	for _, a := range addrs {
		id, ok := resolved[a]
		if !ok {
			unresolved = append(unresolved, a)
			continue
		}
		if current[id] {
			continue
		}
		batch = append(batch, id)
	}

	attempted := 0
	for _, a := range unresolved {
		if addMemberByIdentifier(ctx, conv, a) {
			attempted++
		}
	}
	if len(batch) > 0 && addMembersBatch(ctx, conv, batch) {
		attempted += len(batch)
	}
	if attempted > 0 {
		log.Printf("syncMembers: %s: attempted %d adds (%d unresolved, %d by inbox id)", conv.ID(), attempted, len(unresolved), len(batch))
	}
	return attempted
}

// conversationMembers reads current membership as a set of inbox ids,
// trying the lister generations in order. Total failure yields an empty
// set, which at worst causes duplicate adds the relay will reject as
// already-member.
func conversationMembers(ctx context.Context, conv Conversation) map[string]bool {
	if l, ok := conv.(MemberLister); ok {
		members, err := l.Members(ctx)
		if err == nil {
			return memberSet(members)
		}
		log.Printf("syncMembers: members: %v", err)
	}
	if l, ok := conv.(LegacyMemberLister); ok {
		members, err := l.ListMembers(ctx)
		if err == nil {
			return memberSet(members)
		}
		log.Printf("syncMembers: list members: %v", err)
	}
	if l, ok := conv.(InboxMemberLister); ok {
		ids, err := l.ListMembersByInboxID(ctx)
		if err == nil {
			set := make(map[string]bool, len(ids))
			for _, id := range ids {
				if id != "" {
					set[id] = true
				}
			}
			return set
		}
		log.Printf("syncMembers: list members by inbox id: %v", err)
	}
	return map[string]bool{}
}

func memberSet(members []Member) map[string]bool {
	set := make(map[string]bool, len(members))
	for _, m := range members {
		if m.InboxID != "" {
			set[m.InboxID] = true
		}
	}
	return set
}

// addMemberByIdentifier issues a single identifier-based add. Reports
// whether an add was actually issued; the outcome is logged only. Requests
// go one at a time so one already-member rejection cannot abort the rest.
func addMemberByIdentifier(ctx context.Context, conv Conversation, address string) bool {
	adder, ok := conv.(IdentifierMemberAdder)
	if !ok {
		return false
	}
	err := adder.AddMemberByIdentifier(ctx, Identifier{Kind: IdentifierEthereum, Value: address})
	switch {
	case err == nil:
	case isSafeAddFailure(err):
		log.Printf("syncMembers: %s already present: %v", address, err)
	default:
		log.Printf("syncMembers: add %s by identifier: %v", address, err)
	}
	return true
}

// addMembersBatch adds the missing inbox ids in one call, preferring the
// newer method name. Reports whether a call was issued.
func addMembersBatch(ctx context.Context, conv Conversation, inboxIDs []string) bool {
	if adder, ok := conv.(InboxMemberAdder); ok {
		if err := adder.AddMembersByInboxID(ctx, inboxIDs); err != nil {
			log.Printf("syncMembers: batch add %d members: %v", len(inboxIDs), err)
		}
		return true
	}
	if adder, ok := conv.(MemberAdder); ok {
		if err := adder.AddMembers(ctx, inboxIDs); err != nil {
			log.Printf("syncMembers: batch add %d members: %v", len(inboxIDs), err)
		}
		return true
	}
	return false
}
