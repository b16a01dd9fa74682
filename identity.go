package greenroom

import (
	"context"
	"log"
	"strings"
)

// ResolveInboxID maps a wallet address to its inbox id. Resolution is best
// effort: an empty result means the address has never joined the network,
// never an error. The core lookup is tried first, then the resolver
// generations in fixed order; the first non-empty id wins.
func (s *Session) ResolveInboxID(ctx context.Context, address string) string {
	addr := strings.ToLower(strings.TrimSpace(address))
	if addr == "" {
		return ""
	}

	id, err := s.Client.FindInboxID(ctx, addr)
	if err != nil {
		log.Printf("resolveInboxID: direct lookup %s: %v", addr, err)
	} else if id != "" {
		return id
	}

	ident := Identifier{Kind: IdentifierEthereum, Value: addr}
	if r, ok := s.Client.(IdentifierResolver); ok {
		if id, err := r.ResolveIdentifier(ctx, ident); err == nil && id != "" {
			return id
		}
	}
	if r, ok := s.Client.(AddressResolver); ok {
		if id, err := r.ResolveAddress(ctx, addr); err == nil && id != "" {
			return id
		}
	}
	if r, ok := s.Client.(IdentifierFinder); ok {
		if id, err := r.FindByIdentifier(ctx, ident); err == nil && id != "" {
			return id
		}
	}
	if r, ok := s.Client.(AddressFinder); ok {
		if id, err := r.FindByAddress(ctx, addr); err == nil && id != "" {
			return id
		}
	}
	return ""
}

// ResolveInboxIDs bulk-resolves addresses to inbox ids. Addresses the
// network cannot message are filtered out first when the client can check;
// a failing check keeps everyone in (fail open). The result only contains
// resolved addresses.
func (s *Session) ResolveInboxIDs(ctx context.Context, addresses []string) map[string]string {
	addrs := normalizeAddressList(addresses)
	out := make(map[string]string, len(addrs))
	if len(addrs) == 0 {
		return out
	}

	candidates := addrs
	if checker, ok := s.Client.(CanMessageChecker); ok {
		reachable, err := checker.CanMessage(ctx, addrs)
		if err != nil {
			log.Printf("resolveInboxIDs: can-message check failed, keeping all %d: %v", len(addrs), err)
		} else {
			candidates = make([]string, 0, len(addrs))
			for _, a := range addrs {
				if reachable[a] {
					candidates = append(candidates, a)
				}
			}
		}
	}

	for _, a := range candidates {
		if id := s.ResolveInboxID(ctx, a); id != "" {
			out[a] = id
		}
	}
	return out
}

// ResolveAddresses maps inbox ids back to wallet addresses via the client's
// inbox state, preferring fresh state and falling back to the local
// replica. Total failure yields an empty map; individual inboxes without a
// wallet-shaped identifier are simply absent.
func (s *Session) ResolveAddresses(ctx context.Context, inboxIDs []string) map[string]string {
	out := make(map[string]string, len(inboxIDs))

	ids := make([]string, 0, len(inboxIDs))
	seen := make(map[string]bool, len(inboxIDs))
	for _, id := range inboxIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return out
	}

	fetcher, ok := s.Client.(InboxStateFetcher)
	if !ok {
		return out
	}
	states, err := fetcher.InboxStates(ctx, ids, true)
	if err != nil {
		log.Printf("resolveAddresses: refreshed inbox state: %v", err)
		states, err = fetcher.InboxStates(ctx, ids, false)
		if err != nil {
			log.Printf("resolveAddresses: inbox state: %v", err)
			return out
		}
	}
	for _, st := range states {
		if st.InboxID == "" {
			continue
		}
		if addr := walletIdentifier(st); addr != "" {
			out[st.InboxID] = addr
		}
	}
	return out
}

// walletIdentifier picks the wallet-shaped identity out of an inbox state,
// preferring account identifiers over the recovery identifier. Values that
// do not look like wallet addresses are ignored.
func walletIdentifier(st InboxState) string {
	for _, ident := range st.Identifiers {
		if a, err := NormalizeAddress(ident.Value); err == nil {
			return a
		}
	}
	if a, err := NormalizeAddress(st.RecoveryIdentifier.Value); err == nil {
		return a
	}
	return ""
}
