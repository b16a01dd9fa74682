// Package greenroom is the channel-chat layer of a livestreaming platform:
// it owns messaging sessions keyed by wallet address and the conversation
// bound to each stream, and it normalizes the network's message shapes for
// the rest of the application. The network itself is a collaborator behind
// the interfaces in this file; relaynet provides the production one.
//
// The network client surface has shifted across generations, so beyond a
// small required core everything is an optional capability probed with a
// type assertion, the way database/sql probes driver.ExecerContext before
// falling back to driver.Execer. Probe order is fixed and documented on
// each consumer.
package greenroom

import "context"

// IdentifierKind tags the shape of an identity handle passed to the
// network. The set is open; this layer only ever produces Ethereum ones.
type IdentifierKind string

const IdentifierEthereum IdentifierKind = "Ethereum"

// Identifier is a kind-tagged identity handle.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// Wallet is the caller-supplied wallet handle. A wallet that can actually
// sign implements MessageSigner as well; one that does not is rejected with
// ErrWalletNotReady.
type Wallet interface {
	Address() string
}

// MessageSigner is the signing capability of a Wallet. Wallet bridges
// return signatures in whatever shape their transport produced: raw bytes,
// a hex string with or without the 0x prefix, or a JSON-decoded numeric
// array. normalizeSignature canonicalizes them.
type MessageSigner interface {
	SignMessage(ctx context.Context, message string) (any, error)
}

// Signer is the canonical signer handed to the network once the wallet has
// been validated: an address plus a byte-producing signature.
type Signer interface {
	Address() string
	SignMessage(ctx context.Context, message string) ([]byte, error)
}

// Dialer creates network clients for a signer. Implemented by
// relaynet.Dialer and by test fakes.
type Dialer interface {
	Dial(ctx context.Context, signer Signer) (Client, error)
}

// InstallationManager is an optional Dialer capability used by the
// installation-limit recovery flow: resolve the inbox behind an address,
// list its registered installations, and revoke them with the signer.
type InstallationManager interface {
	InboxIDForAddress(ctx context.Context, address string) (string, error)
	Installations(ctx context.Context, inboxID string) ([][]byte, error)
	RevokeInstallations(ctx context.Context, signer Signer, inboxID string, installationIDs [][]byte) error
}

// Client is the required core of a network session.
type Client interface {
	// InboxID returns the inbox identity this client is bound to.
	InboxID() string

	// FindInboxID resolves a wallet address to its inbox id. An empty id
	// with a nil error means the address has never joined the network.
	FindInboxID(ctx context.Context, address string) (string, error)

	// Conversation looks up a conversation by its opaque id. A nil
	// conversation with a nil error means the client does not know it.
	Conversation(ctx context.Context, id string) (Conversation, error)

	// SyncConversations refreshes the client's consented conversations.
	SyncConversations(ctx context.Context) error
}

// Resolver generations, probed in order by Session.ResolveInboxID after the
// core FindInboxID comes back empty or failing.
type (
	// IdentifierResolver resolves a kind-tagged identifier.
	IdentifierResolver interface {
		ResolveIdentifier(ctx context.Context, ident Identifier) (string, error)
	}
	// AddressResolver resolves a raw lowercase address string.
	AddressResolver interface {
		ResolveAddress(ctx context.Context, address string) (string, error)
	}
	// IdentifierFinder is the older name for identifier resolution.
	IdentifierFinder interface {
		FindByIdentifier(ctx context.Context, ident Identifier) (string, error)
	}
	// AddressFinder is the older name for address resolution.
	AddressFinder interface {
		FindByAddress(ctx context.Context, address string) (string, error)
	}
)

// CanMessageChecker reports which addresses are reachable on the network.
// Bulk resolution uses it as a pre-filter and fails open when the check
// itself errors.
type CanMessageChecker interface {
	CanMessage(ctx context.Context, addresses []string) (map[string]bool, error)
}

// InboxState describes one inbox's registered identity material.
type InboxState struct {
	InboxID            string
	Identifiers        []Identifier
	RecoveryIdentifier Identifier
}

// InboxStateFetcher fetches identity state for inbox ids, used for reverse
// resolution. refresh asks the network for fresh state instead of the local
// replica.
type InboxStateFetcher interface {
	InboxStates(ctx context.Context, inboxIDs []string, refresh bool) ([]InboxState, error)
}

// GroupLister and ConversationLister are the fallback stages of conversation
// lookup when direct by-id misses: groups first, then everything.
type (
	GroupLister interface {
		ListGroups(ctx context.Context) ([]Conversation, error)
	}
	ConversationLister interface {
		ListConversations(ctx context.Context) ([]Conversation, error)
	}
)

// GroupMetadata is the fixed metadata applied when creating a channel.
type GroupMetadata struct {
	Name        string
	Description string
	ImageURL    string
}

// GroupCreator and GroupStarter are the two create-group generations.
type (
	GroupCreator interface {
		CreateGroup(ctx context.Context, meta GroupMetadata) (Conversation, error)
	}
	GroupStarter interface {
		NewGroup(ctx context.Context, meta GroupMetadata) (Conversation, error)
	}
)

// Conversation is the required core of a group conversation handle.
type Conversation interface {
	// ID returns the conversation's opaque network id.
	ID() string

	// Send publishes text content and returns the network's provisional
	// delivery id, which may be empty.
	Send(ctx context.Context, content string) (string, error)

	// Messages returns one page of history, newest first. The query's
	// SentBeforeNs bound is inclusive.
	Messages(ctx context.Context, q MessageQuery) ([]RawMessage, error)
}

// MessageQuery bounds one history page.
type MessageQuery struct {
	// Limit is the page size requested.
	Limit int
	// SentBeforeNs restricts results to messages sent at or before this
	// nanosecond timestamp. Zero means "from now".
	SentBeforeNs int64
}

// TextSender is the preferred text-send capability; the core Send is the
// fallback.
type TextSender interface {
	SendText(ctx context.Context, text string) (string, error)
}

// AttachmentSender publishes an inline attachment.
type AttachmentSender interface {
	SendAttachment(ctx context.Context, att Attachment) (string, error)
}

// Member is one conversation member as reported by the network.
type Member struct {
	InboxID string
}

// Membership read generations, probed in order; an empty set is assumed
// when all present ones fail.
type (
	MemberLister interface {
		Members(ctx context.Context) ([]Member, error)
	}
	LegacyMemberLister interface {
		ListMembers(ctx context.Context) ([]Member, error)
	}
	InboxMemberLister interface {
		ListMembersByInboxID(ctx context.Context) ([]string, error)
	}
)

// Membership write capabilities. Inbox-id adds are batched; identifier adds
// go one at a time so a duplicate-member rejection cannot abort the rest.
type (
	InboxMemberAdder interface {
		AddMembersByInboxID(ctx context.Context, inboxIDs []string) error
	}
	MemberAdder interface {
		AddMembers(ctx context.Context, inboxIDs []string) error
	}
	IdentifierMemberAdder interface {
		AddMemberByIdentifier(ctx context.Context, ident Identifier) error
	}
)

// StreamHandlers receives live-feed callbacks from a MessageStreamer.
// OnError reports recoverable stream hiccups, OnFail a terminal failure of
// the underlying subscription.
type StreamHandlers struct {
	OnValue func(RawMessage)
	OnError func(error)
	OnFail  func(error)
}

// MessageStreamer is the preferred live-feed capability: a push
// subscription with its own teardown.
type MessageStreamer interface {
	StreamMessages(ctx context.Context, h StreamHandlers) (stop func() error, err error)
}

// MessageIterating is the pull fallback when no push primitive exists; the
// adapter drives the iterator from a background goroutine.
type MessageIterating interface {
	IterateMessages(ctx context.Context) (MessageIterator, error)
}

// MessageIterator yields live messages until its context is cancelled or
// the network ends the feed with an error.
type MessageIterator interface {
	Next(ctx context.Context) (RawMessage, error)
}

// PendingPublisher flushes the outbound queue. Sends call it after the
// fact, fire and forget.
type PendingPublisher interface {
	PublishPending(ctx context.Context) error
}

// RawMessage is a network message as delivered, before normalization.
// Timestamp shapes vary across client generations, so SentAtNs stays loose
// here and is parsed defensively.
type RawMessage struct {
	ID            string
	SenderInboxID string
	SentAtNs      any // int64, uint64, float64, json.Number, or numeric string
	Content       string
	Attachment    *RawAttachment
}

// RawAttachment mirrors the network's inline attachment payload.
type RawAttachment struct {
	Filename string
	MimeType string
	DataURL  string
	Size     int64
}
