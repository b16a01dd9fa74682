package greenroom

import (
	"context"
	"fmt"
	"log"
)

// defaultChannelIcon is the avatar applied to every stream channel.
const defaultChannelIcon = "https://static.offstage.live/channel-icon.png"

// Locate finds the conversation with the given id. Lookup is staged: direct
// by id, then a scan of the group list, then a scan of everything. A stage
// failing only means the next stage runs; the network's indices can lag
// right after membership changes. Returns nil when no stage finds it.
func (s *Session) Locate(ctx context.Context, conversationID string) Conversation {
	if conversationID == "" {
		return nil
	}

	conv, err := s.Client.Conversation(ctx, conversationID)
	if err != nil {
		log.Printf("locate: direct lookup %s: %v", conversationID, err)
	} else if conv != nil {
		return conv
	}

	if lister, ok := s.Client.(GroupLister); ok {
		convs, err := lister.ListGroups(ctx)
		if err != nil {
			log.Printf("locate: list groups: %v", err)
		} else if c := findByID(convs, conversationID); c != nil {
			return c
		}
	}

	if lister, ok := s.Client.(ConversationLister); ok {
		convs, err := lister.ListConversations(ctx)
		if err != nil {
			log.Printf("locate: list conversations: %v", err)
		} else if c := findByID(convs, conversationID); c != nil {
			return c
		}
	}
	return nil
}

func findByID(convs []Conversation, id string) Conversation {
	for _, c := range convs {
		if c != nil && c.ID() == id {
			return c
		}
	}
	return nil
}

// Create makes the group conversation for a stream, with fixed metadata
// derived from the stream's display name and playback id. The client's
// newer create method is preferred, the older one is the fallback.
func (s *Session) Create(ctx context.Context, displayName, playbackID string) (Conversation, error) {
	meta := GroupMetadata{
		Name:        displayName,
		Description: "Live chat for stream " + playbackID,
		ImageURL:    defaultChannelIcon,
	}

	var (
		conv Conversation
		err  error
	)
	switch c := s.Client.(type) {
	case GroupCreator:
		conv, err = c.CreateGroup(ctx, meta)
	case GroupStarter:
		conv, err = c.NewGroup(ctx, meta)
	default:
		return nil, fmt.Errorf("create conversation for %s: client cannot create groups: %w", playbackID, ErrConversationCreateFailed)
	}
	if err != nil {
		return nil, fmt.Errorf("create conversation for %s: %w: %v", playbackID, ErrConversationCreateFailed, err)
	}
	if conv == nil || conv.ID() == "" {
		return nil, fmt.Errorf("create conversation for %s: network returned no id: %w", playbackID, ErrConversationCreateFailed)
	}
	return conv, nil
}
