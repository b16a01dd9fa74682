package relaynet

import (
	"strconv"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/offstage-live/greenroom"
)

// eventToRaw converts a chat event into the layer's raw message shape.
// Relay timestamps are seconds; the layer works in nanoseconds. Attachment
// events keep the data URL in the content, so it moves into the attachment
// and the content empties out for normalization to label.
func eventToRaw(evt *nostr.Event) greenroom.RawMessage {
	raw := greenroom.RawMessage{
		ID:            evt.ID,
		SenderInboxID: evt.PubKey,
		SentAtNs:      int64(evt.CreatedAt) * int64(time.Second),
		Content:       evt.Content,
	}
	for _, tag := range evt.Tags {
		if len(tag) < 2 || tag[0] != "file" {
			continue
		}
		att := &greenroom.RawAttachment{
			Filename: tag[1],
			DataURL:  evt.Content,
		}
		if len(tag) >= 3 {
			att.MimeType = tag[2]
		}
		if len(tag) >= 4 {
			if n, err := strconv.ParseInt(tag[3], 10, 64); err == nil {
				att.Size = n
			}
		}
		raw.Attachment = att
		raw.Content = ""
		break
	}
	return raw
}

// firstTagValue returns the second element of the first tag with the given
// name, or empty.
func firstTagValue(evt *nostr.Event, name string) string {
	for _, tag := range evt.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}
