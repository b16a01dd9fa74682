package greenroom

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// SelfSender marks locally echoed messages built by the send path before
// the network delivers the authoritative copy.
const SelfSender = "self"

// AttachmentKind distinguishes renderable images from opaque files.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is an inline attachment carried by a message. DataURL holds
// the full base64 data URL so consumers can render without another fetch.
type Attachment struct {
	Kind     AttachmentKind
	Filename string
	MimeType string
	DataURL  string
	Size     int64
}

// Message is the canonical chat message shape used across history, the
// live feed, and sends.
type Message struct {
	ID            string
	SentAt        time.Time
	SenderInboxID string
	Content       string
	Attachment    *Attachment
}

// DedupKey collapses retransmissions of the same message across history and
// the live feed. Two identical texts from one sender within the same second
// collide; harmless for a chat feed.
func (m Message) DedupKey() string {
	return m.SenderInboxID + "\t" + m.Content + "\t" + strconv.FormatInt(m.SentAt.Unix(), 10)
}

// normalizeMessage converts a raw network message into the canonical shape.
// ok is false when the message carries neither text nor an attachment and
// should be dropped.
func normalizeMessage(raw RawMessage) (Message, bool) {
	m := Message{
		ID:            raw.ID,
		SenderInboxID: raw.SenderInboxID,
		Content:       strings.TrimSpace(raw.Content),
	}
	if ns, ok := sentAtNanos(raw.SentAtNs); ok {
		m.SentAt = time.Unix(0, ns).UTC()
	}
	if raw.Attachment != nil {
		att := Attachment{
			Kind:     attachmentKind(raw.Attachment.MimeType),
			Filename: raw.Attachment.Filename,
			MimeType: raw.Attachment.MimeType,
			DataURL:  raw.Attachment.DataURL,
			Size:     raw.Attachment.Size,
		}
		m.Attachment = &att
		if m.Content == "" {
			m.Content = attachmentLabel(att)
		}
	}
	if m.Content == "" {
		return Message{}, false
	}
	return m, true
}

func attachmentKind(mimeType string) AttachmentKind {
	if strings.HasPrefix(mimeType, "image/") {
		return AttachmentImage
	}
	return AttachmentFile
}

// attachmentLabel is the content stand-in for messages that are only an
// attachment, e.g. "[Image] selfie.png".
func attachmentLabel(att Attachment) string {
	label := "[File]"
	if att.Kind == AttachmentImage {
		label = "[Image]"
	}
	if att.Filename == "" {
		return label
	}
	return label + " " + att.Filename
}

// sentAtNanos parses the network's nanosecond timestamp out of whatever
// shape this client generation delivered it in.
func sentAtNanos(v any) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case int64:
		return t, true
	case int:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t < math.MinInt64 || t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return sentAtNanos(f)
		}
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return sentAtNanos(f)
		}
		return 0, false
	default:
		return 0, false
	}
}
