package greenroom

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxAttachmentBytes is the network's hard cap on inline attachments.
const maxAttachmentBytes = 1 << 20

const publishTimeout = 10 * time.Second

// SendText publishes trimmed text to the conversation and returns a locally
// echoed message; the authoritative copy arrives later over the live feed.
// Empty or whitespace-only text is a no-op returning nil, nil.
func SendText(ctx context.Context, conv Conversation, text string) (*Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	var (
		id  string
		err error
	)
	if sender, ok := conv.(TextSender); ok {
		id, err = sender.SendText(ctx, trimmed)
	} else {
		id, err = conv.Send(ctx, trimmed)
	}
	if err != nil {
		return nil, fmt.Errorf("send text to %s: %w", conv.ID(), err)
	}
	publishPending(conv)
	return localEcho(id, trimmed, nil), nil
}

// ImageFile is a caller-supplied image to attach.
type ImageFile struct {
	Filename string
	MimeType string
	Data     []byte
}

// SendImage validates, encodes, and publishes a single image attachment.
// Only image/* types are accepted and the encoded payload must fit the
// network's 1 MiB cap; both checks run before anything touches the network.
// An empty MimeType is sniffed from the data.
func SendImage(ctx context.Context, conv Conversation, file ImageFile) (*Message, error) {
	mimeType := file.MimeType
	if mimeType == "" && len(file.Data) > 0 {
		mimeType = http.DetectContentType(file.Data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("send image %q: type %q: %w", file.Filename, mimeType, ErrUnsupportedAttachmentType)
	}
	if len(file.Data) > maxAttachmentBytes {
		return nil, fmt.Errorf("send image %q: %d bytes: %w", file.Filename, len(file.Data), ErrAttachmentTooLarge)
	}

	att := Attachment{
		Kind:     AttachmentImage,
		Filename: file.Filename,
		MimeType: mimeType,
		DataURL:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(file.Data),
		Size:     int64(len(file.Data)),
	}
	sender, ok := conv.(AttachmentSender)
	if !ok {
		return nil, fmt.Errorf("send image %q: conversation %s does not accept attachments", file.Filename, conv.ID())
	}
	id, err := sender.SendAttachment(ctx, att)
	if err != nil {
		return nil, fmt.Errorf("send image %q to %s: %w", file.Filename, conv.ID(), err)
	}
	publishPending(conv)
	return localEcho(id, "", &att), nil
}

// localEcho builds the self-authored message returned from sends. The
// network's provisional delivery id is kept when present; otherwise a
// random one stands in until the authoritative copy arrives.
func localEcho(id, content string, att *Attachment) *Message {
	if id == "" {
		id = uuid.NewString()
	}
	m := Message{
		ID:            id,
		SentAt:        time.Now().UTC(),
		SenderInboxID: SelfSender,
		Content:       content,
		Attachment:    att,
	}
	if m.Content == "" && att != nil {
		m.Content = attachmentLabel(*att)
	}
	return &m
}

// publishPending nudges the network to flush its outbound queue, fire and
// forget. Delivery is retried by the network itself, so a failure here is
// only noise.
func publishPending(conv Conversation) {
	publisher, ok := conv.(PendingPublisher)
	if !ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := publisher.PublishPending(ctx); err != nil {
			log.Printf("publishPending: %s: %v", conv.ID(), err)
		}
	}()
}
