package greenroom

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Stream subscribes onMessage to the conversation's live feed. Each
// delivered message is normalized first; empties are dropped. The client's
// push subscription is preferred, with the pull iterator driven from a
// background goroutine as the fallback.
//
// The returned cancel is idempotent, safe to call during delivery, and
// stops further onMessage calls even when the underlying teardown fails.
// Stream errors are logged and swallowed; the subscription retries
// internally, and a dead iterator simply needs a new Stream call.
func Stream(conv Conversation, onMessage func(Message)) (func(), error) {
	var closed atomic.Bool
	deliver := func(raw RawMessage) {
		if closed.Load() {
			return
		}
		m, ok := normalizeMessage(raw)
		if !ok {
			return
		}
		if closed.Load() {
			return
		}
		onMessage(m)
	}

	ctx, stop := context.WithCancel(context.Background())

	var teardown func() error
	switch c := conv.(type) {
	case MessageStreamer:
		t, err := c.StreamMessages(ctx, StreamHandlers{
			OnValue: deliver,
			OnError: func(err error) {
				log.Printf("stream: %s: stream error: %v", conv.ID(), err)
			},
			OnFail: func(err error) {
				log.Printf("stream: %s: stream failed: %v", conv.ID(), err)
			},
		})
		if err != nil {
			stop()
			return nil, fmt.Errorf("stream %s: subscribe: %w", conv.ID(), err)
		}
		teardown = t
	case MessageIterating:
		it, err := c.IterateMessages(ctx)
		if err != nil {
			stop()
			return nil, fmt.Errorf("stream %s: iterate: %w", conv.ID(), err)
		}
		go func() {
			for {
				raw, err := it.Next(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Printf("stream: %s: iterator stopped: %v", conv.ID(), err)
					}
					return
				}
				deliver(raw)
			}
		}()
	default:
		stop()
		return nil, fmt.Errorf("stream %s: conversation exposes no streaming primitive", conv.ID())
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			closed.Store(true)
			stop()
			if teardown != nil {
				if err := teardown(); err != nil {
					log.Printf("stream: %s: teardown: %v", conv.ID(), err)
				}
			}
		})
	}
	return cancel, nil
}
