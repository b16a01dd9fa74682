package greenroom

import (
	"context"
	"fmt"
	"log"
	"sort"
)

const (
	historyPageSize = 200
	historyMaxLimit = 5000
)

// LoadHistory fetches up to limit past messages from the conversation,
// returned ascending by send time. A limit of zero or less means the
// maximum of 5000; larger values are clamped to it.
//
// The network only answers "messages sent at or before X", so pages are
// fetched newest-first, each page's cursor set one nanosecond before the
// oldest timestamp of the previous page, and the accumulated result is
// sorted forward at the end. A transient page failure ends paging early and
// returns what was collected; anything else is a real error.
func LoadHistory(ctx context.Context, conv Conversation, limit int) ([]Message, error) {
	if limit <= 0 || limit > historyMaxLimit {
		limit = historyMaxLimit
	}

	var (
		collected []RawMessage
		cursorNs  int64
	)
	pages := (limit + historyPageSize - 1) / historyPageSize
	remaining := limit
	for page := 1; page <= pages && remaining > 0; page++ {
		want := historyPageSize
		if remaining < want {
			want = remaining
		}
		batch, err := conv.Messages(ctx, MessageQuery{Limit: want, SentBeforeNs: cursorNs})
		if err != nil {
			if IsTransient(err) {
				log.Printf("loadHistory: %s: transient failure on page %d, returning %d collected: %v", conv.ID(), page, len(collected), err)
				break
			}
			return nil, fmt.Errorf("load history %s: page %d: %w", conv.ID(), page, err)
		}
		if len(batch) == 0 {
			break
		}
		collected = append(collected, batch...)
		remaining -= len(batch)

		oldest, ok := oldestSentAt(batch)
		if !ok {
			log.Printf("loadHistory: %s: page %d has no parseable timestamps, stopping", conv.ID(), page)
			break
		}
		if len(batch) < want {
			break
		}
		cursorNs = oldest - 1
	}

	msgs := finalizeHistory(collected)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// oldestSentAt returns the minimum parseable timestamp in a page. ok is
// false when no message yields one, in which case paging cannot continue
// safely.
func oldestSentAt(batch []RawMessage) (int64, bool) {
	var (
		oldest int64
		found  bool
	)
	for _, raw := range batch {
		ns, ok := sentAtNanos(raw.SentAtNs)
		if !ok {
			continue
		}
		if !found || ns < oldest {
			oldest = ns
			found = true
		}
	}
	return oldest, found
}

// finalizeHistory normalizes the accumulated pages, drops empties,
// deduplicates by message id, and sorts ascending by send time.
func finalizeHistory(raws []RawMessage) []Message {
	msgs := make([]Message, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		m, ok := normalizeMessage(raw)
		if !ok {
			continue
		}
		if m.ID != "" {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
		}
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
	return msgs
}
