package greenroom

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// histPage builds a descending page of text messages. Message k carries
// timestamp k*1000ns, so message numbers order the same way timestamps do.
func histPage(from, to int) []RawMessage {
	var out []RawMessage
	for k := from; k >= to; k-- {
		out = append(out, rawText(fmt.Sprintf("m%04d", k), "inbox-a", fmt.Sprintf("msg %d", k), int64(k)*1000))
	}
	return out
}

// servePages feeds conv.Messages from fixed pages, honoring the requested
// limit, with an optional error injected at a given fetch (1-based).
func servePages(conv *fakeConv, pages [][]RawMessage, errAt int, err error) {
	fetch := 0
	conv.pages = func(q MessageQuery) ([]RawMessage, error) {
		fetch++
		if errAt > 0 && fetch == errAt {
			return nil, err
		}
		if fetch > len(pages) {
			return nil, nil
		}
		p := pages[fetch-1]
		if len(p) > q.Limit {
			p = p[:q.Limit]
		}
		return p, nil
	}
}

func assertAscending(t *testing.T, msgs []Message) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		if msgs[i].SentAt.Before(msgs[i-1].SentAt) {
			t.Fatalf("messages not ascending at %d: %v after %v", i, msgs[i].SentAt, msgs[i-1].SentAt)
		}
	}
}

func TestLoadHistoryTruncatesFromOldestEnd(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	servePages(conv, [][]RawMessage{histPage(600, 401), histPage(400, 201), histPage(200, 1)}, 0, nil)

	msgs, err := LoadHistory(context.Background(), conv, 500)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(msgs) != 500 {
		t.Fatalf("len = %d, want exactly 500", len(msgs))
	}
	assertAscending(t, msgs)
	if msgs[0].Content != "msg 101" {
		t.Errorf("oldest kept = %q, want %q (older end truncated)", msgs[0].Content, "msg 101")
	}
	if msgs[len(msgs)-1].Content != "msg 600" {
		t.Errorf("newest = %q, want %q", msgs[len(msgs)-1].Content, "msg 600")
	}

	queries := conv.recordedQueries()
	if len(queries) != 3 {
		t.Fatalf("page fetches = %d, want 3", len(queries))
	}
	if queries[0].Limit != 200 || queries[2].Limit != 100 {
		t.Errorf("page limits = %d,%d,%d, want 200,200,100", queries[0].Limit, queries[1].Limit, queries[2].Limit)
	}
	if queries[0].SentBeforeNs != 0 {
		t.Errorf("first cursor = %d, want 0 (from now)", queries[0].SentBeforeNs)
	}
	if want := int64(401*1000 - 1); queries[1].SentBeforeNs != want {
		t.Errorf("second cursor = %d, want %d (oldest seen minus 1ns)", queries[1].SentBeforeNs, want)
	}
	if want := int64(201*1000 - 1); queries[2].SentBeforeNs != want {
		t.Errorf("third cursor = %d, want %d", queries[2].SentBeforeNs, want)
	}
}

func TestLoadHistoryTransientFailureReturnsPartial(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	servePages(conv, [][]RawMessage{histPage(600, 401), histPage(400, 201)}, 2, errors.New("group message already processed"))

	msgs, err := LoadHistory(context.Background(), conv, 500)
	if err != nil {
		t.Fatalf("LoadHistory returned error for transient failure: %v", err)
	}
	if len(msgs) != 200 {
		t.Fatalf("len = %d, want the 200 collected before the failure", len(msgs))
	}
	assertAscending(t, msgs)
	if msgs[0].Content != "msg 401" || msgs[199].Content != "msg 600" {
		t.Errorf("partial range = %q..%q, want msg 401..msg 600", msgs[0].Content, msgs[199].Content)
	}
}

func TestLoadHistoryRealFailurePropagates(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	cause := errors.New("insufficient funds")
	servePages(conv, nil, 1, cause)

	_, err := LoadHistory(context.Background(), conv, 100)
	if !errors.Is(err, cause) {
		t.Fatalf("LoadHistory error = %v, want wrapped %v", err, cause)
	}
}

func TestLoadHistoryStopsOnShortPage(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	servePages(conv, [][]RawMessage{histPage(37, 1)}, 0, nil)

	msgs, err := LoadHistory(context.Background(), conv, 500)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(msgs) != 37 {
		t.Errorf("len = %d, want 37", len(msgs))
	}
	if got := len(conv.recordedQueries()); got != 1 {
		t.Errorf("page fetches = %d, want 1 (short page ends history)", got)
	}
}

func TestLoadHistoryEmptyFeed(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	msgs, err := LoadHistory(context.Background(), conv, 500)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("len = %d, want 0", len(msgs))
	}
}

func TestLoadHistoryStopsWithoutParseableTimestamps(t *testing.T) {
	page := make([]RawMessage, 200)
	for i := range page {
		page[i] = RawMessage{ID: fmt.Sprintf("m%d", i), SenderInboxID: "inbox-a", Content: "hi", SentAtNs: "not a time"}
	}
	conv := &fakeConv{id: "conv-1"}
	servePages(conv, [][]RawMessage{page, histPage(600, 401)}, 0, nil)

	msgs, err := LoadHistory(context.Background(), conv, 500)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(msgs) != 200 {
		t.Errorf("len = %d, want only the first page", len(msgs))
	}
	if got := len(conv.recordedQueries()); got != 1 {
		t.Errorf("page fetches = %d, want 1 (cannot continue without a cursor)", got)
	}
}

func TestLoadHistoryDropsAndDedups(t *testing.T) {
	page := []RawMessage{
		rawText("m3", "inbox-a", "three", 30),
		rawText("m3", "inbox-a", "three again", 30),
		rawText("m2", "inbox-a", "   ", 20),
		{ID: "m1", SenderInboxID: "inbox-b", SentAtNs: int64(10), Attachment: &RawAttachment{Filename: "pic.png", MimeType: "image/png"}},
	}
	conv := &fakeConv{id: "conv-1"}
	servePages(conv, [][]RawMessage{page}, 0, nil)

	msgs, err := LoadHistory(context.Background(), conv, 50)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2 (duplicate and empty dropped): %v", len(msgs), msgs)
	}
	if msgs[0].Content != "[Image] pic.png" {
		t.Errorf("msgs[0].Content = %q, want attachment label", msgs[0].Content)
	}
	if msgs[1].ID != "m3" || msgs[1].Content != "three" {
		t.Errorf("msgs[1] = %+v, want first m3 kept", msgs[1])
	}
}

func TestLoadHistoryNeverExceedsLimit(t *testing.T) {
	// A page that ignores the requested limit must still not push the
	// result past the caller's cap.
	conv := &fakeConv{id: "conv-1"}
	conv.pages = func(q MessageQuery) ([]RawMessage, error) {
		return histPage(10, 1), nil
	}

	msgs, err := LoadHistory(context.Background(), conv, 5)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("len = %d, want 5", len(msgs))
	}
	if msgs[0].Content != "msg 6" || msgs[4].Content != "msg 10" {
		t.Errorf("kept %q..%q, want msg 6..msg 10 (newest kept)", msgs[0].Content, msgs[4].Content)
	}
}

func TestLoadHistoryClampsLimit(t *testing.T) {
	for _, limit := range []int{0, -7, 99999} {
		conv := &fakeConv{id: "conv-1"}
		servePages(conv, [][]RawMessage{histPage(3, 1)}, 0, nil)
		msgs, err := LoadHistory(context.Background(), conv, limit)
		if err != nil {
			t.Fatalf("LoadHistory(limit=%d): %v", limit, err)
		}
		if len(msgs) != 3 {
			t.Errorf("LoadHistory(limit=%d) len = %d, want 3", limit, len(msgs))
		}
		if q := conv.recordedQueries(); len(q) != 1 || q[0].Limit != historyPageSize {
			t.Errorf("LoadHistory(limit=%d) first page limit = %v, want %d", limit, q, historyPageSize)
		}
	}
}
