package main

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestEscapeContentRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"plain", "hello world"},
		{"newlines", "line one\nline two\nline three"},
		{"backslashes", `c:\path\to\file`},
		{"backslash before n", `literal \n stays literal`},
		{"mixed", "a\\\nb"},
		{"empty", ""},
		{"trailing newline", "ends with\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			escaped := escapeContent(tt.in)
			if strings.Contains(escaped, "\n") {
				t.Errorf("escapeContent(%q) = %q still contains a newline", tt.in, escaped)
			}
			if got := unescapeContent(escaped); got != tt.in {
				t.Errorf("round trip = %q, want %q", got, tt.in)
			}
		})
	}
}

func TestTranscriptPath(t *testing.T) {
	got := transcriptPath("/logs", "ab/cd:ef gh")
	if strings.ContainsAny(got[len("/logs/"):], "/: ") {
		t.Errorf("transcriptPath did not sanitize: %q", got)
	}
	if !strings.HasPrefix(got, "/logs/chat_") || !strings.HasSuffix(got, ".log") {
		t.Errorf("transcriptPath = %q, want /logs/chat_*.log", got)
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	convID := "conv-1"
	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	entries := []chatEntry{
		{ID: "m1", Sender: "inbox-a", Content: "first message", SentAt: base},
		{ID: "m2", Sender: "inbox-b", Content: "multi\nline\ncontent", SentAt: base.Add(time.Second)},
		{ID: "m3", Sender: "inbox-a", Content: `with \backslash`, SentAt: base.Add(2 * time.Second)},
	}
	names := []string{"alice", "bob", "alice"}
	for i, e := range entries {
		appendTranscript(dir, convID, e, names[i])
	}

	got, err := loadTranscript(dir, convID, 100)
	if err != nil {
		t.Fatalf("loadTranscript: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("loaded %d entries, want %d", len(got), len(entries))
	}
	for i, e := range got {
		if e.ID != entries[i].ID {
			t.Errorf("entry %d ID = %q, want %q", i, e.ID, entries[i].ID)
		}
		if e.Sender != entries[i].Sender {
			t.Errorf("entry %d Sender = %q, want %q", i, e.Sender, entries[i].Sender)
		}
		if e.Author != names[i] {
			t.Errorf("entry %d Author = %q, want %q", i, e.Author, names[i])
		}
		if e.Content != entries[i].Content {
			t.Errorf("entry %d Content = %q, want %q", i, e.Content, entries[i].Content)
		}
		if !e.SentAt.Equal(entries[i].SentAt) {
			t.Errorf("entry %d SentAt = %v, want %v", i, e.SentAt, entries[i].SentAt)
		}
	}
}

func TestLoadTranscriptMaxLines(t *testing.T) {
	dir := t.TempDir()
	convID := "conv-2"
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 100; i++ {
		appendTranscript(dir, convID, chatEntry{
			ID:      fmt.Sprintf("m%d", i),
			Sender:  "inbox-a",
			Content: fmt.Sprintf("message %d", i),
			SentAt:  base.Add(time.Duration(i) * time.Second),
		}, "alice")
	}

	got, err := loadTranscript(dir, convID, 10)
	if err != nil {
		t.Fatalf("loadTranscript: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("loaded %d entries, want 10", len(got))
	}
	if got[0].Content != "message 90" {
		t.Errorf("first entry = %q, want %q", got[0].Content, "message 90")
	}
	if got[9].Content != "message 99" {
		t.Errorf("last entry = %q, want %q", got[9].Content, "message 99")
	}
}

// Exercises the backward chunked reads with a file much larger than one
// chunk.
func TestLoadTranscriptLargeFile(t *testing.T) {
	dir := t.TempDir()
	convID := "conv-3"
	path := transcriptPath(dir, convID)

	var sb strings.Builder
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&sb, "%s\tm%d\tinbox-a\talice\tmessage number %d with some padding text\n",
			base.Format(transcriptTimeFormat), i, i)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := loadTranscript(dir, convID, 500)
	if err != nil {
		t.Fatalf("loadTranscript: %v", err)
	}
	if len(got) != 500 {
		t.Fatalf("loaded %d entries, want 500", len(got))
	}
	if got[0].ID != "m4500" {
		t.Errorf("first entry ID = %q, want m4500", got[0].ID)
	}
	if got[499].ID != "m4999" {
		t.Errorf("last entry ID = %q, want m4999", got[499].ID)
	}
}

func TestLoadTranscriptMissing(t *testing.T) {
	got, err := loadTranscript(t.TempDir(), "never-written", 100)
	if err != nil {
		t.Fatalf("loadTranscript on missing file: %v", err)
	}
	if got != nil {
		t.Errorf("loadTranscript on missing file = %v, want nil", got)
	}
}

func TestTranscriptDisabled(t *testing.T) {
	// Empty log dir disables both writing and reading.
	appendTranscript("", "conv", chatEntry{Content: "x", SentAt: time.Now()}, "alice")
	got, err := loadTranscript("", "conv", 100)
	if err != nil || got != nil {
		t.Errorf("loadTranscript with empty dir = %v, %v; want nil, nil", got, err)
	}
}
