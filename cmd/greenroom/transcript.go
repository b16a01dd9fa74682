package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const transcriptTimeFormat = "2006-01-02 15:04:05"

var transcriptNameSanitizer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	"\t", "_",
	":", "_",
	" ", "_",
)

func transcriptPath(logDir, conversationID string) string {
	return filepath.Join(logDir, "chat_"+transcriptNameSanitizer.Replace(conversationID)+".log")
}

// appendTranscript writes one chat entry to the channel's local log. Best
// effort: failures are logged, never surfaced to the chat view.
func appendTranscript(logDir, conversationID string, e chatEntry, displayName string) {
	if logDir == "" {
		return
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Printf("appendTranscript: mkdir: %v", err)
		return
	}
	f, err := os.OpenFile(transcriptPath(logDir, conversationID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("appendTranscript: open: %v", err)
		return
	}
	defer f.Close()

	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\n",
		e.SentAt.UTC().Format(transcriptTimeFormat),
		e.ID, e.Sender, displayName, escapeContent(e.Content))
	if _, err := f.WriteString(line); err != nil {
		log.Printf("appendTranscript: write: %v", err)
	}
}

// loadTranscript reads up to maxLines of the most recent entries from the
// channel's local log. A missing log is not an error.
func loadTranscript(logDir, conversationID string, maxLines int) ([]chatEntry, error) {
	if logDir == "" {
		return nil, nil
	}
	lines, err := readLastNLines(transcriptPath(logDir, conversationID), maxLines)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]chatEntry, 0, len(lines))
	for _, line := range lines {
		e, ok := parseTranscriptLine(line)
		if !ok {
			log.Printf("loadTranscript: skipping malformed line %q", line)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseTranscriptLine(line string) (chatEntry, bool) {
	parts := strings.SplitN(line, "\t", 5)
	if len(parts) < 5 {
		return chatEntry{}, false
	}
	ts, err := time.Parse(transcriptTimeFormat, parts[0])
	if err != nil {
		return chatEntry{}, false
	}
	return chatEntry{
		SentAt:  ts.UTC(),
		ID:      parts[1],
		Sender:  parts[2],
		Author:  parts[3],
		Content: unescapeContent(parts[4]),
	}, true
}

// escapeContent keeps multi-line message content on a single log line.
// Backslashes first so unescaping is unambiguous.
func escapeContent(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func unescapeContent(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				sb.WriteByte('\n')
				i++
				continue
			case '\\':
				sb.WriteByte('\\')
				i++
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// readLastNLines reads up to n trailing lines without loading the whole
// file, seeking backwards in fixed-size chunks.
func readLastNLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()
	if size == 0 || n <= 0 {
		return nil, nil
	}

	const chunkSize = 8192
	var buf []byte
	offset := size
	for offset > 0 {
		readSize := int64(chunkSize)
		if offset < readSize {
			readSize = offset
		}
		offset -= readSize
		chunk := make([]byte, readSize)
		if _, err := f.ReadAt(chunk, offset); err != nil {
			return nil, err
		}
		buf = append(chunk, buf...)
		if bytes.Count(buf, []byte{'\n'}) > n {
			break
		}
	}

	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
