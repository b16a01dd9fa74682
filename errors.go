package greenroom

import (
	"context"
	"errors"
	"strings"
)

// Classified failures of the chat layer. Callers match with errors.Is;
// anything else coming out of this package is a wrapped network error.
var (
	ErrInvalidAddress            = errors.New("invalid wallet address")
	ErrWalletNotReady            = errors.New("wallet is not ready to sign")
	ErrInstallationLimitExceeded = errors.New("installation limit reached, close other sessions and reconnect")
	ErrSessionTimeout            = errors.New("session creation timed out, close other sessions and reconnect")
	ErrConversationCreateFailed  = errors.New("conversation create failed")
	ErrUnsupportedAttachmentType = errors.New("unsupported attachment type")
	ErrAttachmentTooLarge        = errors.New("attachment exceeds the 1 MiB limit")
)

// transientPhrases is the vocabulary of failures that resolve on their own:
// sync-cursor races, duplicate welcome processing, group-membership repeats,
// timeouts, the browser storage layer, and the client runtime's reentrancy
// guard.
var transientPhrases = []string{
	"cursor",
	"already processed",
	"welcome with cursor",
	"skipping welcome",
	"already in group",
	"timed out",
	"timeout",
	"temporary",
	"transient",
	"network",
	"opfs",
	"recursive use of an object",
}

// IsTransient reports whether err is retryable network/sync noise rather
// than a real failure. Matching is a case-insensitive substring check over
// the rendered error chain.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// installationLimitPhrases identify the identity-quota failure raised during
// client creation, e.g. "already registered 10/10 installations".
var installationLimitPhrases = []string{
	"already registered",
	"installation",
}

func isInstallationLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range installationLimitPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// isCreationTimeout matches creation failures caused by timeouts or the
// client's local storage layer.
func isCreationTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "opfs")
}

// safeAddFailures are membership-add errors that mean the member is
// effectively already there. The relay phrases these several ways.
var safeAddFailures = []string{
	"already",
	"duplicate",
	"cannot add self",
}

func isSafeAddFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range safeAddFailures {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
