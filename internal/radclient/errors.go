package radclient

import (
	"errors"
	"fmt"

	"github.com/dlp-radius/goradius/internal/radius"
)

// BadReplyReason classifies why SendPacket rejected a reply that otherwise
// looked like it was meant for the outstanding request.
type BadReplyReason string

const (
	// ReasonWrongID is reserved for a reply whose identifier does not
	// match the outstanding request. SendPacket never returns this: a
	// wrong-identifier datagram is ordinary transport noise (a stray
	// reply to an earlier, already-timed-out retry, or a reply meant
	// for a different transaction sharing the socket) and is discarded
	// silently, not surfaced as an error. The constant remains for
	// callers pattern-matching on BadReplyError.Reason.
	ReasonWrongID BadReplyReason = "wrong-id"

	// ReasonAuthMismatch means the reply's Response Authenticator or
	// Message-Authenticator did not validate against the shared secret.
	ReasonAuthMismatch BadReplyReason = "auth-mismatch"

	// ReasonMalformed means the reply failed to decode, or decoded to
	// a packet code the request does not expect as a reply.
	ReasonMalformed BadReplyReason = "malformed"
)

// BadReplyError indicates a datagram that carried the expected identifier
// and source address failed validation.
type BadReplyError struct {
	Reason BadReplyReason
	Err    error
}

func (e *BadReplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("radclient: bad reply (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("radclient: bad reply (%s)", e.Reason)
}

func (e *BadReplyError) Unwrap() error { return e.Err }

// TimeoutError indicates SendPacket exhausted its retransmission budget
// (retries x timeout) without receiving a valid reply.
type TimeoutError struct {
	Dest       string
	Attempts   int
	Identifier uint8
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("radclient: timeout waiting for reply from %s (id=%d, %d attempts)",
		e.Dest, e.Identifier, e.Attempts)
}

// ErrNoHostFound indicates the configured server address could not be
// resolved or bound.
var ErrNoHostFound = errors.New("radclient: no host found")

// expectedReplyCodes returns the set of packet codes CreateXPacket's
// request code may legitimately receive in reply.
func expectedReplyCodes(reqCode radius.Code) []radius.Code {
	switch reqCode {
	case radius.CodeAccessRequest:
		return []radius.Code{radius.CodeAccessAccept, radius.CodeAccessReject, radius.CodeAccessChallenge}
	case radius.CodeAccountingRequest:
		return []radius.Code{radius.CodeAccountingResponse}
	case radius.CodeCoARequest:
		return []radius.Code{radius.CodeCoAACK, radius.CodeCoANAK}
	case radius.CodeDisconnectRequest:
		return []radius.Code{radius.CodeDisconnectACK, radius.CodeDisconnectNAK}
	default:
		return nil
	}
}

func isExpectedReply(reqCode, replyCode radius.Code) bool {
	for _, c := range expectedReplyCodes(reqCode) {
		if c == replyCode {
			return true
		}
	}
	return false
}
