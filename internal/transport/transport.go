// Package transport wraps the chat gateway the pipeline delivers through.
// The gateway itself (send/receive primitives, session handling) is an
// external collaborator; only the narrow send contract lives here.
package transport

import "context"

// Sender delivers one rendered message to one recipient. Failures are
// *domain.SendError values distinguishing rate-limited-with-retry-after,
// transient-server-error, and permanent-bad-request.
type Sender interface {
	Send(ctx context.Context, recipientID, text string) (messageID string, err error)
}
