// Package notify sends detection results to a user's chat target.
package notify

import "context"

// Messenger delivers an annotated image with a caption to a per-user chat
// target. A failed delivery must never abort pipeline processing; callers
// log the error and move on.
type Messenger interface {
	SendPhoto(ctx context.Context, chatID int64, path, caption string) error
}
