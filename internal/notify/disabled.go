package notify

import (
	"context"
	"errors"
)

// Disabled is a Messenger used when the chat backend could not be set up.
// Every send fails with the recorded reason; the pipeline logs and
// continues, so a broken bot credential degrades notifications without
// stopping ingestion.
type Disabled struct {
	Reason error
}

func (d Disabled) SendPhoto(context.Context, int64, string, string) error {
	if d.Reason != nil {
		return d.Reason
	}
	return errors.New("messaging disabled")
}

var _ Messenger = Disabled{}
