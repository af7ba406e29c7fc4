package pipeline

import "errors"

// Step errors are terminal for the current item only: the file is removed
// and the coordinator moves on to the next queued item. None of them ever
// aborts the coordinator loop.
var (
	ErrUserNotFound    = errors.New("upload owner not in configuration")
	ErrDisarmed        = errors.New("user is disarmed")
	ErrOutsideSchedule = errors.New("outside working hours")
	ErrDetectionFailed = errors.New("object detection failed")
)
