// File: internal/taskqueue/errors.go
package taskqueue

import "errors"

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("taskqueue: executor closed")
