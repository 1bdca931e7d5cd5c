//                      _
//  ___ _   _ _ __   __| | _____  __
// / __| | | | '_ \ / _` |/ _ \ \/ /
// \__ \ |_| | | | | (_| |  __/>  <
// |___/\__, |_| |_|\__,_|\___/_/\_\
//      |___/
//
//  Copyright © 2019 - 2026 Syndex B.V. All rights reserved.
//
//  CONTACT: hello@syndex.io
//

package errors

import (
	"context"
	"errors"
	"fmt"
)

// BackendUnavailable marks errors where the search backend cannot accept
// writes at all, as opposed to rejecting one particular document. Pipeline
// workers treat it as run-ending.
var BackendUnavailable = errors.New("backend unavailable")

func NewBackendUnavailable(msg string) error {
	return fmt.Errorf("%s: %w", msg, BackendUnavailable)
}

func IsBackendUnavailable(err error) bool {
	return errors.Is(err, BackendUnavailable)
}

// IsInterruption reports whether err means cooperative shutdown rather
// than a failure. Interrupted work cleans up and stops, but nothing is
// reported as failed.
func IsInterruption(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
