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

package massindexing

import (
	"context"
	"runtime/debug"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	enterrors "github.com/syndex/syndex/entities/errors"
)

// runnable is a worker body with explicit cleanup hooks. Exactly one hook
// runs per termination: cleanupOnInterruption when the context was
// cancelled, cleanupOnFailure when the body returned any other error or
// panicked. Neither hook runs on normal completion; the body releases its
// own resources on that path.
type runnable interface {
	// name is the operation reported on failure, e.g. "Entity loading".
	name() string

	// group is the reporting name of the type group the worker serves.
	group() string

	run(ctx context.Context) error

	cleanupOnInterruption()
	cleanupOnFailure()
}

// runFailureHandled executes a worker body inside the uniform failure
// envelope. Interruption is the expected shutdown path: cleanup runs, no
// failure is recorded, the context error propagates so the errgroup stops
// siblings. Any other error (or a recovered panic) runs the failure
// cleanup, is reported once to the notifier, and propagates.
func runFailureHandled(ctx context.Context, r runnable, notifier *notifier, logger logrus.FieldLogger) error {
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.WithField("panic", rec).
					Errorf("recovered from panic during %s: %v", r.name(), rec)
				debug.PrintStack()
				err = errors.Errorf("panic occurred during %s: %v", r.name(), rec)
			}
		}()

		return r.run(ctx)
	}()

	switch {
	case err == nil:
		return nil
	case enterrors.IsInterruption(err):
		r.cleanupOnInterruption()
		return err
	default:
		r.cleanupOnFailure()
		notifier.reportRunnableFailure(r.group(), r.name(), err)
		return err
	}
}
