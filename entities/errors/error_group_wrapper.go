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
	"runtime/debug"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrorGroupWrapper is a custom type that embeds errgroup.Group and adds
// panic recovery to every spawned goroutine. A recovered panic is turned
// into a regular error, so the group cancels its context and Wait surfaces
// the failure like any other.
type ErrorGroupWrapper struct {
	*errgroup.Group
	logger logrus.FieldLogger
}

// NewErrorGroupWrapper creates a new ErrorGroupWrapper.
func NewErrorGroupWrapper(logger logrus.FieldLogger) *ErrorGroupWrapper {
	return &ErrorGroupWrapper{
		Group:  new(errgroup.Group),
		logger: logger,
	}
}

// NewErrorGroupWithContextWrapper behaves like errgroup.WithContext: the
// returned context is cancelled the first time a wrapped function returns
// a non-nil error or panics.
func NewErrorGroupWithContextWrapper(logger logrus.FieldLogger, ctx context.Context) (*ErrorGroupWrapper, context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	return &ErrorGroupWrapper{
		Group:  eg,
		logger: logger,
	}, ctx
}

// Go overrides the Go method to add panic recovery logic.
func (egw *ErrorGroupWrapper) Go(f func() error, localVars ...interface{}) {
	egw.Group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				egw.logger.WithField("panic", r).Errorf("recovered from panic: %v, local variables %v", r, localVars)
				debug.PrintStack()
				err = errors.Errorf("panic occurred: %v", r)
			}
		}()
		return f()
	})
}
