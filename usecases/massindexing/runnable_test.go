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
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunnable struct {
	err       error
	panicWith interface{}

	interruptionCleanups int
	failureCleanups      int
}

func (r *fakeRunnable) name() string { return "Test stage" }

func (r *fakeRunnable) group() string { return "Article" }

func (r *fakeRunnable) run(ctx context.Context) error {
	if r.panicWith != nil {
		panic(r.panicWith)
	}

	return r.err
}

func (r *fakeRunnable) cleanupOnInterruption() { r.interruptionCleanups++ }

func (r *fakeRunnable) cleanupOnFailure() { r.failureCleanups++ }

func TestRunFailureHandled_Success(t *testing.T) {
	logger, _ := test.NewNullLogger()
	handler := &fakeFailureHandler{}
	n := newNotifier(&fakeMonitor{}, handler, nil, 100, logger)
	r := &fakeRunnable{}

	err := runFailureHandled(context.Background(), r, n, logger)

	require.NoError(t, err)
	assert.Equal(t, 0, r.interruptionCleanups)
	assert.Equal(t, 0, r.failureCleanups)
	assert.Empty(t, handler.fatalFailures())
}

func TestRunFailureHandled_Interruption(t *testing.T) {
	logger, _ := test.NewNullLogger()
	handler := &fakeFailureHandler{}
	n := newNotifier(&fakeMonitor{}, handler, nil, 100, logger)
	r := &fakeRunnable{err: context.Canceled}

	err := runFailureHandled(context.Background(), r, n, logger)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.interruptionCleanups)
	assert.Equal(t, 0, r.failureCleanups)

	// interruption is a shutdown, not a failure
	assert.Empty(t, handler.fatalFailures())
	assert.NoError(t, n.fatalErr())
}

func TestRunFailureHandled_WrappedInterruption(t *testing.T) {
	logger, _ := test.NewNullLogger()
	handler := &fakeFailureHandler{}
	n := newNotifier(&fakeMonitor{}, handler, nil, 100, logger)
	r := &fakeRunnable{err: errors.Wrap(context.Canceled, "stage stopped")}

	err := runFailureHandled(context.Background(), r, n, logger)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.interruptionCleanups)
	assert.Empty(t, handler.fatalFailures())
}

func TestRunFailureHandled_Failure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	handler := &fakeFailureHandler{}
	n := newNotifier(&fakeMonitor{}, handler, nil, 100, logger)
	cause := errors.New("identifier stream broke")
	r := &fakeRunnable{err: cause}

	err := runFailureHandled(context.Background(), r, n, logger)

	assert.Same(t, cause, err)
	assert.Equal(t, 0, r.interruptionCleanups)
	assert.Equal(t, 1, r.failureCleanups)
	assert.Same(t, cause, n.fatalErr())

	fatal := handler.fatalFailures()
	require.Len(t, fatal, 1)
	assert.Equal(t, "Test stage", fatal[0].Operation)
	assert.Equal(t, "Article", fatal[0].Group)
}

func TestRunFailureHandled_Panic(t *testing.T) {
	logger, _ := test.NewNullLogger()
	handler := &fakeFailureHandler{}
	n := newNotifier(&fakeMonitor{}, handler, nil, 100, logger)
	r := &fakeRunnable{panicWith: "kaboom"}

	err := runFailureHandled(context.Background(), r, n, logger)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic occurred during Test stage")
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, 1, r.failureCleanups)
	require.Len(t, handler.fatalFailures(), 1)
}
