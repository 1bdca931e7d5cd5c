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

package loading

import "context"

// Interceptor wraps one loading stage, e.g. to set up session-scoped
// state on the worker. next runs the remainder of the chain and finally
// the stage itself. Any error returned, from the interceptor or from
// next, aborts the surrounding indexing run.
type Interceptor func(ctx context.Context, next func(context.Context) error) error

// ApplyInterceptors runs stage wrapped by the given interceptors, first
// one outermost.
func ApplyInterceptors(ctx context.Context, interceptors []Interceptor,
	stage func(context.Context) error,
) error {
	wrapped := stage
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic := interceptors[i]
		next := wrapped
		wrapped = func(c context.Context) error {
			return ic(c, next)
		}
	}
	return wrapped(ctx)
}
