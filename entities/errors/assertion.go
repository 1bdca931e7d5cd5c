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
	"errors"
	"fmt"
)

// Assertion reports a broken internal invariant, i.e. a bug in the calling
// code rather than a runtime condition. It is never retried and never
// downgraded to a warning.
type Assertion struct {
	msg string
}

func NewAssertionf(format string, args ...interface{}) *Assertion {
	return &Assertion{msg: fmt.Sprintf(format, args...)}
}

func (e *Assertion) Error() string {
	return "internal consistency violation: " + e.msg
}

func IsAssertion(err error) bool {
	var a *Assertion
	return errors.As(err, &a)
}
