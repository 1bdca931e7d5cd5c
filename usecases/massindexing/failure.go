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
	"github.com/sirupsen/logrus"
)

// Operation names used in failure reports and worker names.
const (
	operationIdentifierLoading = "Identifier loading"
	operationEntityLoading     = "Entity loading"
	operationIndexScope        = "Index scope operation"
)

// FailureContext describes a failure that ended a whole stage or run.
type FailureContext struct {
	// Operation is the stage that failed, e.g. "Identifier loading".
	Operation string

	// Group is the reporting name of the affected type group. Empty for
	// failures outside any group, e.g. index scope operations.
	Group string

	Err error
}

// ItemFailureContext describes a failure confined to a single entity. The
// entity was skipped; the run went on.
type ItemFailureContext struct {
	FailureContext

	TypeName string
	EntityID string
}

// FailureHandler receives failures as they happen. Implementations must be
// safe for concurrent use. Handlers are for reporting only; they cannot veto
// the pipeline's own failure handling.
type FailureHandler interface {
	Handle(fc FailureContext)
	HandleItem(fc ItemFailureContext)
}

// LogFailureHandler is the default failure handler. It writes every failure
// to the structured log and nothing else.
type LogFailureHandler struct {
	logger logrus.FieldLogger
}

func NewLogFailureHandler(logger logrus.FieldLogger) *LogFailureHandler {
	return &LogFailureHandler{
		logger: logger.WithField("action", "mass_indexing_failure"),
	}
}

func (h *LogFailureHandler) Handle(fc FailureContext) {
	h.logger.WithError(fc.Err).
		WithField("operation", fc.Operation).
		WithField("group", fc.Group).
		Errorf("mass indexing failed during %q", fc.Operation)
}

func (h *LogFailureHandler) HandleItem(fc ItemFailureContext) {
	h.logger.WithError(fc.Err).
		WithField("operation", fc.Operation).
		WithField("group", fc.Group).
		WithField("type", fc.TypeName).
		WithField("id", fc.EntityID).
		Warnf("skipping entity %s/%s after failure", fc.TypeName, fc.EntityID)
}
