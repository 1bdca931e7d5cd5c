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
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/syndex/syndex/entities/loading"
)

// identifierLoader streams the primary keys of a type group onto the
// handoff queue, one batch per Next call, in the strategy's natural order.
// Exactly one instance runs per workspace; parallel key extraction would
// break whatever chunk ordering the strategy relies on.
//
// Whatever way the run ends, the end of the stream is signalled so that
// consumers drain and terminate instead of blocking forever.
type identifierLoader struct {
	logger       logrus.FieldLogger
	notifier     *notifier
	types        typeGroup
	strategy     loading.Strategy
	params       loading.Params
	interceptors []loading.Interceptor
	queue        *batchQueue

	// consumersReady blocks until every entity loader opened its session.
	consumersReady func(ctx context.Context) error

	endOnce sync.Once
	session struct {
		sync.Mutex
		s loading.IdentifierSession
	}
}

func (l *identifierLoader) name() string { return operationIdentifierLoading }

func (l *identifierLoader) group() string { return l.types.name() }

func (l *identifierLoader) run(ctx context.Context) error {
	if err := l.consumersReady(ctx); err != nil {
		return err
	}

	return loading.ApplyInterceptors(ctx, l.interceptors, func(ctx context.Context) error {
		session, err := l.strategy.Identifiers(ctx, l.params)
		if err != nil {
			return errors.Wrapf(err, "open identifier session for %q", l.types.name())
		}
		l.setSession(session)

		total, err := session.Total(ctx)
		if err != nil {
			return errors.Wrapf(err, "count entities of %q", l.types.name())
		}
		l.notifier.reportAddedTotalCount(l.types.name(), total)
		l.logger.WithField("entities_total", total).
			Debugf("identifier loading started, expecting %d entities", total)

		for {
			batch, err := session.Next(ctx)
			if err != nil {
				return errors.Wrapf(err, "load identifier batch of %q", l.types.name())
			}
			if len(batch) == 0 {
				break
			}

			if err := l.queue.put(ctx, batch); err != nil {
				return err
			}
		}

		l.signalEnd()
		return l.closeSession()
	})
}

func (l *identifierLoader) cleanupOnInterruption() { l.cleanup() }

func (l *identifierLoader) cleanupOnFailure() { l.cleanup() }

func (l *identifierLoader) cleanup() {
	l.signalEnd()
	if err := l.closeSession(); err != nil {
		l.logger.WithError(err).Warn("could not close identifier session during cleanup")
	}
}

// signalEnd marks the end of the stream exactly once, no matter how many
// termination paths reach it.
func (l *identifierLoader) signalEnd() {
	l.endOnce.Do(l.queue.signalEnd)
}

func (l *identifierLoader) setSession(s loading.IdentifierSession) {
	l.session.Lock()
	defer l.session.Unlock()

	l.session.s = s
}

func (l *identifierLoader) closeSession() error {
	l.session.Lock()
	s := l.session.s
	l.session.s = nil
	l.session.Unlock()

	if s == nil {
		return nil
	}

	return s.Close()
}
