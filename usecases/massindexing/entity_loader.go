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

	"github.com/syndex/syndex/entities/backend"
	enterrors "github.com/syndex/syndex/entities/errors"
	"github.com/syndex/syndex/entities/loading"
)

// entityLoader drains identifier batches off the handoff queue, loads the
// entities in bulk and hands one document per entity to the writer of its
// index. Several instances run per workspace as competing consumers; a
// batch goes to whichever worker takes it first.
//
// A failure confined to one entity is reported and the entity skipped. A
// failing load call, a cancelled context or an unavailable backend ends the
// worker.
type entityLoader struct {
	logger       logrus.FieldLogger
	notifier     *notifier
	types        typeGroup
	strategy     loading.Strategy
	params       loading.Params
	interceptors []loading.Interceptor
	queue        *batchQueue
	writers      map[string]backend.Writer

	// ready tells the workspace this worker reached its consuming loop. It
	// must fire exactly once per worker, on every termination path, or the
	// identifier loader would wait forever.
	ready func()

	session struct {
		sync.Mutex
		s loading.EntitySession
	}
}

func (l *entityLoader) name() string { return operationEntityLoading }

func (l *entityLoader) group() string { return l.types.name() }

func (l *entityLoader) run(ctx context.Context) error {
	defer l.ready()

	return loading.ApplyInterceptors(ctx, l.interceptors, func(ctx context.Context) error {
		session, err := l.strategy.Entities(ctx, l.params)
		if err != nil {
			return errors.Wrapf(err, "open entity session for %q", l.types.name())
		}
		l.setSession(session)
		l.ready()

		for {
			batch, ok, err := l.queue.take(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}

			if err := l.indexBatch(ctx, session, batch); err != nil {
				return err
			}
		}

		return l.closeSession()
	})
}

func (l *entityLoader) indexBatch(ctx context.Context, session loading.EntitySession, ids []string) error {
	entities, err := session.Load(ctx, ids)
	if err != nil {
		return errors.Wrapf(err, "load %d entities of %q", len(ids), l.types.name())
	}

	l.notifier.reportEntitiesLoaded(l.types.name(), int64(len(entities)))

	var indexed int64
	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.indexOne(ctx, entity); err != nil {
			if enterrors.IsInterruption(err) || enterrors.IsBackendUnavailable(err) {
				return err
			}

			l.notifier.reportItemFailure(ItemFailureContext{
				FailureContext: FailureContext{
					Operation: operationEntityLoading,
					Group:     l.types.name(),
					Err:       err,
				},
				TypeName: entity.Type,
				EntityID: entity.ID,
			})
			continue
		}

		indexed++
	}

	if indexed > 0 {
		l.notifier.reportDocumentsIndexed(l.types.name(), indexed)
	}

	return nil
}

func (l *entityLoader) indexOne(ctx context.Context, entity loading.Entity) error {
	t, ok := l.types.typeByName(entity.Type)
	if !ok {
		return errors.Errorf("loaded entity of type %q which is not part of group %q",
			entity.Type, l.types.name())
	}

	doc, err := t.Builder.Build(ctx, entity)
	if err != nil {
		return errors.Wrapf(err, "build document for %s/%s", entity.Type, entity.ID)
	}
	if doc == nil {
		return errors.Errorf("builder returned no document for %s/%s", entity.Type, entity.ID)
	}
	if doc.Tenant == "" {
		doc.Tenant = l.params.Tenant
	}

	writer, ok := l.writers[t.Index]
	if !ok {
		return enterrors.NewAssertionf("no writer resolved for index %q", t.Index)
	}

	return writer.Put(ctx, doc)
}

func (l *entityLoader) cleanupOnInterruption() { l.cleanup() }

func (l *entityLoader) cleanupOnFailure() { l.cleanup() }

func (l *entityLoader) cleanup() {
	if err := l.closeSession(); err != nil {
		l.logger.WithError(err).Warn("could not close entity session during cleanup")
	}
}

func (l *entityLoader) setSession(s loading.EntitySession) {
	l.session.Lock()
	defer l.session.Unlock()

	l.session.s = s
}

func (l *entityLoader) closeSession() error {
	l.session.Lock()
	s := l.session.s
	l.session.s = nil
	l.session.Unlock()

	if s == nil {
		return nil
	}

	return s.Close()
}
