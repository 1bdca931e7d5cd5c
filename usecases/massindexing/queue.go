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

import "context"

// batchQueue hands identifier batches from the single identifier loader to
// the entity loader workers. It is a plain bounded channel: put blocks while
// the buffer is full, take blocks while it is empty, and both give up when
// the context is cancelled.
//
// Exactly one goroutine owns the producing side. After signalEnd no further
// put may happen; consumers still drain whatever was buffered before they
// observe the end of the stream.
type batchQueue struct {
	ch chan []string
}

func newBatchQueue(capacity int) *batchQueue {
	return &batchQueue{ch: make(chan []string, capacity)}
}

func (q *batchQueue) put(ctx context.Context, batch []string) error {
	select {
	case q.ch <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// take returns the next batch. ok is false once the producer has signalled
// the end of the stream and the buffer is drained.
func (q *batchQueue) take(ctx context.Context) (batch []string, ok bool, err error) {
	select {
	case batch, ok = <-q.ch:
		return batch, ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (q *batchQueue) signalEnd() {
	close(q.ch)
}
