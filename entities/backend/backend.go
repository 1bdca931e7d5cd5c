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

// Package backend defines the write-side contract every search engine
// adapter implements. Query capabilities are deliberately not part of it.
package backend

import (
	"context"

	"github.com/syndex/syndex/entities/models"
)

// Writer accepts documents for one index. Implementations buffer and
// flush on their own schedule. Put must be safe for concurrent use, as
// all entity loading workers of a run share the per-index writer.
type Writer interface {
	// Put upserts the document, keyed by tenant and entity identifier.
	Put(ctx context.Context, doc *models.Document) error

	// Flush forces buffered documents out and surfaces any write errors
	// deferred since the last flush.
	Flush(ctx context.Context) error

	Close() error
}

// Backend is one search engine holding any number of named indexes.
type Backend interface {
	// Writer returns the shared writer for the given index.
	Writer(index string) (Writer, error)

	// EnsureIndex creates the index if it does not exist yet.
	EnsureIndex(ctx context.Context, index string) error

	// DropAndCreateIndex recreates the index from scratch.
	DropAndCreateIndex(ctx context.Context, index string) error

	// PurgeAll removes every document of the index, restricted to one
	// tenant when tenant is non-empty.
	PurgeAll(ctx context.Context, index, tenant string) error

	// MergeSegments compacts the index storage where the engine supports
	// an explicit merge.
	MergeSegments(ctx context.Context, index string) error

	// Flush makes accepted writes durable.
	Flush(ctx context.Context, index string) error

	// Refresh makes accepted writes visible to search.
	Refresh(ctx context.Context, index string) error

	Close() error
}
