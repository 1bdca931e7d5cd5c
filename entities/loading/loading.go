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

// Package loading defines the contract between the indexing pipeline and
// the object stores it reads from. The pipeline never interprets
// identifiers or transaction semantics itself; both belong to the
// strategy.
package loading

import "context"

// Entity is one loaded object, tagged with its type name so groups
// spanning several types can route it to the right document builder.
type Entity struct {
	Type   string
	ID     string
	Object interface{}
}

// Params describe one loading session: which entity types it covers,
// which tenant it is restricted to (empty for single-tenant), and how
// many identifiers one chunk holds.
type Params struct {
	Types     []string
	Tenant    string
	BatchSize int
}

// Strategy is implemented by object stores. It owns snapshot and
// transaction semantics: an identifier session must observe a consistent
// snapshot at every chunk boundary. The identifiers it streams are opaque
// to the pipeline; they only need to round-trip into the same strategy's
// entity session.
type Strategy interface {
	// Key groups entity types: types whose strategies return the same
	// key are streamed and loaded together in one session.
	Key() string

	Identifiers(ctx context.Context, params Params) (IdentifierSession, error)
	Entities(ctx context.Context, params Params) (EntitySession, error)
}

// IdentifierSession streams the identifiers of all entities covered by
// the session params, in stable chunks.
type IdentifierSession interface {
	// Total returns the number of identifiers the session will stream.
	Total(ctx context.Context) (int64, error)

	// Next returns the next chunk in source iteration order. An empty
	// chunk means the stream is exhausted.
	Next(ctx context.Context) ([]string, error)

	Close() error
}

// EntitySession bulk-loads entities by identifier chunk. Identifiers
// whose entity was deleted since the identifier snapshot was taken are
// simply absent from the result.
type EntitySession interface {
	Load(ctx context.Context, ids []string) ([]Entity, error)
	Close() error
}
