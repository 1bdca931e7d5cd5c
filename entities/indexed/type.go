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

// Package indexed describes which entity types are searchable and how
// each of them turns into index documents.
package indexed

import (
	"context"

	"github.com/syndex/syndex/entities/loading"
	"github.com/syndex/syndex/entities/models"
)

// Type describes one searchable entity type.
type Type struct {
	// Name is the entity type name, unique within a registry.
	Name string

	// Index is the backend index the type's documents are written to.
	Index string

	// Builder converts loaded entities of this type into documents.
	Builder DocumentBuilder

	// Loading fetches identifiers and entities from the backing store.
	Loading loading.Strategy
}

// DocumentBuilder converts one loaded entity into its index document. A
// build failure aborts only that entity, not the batch it arrived in.
type DocumentBuilder interface {
	Build(ctx context.Context, entity loading.Entity) (*models.Document, error)
}
