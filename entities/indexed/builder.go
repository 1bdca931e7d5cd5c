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

package indexed

import (
	"context"

	"github.com/pkg/errors"
	"github.com/syndex/syndex/entities/loading"
	"github.com/syndex/syndex/entities/models"
)

// MapDocumentBuilder indexes map-shaped objects as-is: every key becomes
// a searchable field. It serves stores that keep schemaless documents and
// need no per-field mapping logic.
type MapDocumentBuilder struct{}

func (MapDocumentBuilder) Build(ctx context.Context, entity loading.Entity) (*models.Document, error) {
	fields, ok := entity.Object.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("entity %s/%s: object is %T, want map[string]interface{}",
			entity.Type, entity.ID, entity.Object)
	}

	return &models.Document{
		ID:     entity.ID,
		Type:   entity.Type,
		Fields: fields,
	}, nil
}
