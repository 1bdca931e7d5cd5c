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

package models

// Document is the backend-agnostic representation of one indexed entity.
// Writers upsert documents keyed by tenant and entity identifier, so
// re-submitting a document for the same entity replaces the previous
// version instead of appending a duplicate.
type Document struct {
	// ID is the entity identifier, unique within its entity type.
	ID string `json:"id"`

	// Type is the entity type name the document was built from.
	Type string `json:"type"`

	// Tenant scopes the document in multi-tenant setups. Empty means
	// single-tenant.
	Tenant string `json:"tenant,omitempty"`

	// Fields holds the searchable field values.
	Fields map[string]interface{} `json:"fields"`
}

// IndexID returns the identifier the document is stored under in the
// backend, namespaced by tenant when one is set.
func (d *Document) IndexID() string {
	if d.Tenant == "" {
		return d.ID
	}
	return d.Tenant + "::" + d.ID
}
