package models

// DeepCopy returns a copy sharing no mutable state with the original.
// Builders may hand out documents whose Fields still reference the
// store's decoded object, callers that mutate a document first copy it.
func (d *Document) DeepCopy() *Document {
	return &Document{
		ID:     d.ID,
		Type:   d.Type,
		Tenant: d.Tenant,
		Fields: deepCopyFields(d.Fields),
	}
}

func deepCopyFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyFields(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		// scalars decoded from json or msgpack are immutable
		return v
	}
}
