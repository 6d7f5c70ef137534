package action

// FirstEntityValue extracts the first usable value of a named slot. It
// returns nil when the slot is absent, not an array, empty, or the first
// value is falsy; when the value is itself an object it returns the object's
// "value" sub-field. Downstream actions branch on nil vs non-nil, so the
// whole chain matters.
func FirstEntityValue(entities map[string]any, entity string) any {
	if entities == nil {
		return nil
	}
	arr, ok := entities[entity].([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	first, ok := arr[0].(map[string]any)
	if !ok {
		return nil
	}
	val := first["value"]
	if isFalsy(val) {
		return nil
	}
	if obj, ok := val.(map[string]any); ok {
		return obj["value"]
	}
	return val
}

func isFalsy(val any) bool {
	switch v := val.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	default:
		return false
	}
}
