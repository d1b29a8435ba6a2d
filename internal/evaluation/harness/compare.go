package harness

import (
	"encoding/json"
	"reflect"
)

// CanonicalEqual compares two JSON documents structurally, ignoring key
// order and formatting. Numbers compare as float64, matching how both
// documents decode.
func CanonicalEqual(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
