package state

import (
	"encoding/json"
	"fmt"
	"slices"
)

// StringSet is an unordered set of strings that serializes as a sorted array.
type StringSet map[string]struct{}

func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func (s StringSet) Add(item string) {
	s[item] = struct{}{}
}

func (s StringSet) Remove(item string) {
	delete(s, item)
}

func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the members in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	slices.Sort(out)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON accepts either an array of strings or an object whose keys
// are the members.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var asArray []string
	if err := json.Unmarshal(data, &asArray); err == nil {
		*s = NewStringSet(asArray...)
		return nil
	}
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &asMap); err == nil {
		set := make(StringSet, len(asMap))
		for k := range asMap {
			set[k] = struct{}{}
		}
		*s = set
		return nil
	}
	return fmt.Errorf("set: not an array or object: %s", string(data))
}
