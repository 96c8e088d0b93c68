package graph

import (
	"fmt"
	"maps"
	"reflect"
)

// Reducer defines how a state value is updated when a node returns a new
// value for its key. It takes the current value and the new value, and
// returns the merged value.
type Reducer func(current, update any) (any, error)

// Schema defines the update logic for the graph state. The executor
// overlays each node's partial update onto the running state: keys absent
// from the update keep their current value, keys present are merged through
// their registered reducer (default: overwrite). This makes it impossible
// for a node to silently drop fields it did not touch.
type Schema struct {
	Reducers map[string]Reducer
}

// NewSchema creates a new Schema with no reducers registered.
func NewSchema() *Schema {
	return &Schema{
		Reducers: make(map[string]Reducer),
	}
}

// RegisterReducer adds a reducer for a specific key.
func (s *Schema) RegisterReducer(key string, reducer Reducer) {
	s.Reducers[key] = reducer
}

// Init returns an empty state.
func (s *Schema) Init() State {
	return make(State)
}

// Update merges a node's partial update into the current state using the
// registered reducers. The current state is never mutated.
func (s *Schema) Update(current, update State) (State, error) {
	result := make(State, len(current)+len(update))
	maps.Copy(result, current)

	for k, v := range update {
		reducer, ok := s.Reducers[k]
		if !ok {
			result[k] = v
			continue
		}
		merged, err := reducer(result[k], v)
		if err != nil {
			return nil, fmt.Errorf("failed to reduce key %s: %w", k, err)
		}
		result[k] = merged
	}

	return result, nil
}

// DefaultSchema returns the schema used for conversational turn state:
// shared_memory, metadata and response merge map-wise instead of being
// replaced wholesale, preserving continuity keys a node did not restate.
func DefaultSchema() *Schema {
	s := NewSchema()
	s.RegisterReducer("shared_memory", MergeMapReducer)
	s.RegisterReducer("metadata", MergeMapReducer)
	s.RegisterReducer("response", MergeMapReducer)
	return s
}

// Common Reducers

// OverwriteReducer replaces the old value with the new one.
func OverwriteReducer(current, update any) (any, error) {
	return update, nil
}

// MergeMapReducer overlays the update mapping onto the current mapping,
// update values winning for keys present in both. Non-map updates replace
// the current value.
func MergeMapReducer(current, update any) (any, error) {
	updateMap, ok := update.(map[string]any)
	if !ok {
		return update, nil
	}

	currentMap, ok := current.(map[string]any)
	if !ok {
		currentMap = nil
	}

	result := make(map[string]any, len(currentMap)+len(updateMap))
	maps.Copy(result, currentMap)
	maps.Copy(result, updateMap)
	return result, nil
}

// AppendReducer appends the update to the current slice. It supports
// appending a slice to a slice, or a single element to a slice.
func AppendReducer(current, update any) (any, error) {
	if current == nil {
		updateVal := reflect.ValueOf(update)
		if updateVal.Kind() == reflect.Slice {
			return update, nil
		}
		sliceType := reflect.SliceOf(reflect.TypeOf(update))
		slice := reflect.MakeSlice(sliceType, 0, 1)
		slice = reflect.Append(slice, updateVal)
		return slice.Interface(), nil
	}

	currentVal := reflect.ValueOf(current)
	if currentVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("current value is not a slice")
	}

	updateVal := reflect.ValueOf(update)
	if updateVal.Kind() != reflect.Slice {
		if updateVal.Type() != currentVal.Type().Elem() {
			return nil, fmt.Errorf("cannot append %T to %T", update, current)
		}
		return reflect.Append(currentVal, updateVal).Interface(), nil
	}

	if currentVal.Type().Elem() == updateVal.Type().Elem() {
		return reflect.AppendSlice(currentVal, updateVal).Interface(), nil
	}

	// Mixed element types fall back to []any.
	result := make([]any, 0, currentVal.Len()+updateVal.Len())
	for i := 0; i < currentVal.Len(); i++ {
		result = append(result, currentVal.Index(i).Interface())
	}
	for i := 0; i < updateVal.Len(); i++ {
		result = append(result, updateVal.Index(i).Interface())
	}
	return result, nil
}
