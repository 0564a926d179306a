package config

import "reflect"

// diffEvent builds an Event listing the top-level struct fields that differ
// between two configuration snapshots. Non-struct inputs yield an event
// with no changed keys.
func diffEvent(old, new any) Event {
	var changed []string

	if old != nil && new != nil {
		oldVal := reflect.Indirect(reflect.ValueOf(old))
		newVal := reflect.Indirect(reflect.ValueOf(new))

		if oldVal.Kind() == reflect.Struct && newVal.Kind() == reflect.Struct && oldVal.Type() == newVal.Type() {
			t := oldVal.Type()
			for i := 0; i < oldVal.NumField(); i++ {
				if !reflect.DeepEqual(oldVal.Field(i).Interface(), newVal.Field(i).Interface()) {
					changed = append(changed, t.Field(i).Name)
				}
			}
		}
	}

	return Event{ChangedKeys: changed, OldConfig: old, NewConfig: new}
}
