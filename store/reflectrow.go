package store

import "reflect"

// fieldRef names one column of a row type and points at the struct field
// backing it, letting Columns/Get/Set/Args/ScanDest be implemented once
// instead of once per table.
type fieldRef struct {
	name string
	ptr  interface{}
}

func columnsOf(refs []fieldRef) []string {
	cols := make([]string, len(refs))
	for i, r := range refs {
		cols[i] = r.name
	}
	return cols
}

func getField(refs []fieldRef, column string) interface{} {
	for _, r := range refs {
		if r.name == column {
			return reflect.ValueOf(r.ptr).Elem().Interface()
		}
	}
	return nil
}

func setField(refs []fieldRef, column string, value interface{}) {
	for _, r := range refs {
		if r.name != column {
			continue
		}
		v := reflect.ValueOf(r.ptr).Elem()
		if value == nil {
			v.Set(reflect.Zero(v.Type()))
			return
		}
		v.Set(reflect.ValueOf(value))
		return
	}
}

func argsOf(refs []fieldRef) []interface{} {
	args := make([]interface{}, len(refs))
	for i, r := range refs {
		args[i] = reflect.ValueOf(r.ptr).Elem().Interface()
	}
	return args
}

func scanDestOf(refs []fieldRef) []interface{} {
	dest := make([]interface{}, len(refs))
	for i, r := range refs {
		dest[i] = r.ptr
	}
	return dest
}
