package postgres

import (
	"reflect"
	"sync"
)

// Columns returns the "db" tags of T in field order, descending into embedded
// structs. Call it once per type at package init.
//
//	cols := Columns[billing.Bill]()
//	// ["id", "version", "created_at", "updated_at", "number", ...]
func Columns[T any]() []string {
	var zero T
	return fieldsOf(reflect.TypeOf(zero)).names()
}

// Values maps the "db" columns of v to their values.
func Values(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fs := fieldsOf(rv.Type())
	out := make(map[string]any, len(fs))
	for _, f := range fs {
		out[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return out
}

type column struct {
	column string
	index  []int
}

type columnList []column

func (l columnList) names() []string {
	out := make([]string, len(l))
	for i, c := range l {
		out[i] = c.column
	}
	return out
}

var columnCache sync.Map // reflect.Type -> columnList

func fieldsOf(t reflect.Type) columnList {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.(columnList)
	}
	var out columnList
	if t.Kind() == reflect.Struct {
		out = collect(t, nil)
	}
	columnCache.Store(t, out)
	return out
}

func collect(t reflect.Type, prefix []int) columnList {
	var out columnList
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		idx := append(append([]int(nil), prefix...), i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			out = append(out, collect(f.Type, idx)...)
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		out = append(out, column{column: tag, index: idx})
	}
	return out
}
