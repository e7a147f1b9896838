package model

import "fmt"

// Direction defines the sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Order sorts a select by one column.
type Order struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// SelectQuery reads every record of a collection, optionally ordered.
type SelectQuery struct {
	Collection string `json:"collection"`
	OrderBy    *Order `json:"orderBy,omitempty"`
}

// Ordered returns a copy of q sorted descending by field.
func (q SelectQuery) Ordered(field string) SelectQuery {
	q.OrderBy = &Order{Field: field, Direction: Descending}
	return q
}

// String describes the query for logs.
func (q SelectQuery) String() string {
	if q.OrderBy == nil {
		return fmt.Sprintf("select %s (unordered)", q.Collection)
	}
	return fmt.Sprintf("select %s order by %s %s", q.Collection, q.OrderBy.Field, q.OrderBy.Direction)
}

// Operator defines a filter comparison.
type Operator string

const (
	OpEqual Operator = "=="
	OpIn    Operator = "in"
	OpAll   Operator = "all"
)

// Filter selects the records a delete applies to.
type Filter struct {
	Field    string      `json:"field,omitempty"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

// ByID matches a single record.
func ByID(id string) Filter {
	return Filter{Field: FieldID, Operator: OpEqual, Value: id}
}

// ByIDs matches a set of records.
func ByIDs(ids []string) Filter {
	return Filter{Field: FieldID, Operator: OpIn, Value: ids}
}

// MatchAll matches every record of the collection.
func MatchAll() Filter {
	return Filter{Operator: OpAll}
}
