package dashboard

import (
	"fmt"
	"reflect"
	"sort"

	"content-sync/internal/collection/domain/model"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Names of the built-in derived counts.
const (
	CountPoems               = "poems"
	CountVideos              = "videos"
	CountComments            = "comments"
	CountUnreadInvites       = "unread_invites"
	CountPendingComments     = "pending_comments"
	CountUnreadNotifications = "unread_notifications"
)

// DerivedCounts maps a count name to the number of matching records. It is
// recomputed from the current snapshots every time it is asked for.
type DerivedCounts map[string]int

// CountRule counts the records of Collection for which Expr is true. Expr is
// a CEL expression over the variable record; flag(record, "name") reads a
// truthy column that may be missing, boolean, numeric or textual.
type CountRule struct {
	Name       string `json:"name"`
	Collection string `json:"collection"`
	Expr       string `json:"expr"`
}

// DefaultCountRules are the counts shown on the dashboard overview.
var DefaultCountRules = []CountRule{
	{Name: CountPoems, Collection: Poems, Expr: "true"},
	{Name: CountVideos, Collection: Videos, Expr: "true"},
	{Name: CountComments, Collection: Comments, Expr: "true"},
	{Name: CountUnreadInvites, Collection: Invites, Expr: `!flag(record, "is_read")`},
	{Name: CountPendingComments, Collection: Comments, Expr: `!flag(record, "is_approved") && !flag(record, "approved")`},
	{Name: CountUnreadNotifications, Collection: Notifications, Expr: `!flag(record, "is_read")`},
}

type compiledRule struct {
	CountRule
	program cel.Program
}

// CountRules holds compiled count predicates.
type CountRules struct {
	rules []compiledRule
}

// NewCountRules compiles rules once. Every expression must yield a bool.
func NewCountRules(rules []CountRule) (*CountRules, error) {
	env, err := createCELEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		ast, issues := env.Compile(rule.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("count %q: CEL compilation error: %w", rule.Name, issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("count %q: expression must be boolean, got %s", rule.Name, out)
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("count %q: failed to create CEL program: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledRule{CountRule: rule, program: program})
	}
	return &CountRules{rules: compiled}, nil
}

// MergeCountRules applies overrides by name to base. An override without a
// collection keeps the collection of the rule it replaces; new names are
// appended in name order.
func MergeCountRules(base []CountRule, overrides map[string]CountRule) []CountRule {
	out := make([]CountRule, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(base))
	for _, rule := range base {
		if o, ok := overrides[rule.Name]; ok {
			if o.Collection != "" {
				rule.Collection = o.Collection
			}
			rule.Expr = o.Expr
		}
		seen[rule.Name] = true
		out = append(out, rule)
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		o := overrides[name]
		o.Name = name
		out = append(out, o)
	}
	return out
}

// Rules returns the rules in evaluation order.
func (c *CountRules) Rules() []CountRule {
	out := make([]CountRule, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.CountRule
	}
	return out
}

// Compute counts every rule over the records returned by data. A record the
// expression fails on is not counted; the first such error is returned with
// the counts.
func (c *CountRules) Compute(data func(collection string) []model.Record) (DerivedCounts, error) {
	counts := make(DerivedCounts, len(c.rules))
	var firstErr error
	for _, rule := range c.rules {
		n := 0
		for _, rec := range data(rule.Collection) {
			ok, err := rule.matches(rec)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("count %q: %w", rule.Name, err)
				}
				continue
			}
			if ok {
				n++
			}
		}
		counts[rule.Name] = n
	}
	return counts, firstErr
}

func (r compiledRule) matches(rec model.Record) (bool, error) {
	out, _, err := r.program.Eval(map[string]interface{}{"record": map[string]interface{}(rec)})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return boolean value")
	}
	return result, nil
}

func createCELEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Declarations(
			decls.NewVar("record", decls.NewMapType(decls.String, decls.Dyn)),
		),
		cel.Function("flag",
			cel.Overload("flag_map_string",
				[]*cel.Type{cel.MapType(cel.StringType, cel.DynType), cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(flag),
			),
		),
	)
}

var recordType = reflect.TypeOf(map[string]interface{}{})

// flag reports whether a column of the record is set and truthy.
func flag(record, name ref.Val) ref.Val {
	field, ok := name.Value().(string)
	if !ok {
		return types.NewErr("flag: column name must be a string")
	}
	var rec model.Record
	switch m := record.Value().(type) {
	case map[string]interface{}:
		rec = m
	case model.Record:
		rec = m
	default:
		native, err := record.ConvertToNative(recordType)
		if err != nil {
			return types.NewErr("flag: %v", err)
		}
		rec = native.(map[string]interface{})
	}
	return types.Bool(rec.Bool(field))
}
