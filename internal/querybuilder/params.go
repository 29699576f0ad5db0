package querybuilder

import (
	"fmt"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`@(p[A-Za-z0-9]+)`)

// Translate rewrites pgorm's @pN / @pId named placeholders into
// PostgreSQL's native $1, $2, … positional syntax: every driver dialect
// other than the name-based one pgorm builds internally needs this
// adapter, and lib/pq is no exception.
//
// params supplies the bound value for each named placeholder appearing in
// sql. Every placeholder actually present in sql must have an entry in
// params, or Translate returns an error — this is the "assert every
// placeholder appears in the supplied parameter map" requirement.
func Translate(sql string, params map[string]interface{}) (string, []interface{}, error) {
	var args []interface{}
	order := map[string]int{}

	var translateErr error
	translated := placeholderPattern.ReplaceAllStringFunc(sql, func(match string) string {
		name := match[1:] // strip "@"
		if idx, ok := order[name]; ok {
			return fmt.Sprintf("$%d", idx+1)
		}
		value, ok := params[name]
		if !ok {
			translateErr = fmt.Errorf("pgorm: placeholder @%s has no bound value", name)
			return match
		}
		args = append(args, value)
		order[name] = len(args) - 1
		return fmt.Sprintf("$%d", len(args))
	})
	if translateErr != nil {
		return "", nil, translateErr
	}

	return translated, args, nil
}

// PositionalParams builds a params map {"p0": args[0], "p1": args[1], …}
// for the common case of an ordered argument list with no @pId.
func PositionalParams(args []interface{}) map[string]interface{} {
	params := make(map[string]interface{}, len(args))
	for i, v := range args {
		params[fmt.Sprintf("p%d", i)] = v
	}
	return params
}
