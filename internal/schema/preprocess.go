package schema

import (
	"regexp"
	"strconv"
	"strings"
)

// okraDirectiveRegex matches @okra(...) at the start of a line.
// Uses a more robust pattern that handles nested parentheses better by matching
// balanced content or escaping after a reasonable depth.
var okraDirectiveRegex = regexp.MustCompile(`(?m)^@okra\s*\(((?:[^()]*|\([^)]*\))*)\)`)

// serviceStartRegex matches service declarations at the start of a line.
// Captures the service name which must be a valid GraphQL identifier.
var serviceStartRegex = regexp.MustCompile(`(?m)^service\s+(\w+)\s*{`)

// constRegex matches `const NAME: Type = value` lines.
var constRegex = regexp.MustCompile(`(?m)^const\s+(\w+)\s*:\s*(\w+)\s*=\s*(.+?)\s*$`)

// constTypePrefix marks the synthetic types constants are rewritten into
const constTypePrefix = "_Const_"

// PreprocessGraphQL rewrites `@okra(...)`, `service` blocks and `const` lines
// into valid GraphQL `type` definitions.
func PreprocessGraphQL(input string) string {
	// 1. Rewrite @okra(...) to a _Schema type with a properly typed field
	// The field needs a type to be valid GraphQL
	input = okraDirectiveRegex.ReplaceAllStringFunc(input, func(match string) string {
		args := okraDirectiveRegex.FindStringSubmatch(match)[1]
		return `type _Schema {
  _: String @okra(` + args + `)
}`
	})

	// 2. Rewrite service blocks to type Service_X {
	input = serviceStartRegex.ReplaceAllStringFunc(input, func(match string) string {
		serviceName := serviceStartRegex.FindStringSubmatch(match)[1]
		return `type Service_` + serviceName + ` {`
	})

	// 3. Rewrite constants to type _Const_X { _: T @const(value: "...") }
	input = constRegex.ReplaceAllStringFunc(input, func(match string) string {
		parts := constRegex.FindStringSubmatch(match)
		return `type ` + constTypePrefix + parts[1] + ` {
  _: ` + parts[2] + ` @const(value: ` + quoteConstValue(parts[3]) + `)
}`
	})

	return input
}

// quoteConstValue turns a constant literal into a GraphQL string argument.
// String literals lose their own quotes; the constant's declared type tells
// them apart from numbers later.
func quoteConstValue(value string) string {
	value = strings.TrimSuffix(value, ";")
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		if s, err := strconv.Unquote(value); err == nil {
			value = s
		} else {
			value = value[1 : len(value)-1]
		}
	}
	return strconv.Quote(value)
}
