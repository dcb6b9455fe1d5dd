package mapper

import (
	"strings"
	"unicode"
)

// reserved holds C keywords, the names <stdbool.h> defines and the C++
// keywords that break a header included from C++.
var reserved = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "register": true,
	"restrict": true, "return": true, "short": true, "signed": true,
	"sizeof": true, "static": true, "struct": true, "switch": true,
	"typedef": true, "union": true, "unsigned": true, "void": true,
	"volatile": true, "while": true,

	"_Alignas": true, "_Alignof": true, "_Atomic": true, "_Bool": true,
	"_Complex": true, "_Generic": true, "_Imaginary": true, "_Noreturn": true,
	"_Static_assert": true, "_Thread_local": true,

	"bool": true, "true": true, "false": true, "alignas": true, "alignof": true,
	"nullptr": true, "static_assert": true, "thread_local": true, "typeof": true,

	"class": true, "delete": true, "new": true, "namespace": true,
	"operator": true, "private": true, "protected": true, "public": true,
	"template": true, "this": true, "throw": true, "try": true, "catch": true,
	"virtual": true, "friend": true, "mutable": true, "explicit": true,
}

// sanitize makes name usable as a C identifier. Reserved words get a
// trailing underscore.
func sanitize(name string) string {
	if reserved[name] {
		return name + "_"
	}
	return name
}

// memberName is the union member name for a sum variant
func memberName(variant string) string {
	if variant == "" {
		return variant
	}
	runes := []rune(variant)
	runes[0] = unicode.ToLower(runes[0])
	return sanitize(string(runes))
}

// tagOf renders a type spelling as an identifier fragment for helper names:
// "int32_t" -> "int32", "Point *" -> "PointPtr".
func tagOf(spelling string) string {
	s := strings.TrimPrefix(spelling, "const ")
	s = strings.ReplaceAll(s, nullableMacro, "")
	s = strings.TrimSpace(s)

	ptrs := 0
	for strings.HasSuffix(s, "*") {
		ptrs++
		s = strings.TrimSpace(strings.TrimSuffix(s, "*"))
	}
	s = strings.TrimSuffix(s, "_t")
	s = strings.ReplaceAll(s, " ", "_")
	return s + strings.Repeat("Ptr", ptrs)
}
