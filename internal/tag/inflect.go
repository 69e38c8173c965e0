package tag

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	acronymBoundary = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	camelBoundary   = regexp.MustCompile(`([a-z\d])([A-Z])`)
)

// Underscore converts a CamelCase name into lower_snake_case.
//
//	Underscore("SampleType")   // "sample_type"
//	Underscore("HTTPServer")   // "http_server"
//	Underscore("pkg::Thing")   // "pkg/thing"
//	Underscore("already_done") // "already_done"
func Underscore(s string) string {
	s = strings.ReplaceAll(s, "::", "/")
	s = acronymBoundary.ReplaceAllString(s, "${1}_${2}")
	s = camelBoundary.ReplaceAllString(s, "${1}_${2}")
	s = strings.ReplaceAll(s, "-", "_")
	// A Caser is stateful and must not be shared between goroutines.
	return cases.Lower(language.Und).String(s)
}

// Pluralize returns the plural form of a snake_case name. Only the last
// word is inflected.
func Pluralize(s string) string {
	if s == "" {
		return s
	}
	return inflection.Plural(s)
}
