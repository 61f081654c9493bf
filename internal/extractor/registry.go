package extractor

import "sort"

// registry maps language names to their extractors. Grammar bindings are
// compiled in, so registration is static.
var registry = map[string]LanguageExtractor{
	"python": &PythonExtractor{},
	"go":     &GoExtractor{},
}

// Languages returns the names of all supported languages, sorted.
func Languages() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
