package templating

import (
	"html/template"
	"reflect"
	"strings"
)

func (tm *TemplateManager) makeFuncMap() template.FuncMap {
	return template.FuncMap{
		"href":     href,
		"inc":      inc,
		"add":      add,
		"isSet":    isSet,
		"join":     join,
		"lang":     tm.lang,
		"siteName": tm.siteName,
	}
}

// href turns a page address relative to the site root into a site-absolute URL.
func href(address string) string {
	return "/" + strings.TrimPrefix(address, "/")
}

// inc returns i + 1.
func inc(i int) int {
	return i + 1
}

// add returns a + b.
func add(a, b int) int {
	return a + b
}

// isSet returns true if a value is not its zero value.
func isSet(val any) bool {
	v := reflect.ValueOf(val)
	if !v.IsValid() {
		return false
	}
	return !v.IsZero()
}

// join concatenates elems with sep.
func join(sep string, elems []string) string {
	return strings.Join(elems, sep)
}

// lang and siteName are read while the manager's read lock is held by Execute.
func (tm *TemplateManager) lang() string {
	return tm.config.Lang
}

func (tm *TemplateManager) siteName() string {
	return tm.config.SiteName
}
