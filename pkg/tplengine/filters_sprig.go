package tplengine

import (
	"github.com/Masterminds/sprig/v3"
)

// sprigFuncs is the library's full text/template function map; this
// engine borrows a handful of pure string transforms from it rather than
// reimplementing them, and leaves the rest (date math, randomness, OS
// lookups, …) unwired since nothing here resolves through text/template.
var sprigFuncs = sprig.TxtFuncMap()

func sprigStringFilter(name string) Filter {
	fn := sprigFuncs[name].(func(string) string)
	return func(value any, _ ...string) (any, error) {
		return fn(ToDisplayString(value)), nil
	}
}

func init() {
	builtinFilters["trim"] = sprigStringFilter("trim")
	builtinFilters["nospace"] = sprigStringFilter("nospace")
	builtinFilters["b64enc"] = sprigStringFilter("b64enc")
	builtinFilters["sha256sum"] = sprigStringFilter("sha256sum")
}
