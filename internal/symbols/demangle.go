package symbols

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Demangler recovers a readable scoped name from a mangled symbol.
type Demangler interface {
	Demangle(name string) (string, bool)
}

// ItaniumDemangler demangles Itanium C++ ABI names (_Z...).
type ItaniumDemangler struct {
	// NoParams drops the parameter list from the result.
	NoParams bool
}

func (d ItaniumDemangler) Demangle(name string) (string, bool) {
	if !strings.HasPrefix(name, "_Z") && !strings.HasPrefix(name, "__Z") {
		return "", false
	}
	var opts []demangle.Option
	if d.NoParams {
		opts = append(opts, demangle.NoParams)
	}
	mangled := name
	if strings.HasPrefix(mangled, "__Z") {
		mangled = mangled[1:]
	}
	out, err := demangle.ToString(mangled, opts...)
	if err != nil || out == mangled {
		return "", false
	}
	return out, true
}
