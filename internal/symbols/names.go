package symbols

import (
	"regexp"
	"strings"
)

const scopeSep = "::"

// methodSigRe matches "[ret ][__thiscall ]Path::method(" and captures Path.
var methodSigRe = regexp.MustCompile(`^(?:[\w\s\*]+\s+)?(?:__thiscall\s+)?(\w+(?:::\w+)*)::\w+\s*\(`)

// ClassOf is the quick last-two-segments heuristic: "A::B" gives "A",
// "A::B::C" gives "B". The parameter list is ignored so that scoped
// parameter types do not add segments.
func ClassOf(display string) (string, bool) {
	name := cutParams(display)
	if !strings.Contains(name, scopeSep) {
		return "", false
	}
	parts := strings.Split(name, scopeSep)
	if len(parts) > 2 {
		return parts[len(parts)-2], true
	}
	return parts[0], true
}

// NamespaceOf returns the first scope segment.
func NamespaceOf(display string) (string, bool) {
	name := cutParams(display)
	if !strings.Contains(name, scopeSep) {
		return "", false
	}
	ns := strings.TrimSpace(strings.Split(name, scopeSep)[0])
	if ns == "" {
		return "", false
	}
	return ns, true
}

// ClassPath recovers the full class path from a method signature:
//
//	"void CoreView::Draw(void)"                      -> "CoreView"
//	"void A::B::C::Method(void)"                     -> "A::B::C"
//	"void __thiscall CoreView::Init(CoreView *this)" -> "CoreView"
func ClassPath(display string) (string, bool) {
	if m := methodSigRe.FindStringSubmatch(display); m != nil {
		return m[1], true
	}
	// Scoped parameter types such as std::string must not add a class.
	name := QualifiedName(display)
	if !strings.Contains(name, scopeSep) {
		return "", false
	}
	parts := strings.Split(name, scopeSep)
	path := strings.TrimSpace(strings.Join(parts[:len(parts)-1], scopeSep))
	if path == "" {
		return "", false
	}
	return path, true
}

// MethodName returns the last scope segment without its parameter list.
func MethodName(display string) string {
	name := cutParams(display)
	parts := strings.Split(name, scopeSep)
	return strings.TrimSpace(parts[len(parts)-1])
}

// QualifiedName strips the return type, calling convention and parameter
// list from a demangled signature: "void __thiscall A::B::f(int)" -> "A::B::f".
// Whitespace inside template arguments is preserved.
func QualifiedName(display string) string {
	name := strings.TrimSpace(cutParams(display))
	depth := 0
	start := 0
	for i, r := range name {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ' ', '\t':
			if depth == 0 {
				start = i + 1
			}
		}
	}
	return strings.TrimLeft(name[start:], "*&")
}

// cutParams drops everything from the first '(' on. Operators such as
// "operator()" keep their parentheses.
func cutParams(s string) string {
	i := strings.IndexByte(s, '(')
	if i < 0 {
		return s
	}
	if strings.HasSuffix(s[:i], "operator") && strings.HasPrefix(s[i:], "()") {
		j := strings.IndexByte(s[i+2:], '(')
		if j < 0 {
			return s
		}
		return s[:i+2+j]
	}
	return s[:i]
}
