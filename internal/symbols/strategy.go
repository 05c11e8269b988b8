package symbols

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Fallback module keys. Every classification that matches no rule ends in
// one of these.
const (
	BucketGenerated = "_generated"
	BucketMisc      = "_misc"
	BucketSymbols   = "_symbols"
	BucketAll       = "all_functions"
)

// ErrUnknownStrategy is returned by ParseStrategy for unrecognized names.
var ErrUnknownStrategy = errors.New("symbols: unknown grouping strategy")

// Strategy maps a function to its module key.
type Strategy interface {
	Name() string
	// Key returns a non-empty module key. display may be empty.
	Key(name, display string) string
}

// Placeholder prefixes the decompiler uses for things it could not name.
var generatedPrefixes = []string{"FUN_", "DAT_", "thunk_FUN_", "LAB_", "SUB_"}

func isGenerated(name string) bool {
	for _, p := range generatedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func pick(name, display string) string {
	if display != "" {
		return display
	}
	return name
}

// ParseStrategy maps a CLI name to a Strategy. "" selects the default.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prefix":
		return Prefix{}, nil
	case "alpha":
		return Alpha{}, nil
	case "camelcase":
		return CamelCase{}, nil
	case "single":
		return Single{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// StrategyNames lists the accepted strategy names.
func StrategyNames() []string {
	return []string{"prefix", "alpha", "camelcase", "single"}
}

// Prefix groups by the leading name component. Zero Min/Max mean 2 and 30.
type Prefix struct {
	Min int
	Max int
}

var (
	pascalStartRe = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]+$`)
	twoHumpRe     = regexp.MustCompile(`^([A-Z][a-z]+[A-Z][a-z]*)`)
	oneHumpRe     = regexp.MustCompile(`^([A-Z][a-z]+)`)
	snakePrefixRe = regexp.MustCompile(`^([a-z][a-z0-9]*_[a-z0-9]+)`)
	lowerWordRe   = regexp.MustCompile(`^([a-z]+)`)
	upperPrefixRe = regexp.MustCompile(`^([A-Z]+)_`)
	camelWordsRe  = regexp.MustCompile(`[A-Z][a-z]*|[a-z]+|[0-9]+`)
)

func (Prefix) Name() string { return "prefix" }

func (p Prefix) bounds() (int, int) {
	lo, hi := p.Min, p.Max
	if lo <= 0 {
		lo = 2
	}
	if hi <= 0 {
		hi = 30
	}
	return lo, hi
}

// Key tries, in order: double-underscore split, single-underscore split,
// two-hump CamelCase, one CamelCase word, snake_case pair, lowercase word,
// all-caps prefix. A candidate outside [Min, Max] falls through to the next
// rule.
//
//	CoreView__ReInit              -> CoreView
//	ApplicationApplication_goHome -> ApplicationApplication
//	vg_lite_init                  -> vglite
//	xxBmpInit                     -> xx
//	GfxCreateSurface              -> GfxCreate
//	HAL_Init                      -> HAL
func (p Prefix) Key(name, display string) string {
	s := pick(name, display)
	lo, hi := p.bounds()
	fits := func(k string) bool { return len(k) >= lo && len(k) <= hi }

	if isGenerated(s) {
		return BucketGenerated
	}

	if strings.Contains(s, "__") {
		if first := strings.SplitN(s, "__", 2)[0]; fits(first) {
			return first
		}
	}

	if strings.Contains(s, "_") && !strings.HasPrefix(s, "_") {
		parts := strings.Split(s, "_")
		first := parts[0]
		if fits(first) && (pascalStartRe.MatchString(first) || len(first) >= 4) {
			return first
		}
		if compound := parts[0] + parts[1]; fits(compound) {
			return compound
		}
	}

	for _, re := range []*regexp.Regexp{twoHumpRe, oneHumpRe, snakePrefixRe, lowerWordRe, upperPrefixRe} {
		if m := re.FindStringSubmatch(s); m != nil && fits(m[1]) {
			return m[1]
		}
	}
	return BucketMisc
}

// Alpha groups by the uppercased first letter.
type Alpha struct{}

func (Alpha) Name() string { return "alpha" }

func (Alpha) Key(name, display string) string {
	s := pick(name, display)
	if isGenerated(s) {
		return BucketGenerated
	}
	if s != "" {
		if c := rune(s[0]); c < unicode.MaxASCII && unicode.IsLetter(c) {
			return string(unicode.ToUpper(c))
		}
	}
	return BucketSymbols
}

// CamelCase groups by the first two words of the name, split on
// underscores or on case and digit runs.
type CamelCase struct{}

func (CamelCase) Name() string { return "camelcase" }

// Key joins the first two words. Names with underscores split on every
// underscore, empty segments included, so "a__b" keys as "a".
func (CamelCase) Key(name, display string) string {
	s := pick(name, display)
	if isGenerated(s) {
		return BucketGenerated
	}
	var words []string
	if strings.Contains(s, "_") {
		words = strings.Split(s, "_")
	} else {
		words = camelWordsRe.FindAllString(s, -1)
	}
	var key string
	switch {
	case len(words) >= 2:
		key = words[0] + words[1]
	case len(words) == 1:
		key = words[0]
	}
	if key == "" {
		return BucketMisc
	}
	return key
}

// Single puts every function in one module.
type Single struct{}

func (Single) Name() string { return "single" }

func (Single) Key(string, string) string { return BucketAll }
