package types

import (
	"strings"
)

// OverrideFunc resolves a descriptor whose native name a backend knows better
// than the generic code table. Returning false falls back to the generic tier.
type OverrideFunc func(d Descriptor) (Type, bool)

// Resolver is a two-tier type resolver: backend overrides keyed by native type
// name first, then Generic. A Resolver is immutable once built and safe for
// concurrent use.
type Resolver struct {
	overrides map[string]OverrideFunc
}

// NewResolver copies the override table; keys are matched case-insensitively.
func NewResolver(overrides map[string]OverrideFunc) *Resolver {
	r := &Resolver{overrides: make(map[string]OverrideFunc, len(overrides))}
	for name, fn := range overrides {
		r.overrides[normalizeName(name)] = fn
	}
	return r
}

// Resolve maps d to its canonical Type or fails with *failure.UnknownTypeError.
func (r *Resolver) Resolve(d Descriptor) (Type, error) {
	if r != nil {
		if fn, ok := r.overrides[normalizeName(d.Name)]; ok {
			if t, ok := fn(d); ok {
				return finish(t, d), nil
			}
		}
	}
	return Generic(d)
}

// Overrides lists the native names this resolver handles itself.
func (r *Resolver) Overrides() []string {
	names := make([]string, 0, len(r.overrides))
	for name := range r.overrides {
		names = append(names, name)
	}
	return names
}

// normalizeName lowercases and drops any parameter list: "VARCHAR(20)" -> "varchar".
func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(name[i:], ')'); j >= 0 {
			rest = strings.TrimSpace(name[i+j+1:])
		}
		name = strings.TrimSpace(name[:i])
		if rest != "" {
			name += " " + rest
		}
	}
	return name
}

// Fixed returns an override that always yields t.
func Fixed(t Type) OverrideFunc {
	return func(Descriptor) (Type, bool) { return t, true }
}

// Sized returns an override that builds the type from the descriptor.
func Sized(fn func(d Descriptor) Type) OverrideFunc {
	return func(d Descriptor) (Type, bool) { return fn(d), true }
}

// Exact builds an exact numeric type with an SQL2008 name derived from
// precision and scale.
func Exact(name string, precision, scale int) Type {
	return exact(precision, scale, withPrecision(name, precision, scale))
}

// Approximate builds an approximate numeric type.
func Approximate(name string, precision int) Type {
	return approximate(precision, name)
}

// Char builds a fixed or varying character type.
func Char(varying bool, size int) Type {
	name := "CHARACTER"
	if varying {
		name = "CHARACTER VARYING"
	}
	t := Type{Kind: String, MaxLength: size, SQL2008: sized(name, size)}
	t.SQL99 = t.SQL2008
	return t
}

// Temporal builds DATE, TIME or TIMESTAMP types.
func Temporal(timePart, zone bool) Type {
	switch {
	case !timePart:
		return dateTime(false, false, "DATE")
	case zone:
		return dateTime(true, true, "TIMESTAMP WITH TIME ZONE")
	default:
		return dateTime(true, false, "TIMESTAMP")
	}
}

// Time builds TIME or TIME WITH TIME ZONE.
func Time(zone bool) Type {
	if zone {
		return dateTime(true, true, "TIME WITH TIME ZONE")
	}
	return dateTime(true, false, "TIME")
}

// Bool is the BOOLEAN type.
func Bool() Type { return boolean() }
