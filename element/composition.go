package element

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Count is the number of atoms of one element, typically per unit cell.
type Count struct {
	Z Z
	N uint
}

// Composition is a set of element counts. Order is irrelevant.
type Composition []Count

// Reduce returns the canonical form of c: zero counts dropped, counts divided
// by their greatest common divisor and entries sorted by atomic number.
//
// It fails with ErrInvalidInput on an invalid identity, an empty composition
// or a duplicated element. The input is not modified.
func Reduce(c Composition) (Composition, error) {
	for _, e := range c {
		if !e.Z.Valid() {
			return nil, fmt.Errorf("%w: atomic number %d out of range", ErrInvalidInput, e.Z)
		}
	}

	out := make(Composition, 0, len(c))
	for _, e := range c {
		if e.N > 0 {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: composition is empty", ErrInvalidInput)
	}

	g := out[0].N
	for _, e := range out[1:] {
		g = gcd(g, e.N)
	}
	for i := range out {
		out[i].N /= g
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	for i := 0; i+1 < len(out); i++ {
		if out[i].Z == out[i+1].Z {
			return nil, fmt.Errorf("%w: duplicate entries for %s", ErrInvalidInput, out[i].Z.Symbol())
		}
	}
	return out, nil
}

// Formula reduces c and renders it as a Hill-system chemical formula.
//
// Elements are ordered alphabetically by symbol, except that when carbon is
// present it comes first, followed by hydrogen and then deuterium. Counts of
// one are omitted. Untabulated elements sort last.
func Formula(c Composition) (string, error) {
	r, err := Reduce(c)
	if err != nil {
		return "", err
	}
	return r.hill(), nil
}

// Formula is shorthand for Formula(c).
func (c Composition) Formula() (string, error) {
	return Formula(c)
}

// Total returns the number of atoms in c.
func (c Composition) Total() uint {
	var n uint
	for _, e := range c {
		n += e.N
	}
	return n
}

// hill renders an already reduced composition.
func (c Composition) hill() string {
	anyCarbon := false
	for _, e := range c {
		if e.Z == Carbon {
			anyCarbon = true
			break
		}
	}

	type part struct{ key, text string }
	parts := make([]part, 0, len(c))
	for _, e := range c {
		sym := e.Z.Symbol()
		key := sym
		switch {
		case anyCarbon && e.Z == Carbon:
			key = "1"
		case anyCarbon && e.Z == Hydrogen:
			key = "2"
		case anyCarbon && e.Z == Deuterium:
			key = "3"
		case !e.Z.Known():
			key = "{" + sym
		}
		text := sym
		if e.N != 1 {
			text += strconv.FormatUint(uint64(e.N), 10)
		}
		parts = append(parts, part{key, text})
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].key != parts[j].key {
			return parts[i].key < parts[j].key
		}
		return parts[i].text < parts[j].text
	})

	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.text)
	}
	return b.String()
}

func gcd(a, b uint) uint {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ParseCounts parses "Sym:count" pairs such as "Fe:2" or "D:1".
func ParseCounts(args []string) (Composition, error) {
	c := make(Composition, 0, len(args))
	for _, arg := range args {
		sym, num, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("%w: expected Sym:count, got %q", ErrInvalidInput, arg)
		}
		z, ok := Lookup(strings.TrimSpace(sym))
		if !ok {
			return nil, fmt.Errorf("%w: unknown element %q", ErrInvalidInput, sym)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(num), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad count %q: %v", ErrInvalidInput, num, err)
		}
		c = append(c, Count{Z: z, N: uint(n)})
	}
	return c, nil
}
