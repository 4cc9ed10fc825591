package element

import (
	"errors"
	"math"
	"testing"
)

func comp(pairs ...any) Composition {
	c := make(Composition, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		c = append(c, Count{Z: MustLookup(pairs[i].(string)), N: uint(pairs[i+1].(int))})
	}
	return c
}

func TestFormula(t *testing.T) {
	tests := []struct {
		name string
		in   Composition
		want string
	}{
		{"glucose ratio", comp("C", 6, "H", 12, "O", 6), "CH2O"},
		{"iron oxide", comp("Fe", 2, "O", 3), "Fe2O3"},
		{"alumina multiple", comp("Al", 6, "O", 9), "Al2O3"},
		{"single element", comp("Al", 4), "Al"},
		{"no carbon alphabetical", comp("O", 1, "H", 2), "H2O"},
		{"no carbon with deuterium", comp("O", 1, "D", 2), "D2O"},
		{"carbon hydrogen deuterium", comp("D", 1, "O", 2, "H", 3, "C", 4), "C4H3DO2"},
		{"carbon puts hydrogen before others", comp("N", 1, "H", 1, "C", 1), "CHN"},
		{"alphabetical by symbol not z", comp("Si", 1, "O", 2), "O2Si"},
		{"zero counts dropped", comp("Na", 1, "Cl", 1, "K", 0), "ClNa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Formula(tt.in)
			if err != nil {
				t.Fatalf("Formula() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Formula() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormula_InputOrderIrrelevant(t *testing.T) {
	a := comp("C", 2, "H", 6, "D", 2, "O", 1)
	b := comp("O", 1, "D", 2, "H", 6, "C", 2)

	fa, err := Formula(a)
	if err != nil {
		t.Fatalf("Formula(a) error = %v", err)
	}
	fb, err := Formula(b)
	if err != nil {
		t.Fatalf("Formula(b) error = %v", err)
	}
	if fa != fb {
		t.Errorf("Formula differs by input order: %q vs %q", fa, fb)
	}
	if fa != "C2H6D2O" {
		t.Errorf("Formula() = %q, want %q", fa, "C2H6D2O")
	}
}

func TestFormula_ScalarMultiples(t *testing.T) {
	base := comp("Ca", 1, "F", 2)
	want, err := Formula(base)
	if err != nil {
		t.Fatalf("Formula() error = %v", err)
	}

	for k := 1; k <= 12; k++ {
		scaled := make(Composition, len(base))
		for i, e := range base {
			scaled[i] = Count{Z: e.Z, N: e.N * uint(k)}
		}
		got, err := Formula(scaled)
		if err != nil {
			t.Fatalf("Formula(x%d) error = %v", k, err)
		}
		if got != want {
			t.Errorf("Formula(x%d) = %q, want %q", k, got, want)
		}
	}
}

func TestReduce_Idempotent(t *testing.T) {
	once, err := Reduce(comp("C", 6, "H", 12, "O", 6))
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	twice, err := Reduce(once)
	if err != nil {
		t.Fatalf("Reduce(Reduce()) error = %v", err)
	}
	if len(once) != len(twice) {
		t.Fatalf("length changed: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("entry %d changed: %v -> %v", i, once[i], twice[i])
		}
	}
	if once.hill() != twice.hill() {
		t.Errorf("formula changed: %q -> %q", once.hill(), twice.hill())
	}
}

func TestReduce_KeepsUnitCountsInData(t *testing.T) {
	got, err := Reduce(comp("O", 6, "C", 6, "H", 12))
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	want := Composition{{Z: 1, N: 2}, {Z: 6, N: 1}, {Z: 8, N: 1}}
	if len(got) != len(want) {
		t.Fatalf("Reduce() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Reduce()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	in := comp("O", 4, "Si", 2)
	_, err := Reduce(in)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if in[0].Z != MustLookup("O") || in[0].N != 4 || in[1].N != 2 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestReduce_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   Composition
	}{
		{"duplicate element", Composition{{Z: 8, N: 1}, {Z: 8, N: 2}}},
		{"zero atomic number", Composition{{Z: 0, N: 1}}},
		{"out of range", Composition{{Z: 120, N: 1}}},
		{"near sentinel", Composition{{Z: 1000, N: 1}}},
		{"empty", Composition{}},
		{"only zero counts", Composition{{Z: 13, N: 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reduce(tt.in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Reduce() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestFormula_UnknownElementSortsLast(t *testing.T) {
	got, err := Formula(Composition{{Z: MaxZ, N: 1}, {Z: 8, N: 2}, {Z: 3, N: 1}})
	if err != nil {
		t.Fatalf("Formula() error = %v", err)
	}
	if want := "LiO2Elem<119>"; got != want {
		t.Errorf("Formula() = %q, want %q", got, want)
	}
}

func TestSymbolLookup(t *testing.T) {
	tests := []struct {
		z    Z
		want string
	}{
		{1, "H"},
		{6, "C"},
		{26, "Fe"},
		{118, "Og"},
		{Deuterium, "D"},
		{MaxZ, "Elem<119>"},
	}
	for _, tt := range tests {
		if got := tt.z.Symbol(); got != tt.want {
			t.Errorf("Z(%d).Symbol() = %q, want %q", tt.z, got, tt.want)
		}
		if !tt.z.Known() {
			continue
		}
		back, ok := Lookup(tt.want)
		if !ok || back != tt.z {
			t.Errorf("Lookup(%q) = %d, %v; want %d", tt.want, back, ok, tt.z)
		}
	}
	if _, ok := Lookup("Xx"); ok {
		t.Error("Lookup(\"Xx\") should fail")
	}
}

func TestParseCounts(t *testing.T) {
	c, err := ParseCounts([]string{"Fe:2", "O:3"})
	if err != nil {
		t.Fatalf("ParseCounts() error = %v", err)
	}
	f, err := Formula(c)
	if err != nil {
		t.Fatalf("Formula() error = %v", err)
	}
	if f != "Fe2O3" {
		t.Errorf("Formula() = %q, want Fe2O3", f)
	}

	for _, bad := range [][]string{{"Fe"}, {"Xx:1"}, {"O:-1"}, {"O:abc"}} {
		if _, err := ParseCounts(bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseCounts(%v) error = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestFractions(t *testing.T) {
	f := Fractions{{Z: MustLookup("H"), Value: 2.0 / 3}, {Z: MustLookup("O"), Value: 1.0 / 3}}

	if err := f.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got, want := f.Key(), "_H_0.6666666666666666O_0.3333333333333333"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}

	mass, err := f.MassFractions()
	if err != nil {
		t.Fatalf("MassFractions() error = %v", err)
	}
	wantH := 2 * 1.008 / (2*1.008 + 15.999)
	if math.Abs(mass[0]-wantH) > 1e-12 {
		t.Errorf("hydrogen mass fraction = %v, want %v", mass[0], wantH)
	}
	if math.Abs(mass[0]+mass[1]-1) > 1e-12 {
		t.Errorf("mass fractions sum to %v, want 1", mass[0]+mass[1])
	}

	bad := Fractions{{Z: MaxZ, Value: 1}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
	}
	if err := (Fractions{{Z: 1, Value: 0}}).Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Validate() zero fraction error = %v, want ErrInvalidInput", err)
	}
}
