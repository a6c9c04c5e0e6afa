package sheets

import "testing"

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Tamaño", "tamano"},
		{"  Tamaño: ", "tamano"},
		{"Ticket   Promedio", "ticket promedio"},
		{"Código", "codigo"},
		{"%", "%"},
		{"No. Cuentas", "no cuentas"},
		{"Promedio/Persona", "promedio persona"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeHeader(tc.in); got != tc.expected {
			t.Fatalf("NormalizeHeader(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"2024-01-15", "2024-01-15"},
		{"15/01/2024", "2024-01-15"},
		{"15-01-2024", "2024-01-15"},
		{"01-15-24", "2024-01-15"},
		{"45306", "2024-01-15"},
	}
	for _, tc := range cases {
		got, err := NormalizeDate(tc.in)
		if err != nil {
			t.Fatalf("NormalizeDate(%q) error: %v", tc.in, err)
		}
		if got != tc.expected {
			t.Fatalf("NormalizeDate(%q) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
	for _, bad := range []string{"", "yesterday", "31/31/2024", "2024-13-01"} {
		if _, err := NormalizeDate(bad); err == nil {
			t.Fatalf("NormalizeDate(%q) expected error", bad)
		}
	}
}
