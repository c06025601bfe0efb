package monitor

import (
	"strings"
	"testing"

	"wishbot/internal/catalog"
)

func TestProductURL(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		code string
		want string
	}{
		{
			name: "absolute with variant slug",
			raw:  "https://www.sheinindia.in/dress-floral-sw99x1.html",
			code: "SW1",
			want: "https://www.sheinindia.in/dress-floral.html",
		},
		{
			name: "relative with variant slug",
			raw:  "/dress-floral-sw99x1.html",
			code: "SW1",
			want: "https://www.sheinindia.in/dress-floral.html",
		},
		{
			name: "empty falls back to code",
			raw:  "",
			code: "SW1",
			want: "https://www.sheinindia.in/product-SW1.html",
		},
		{
			name: "no variant slug left alone",
			raw:  "https://www.sheinindia.in/dress.html",
			code: "SW1",
			want: "https://www.sheinindia.in/dress.html",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := productURL(tc.raw, tc.code); got != tc.want {
				t.Fatalf("productURL(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestFormatAlert(t *testing.T) {
	r := catalog.StockRecord{
		Code:    "SW1",
		Name:    "Floral Dress",
		Price:   1299.5,
		URL:     "/floral-dress-ab12c3.html",
		Sizes:   []string{"M", "S"},
		InStock: true,
	}
	got := formatAlert(r, 2, 3)
	for _, want := range []string{
		"Floral Dress",
		"M, S",
		"Rs.1299.5",
		"`SW1`",
		"https://www.sheinindia.in/floral-dress.html",
		"Alert 2/3",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("alert missing %q:\n%s", want, got)
		}
	}
}

func TestFormatAlertNoSizes(t *testing.T) {
	got := formatAlert(catalog.StockRecord{Code: "X", Name: "X"}, 1, 3)
	if !strings.Contains(got, "Sizes in stock: N/A") {
		t.Fatalf("expected N/A sizes:\n%s", got)
	}
}
