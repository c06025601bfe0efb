package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wishbot/internal/session"
	logx "wishbot/pkg/logx"
)

func TestNormalize(t *testing.T) {
	p := apiProduct{
		ProductCode: "P9",
		Name:        "Dress",
		Price:       apiPrice{Value: 1299},
		URL:         "/p/dress-p9.html",
		VariantOptions: []apiVariant{
			{Stock: apiStock{StockLevelStatus: "inStock"},
				Qualifiers: []apiQualifier{{Qualifier: "size", Value: "M"}}},
			{Stock: apiStock{StockLevelStatus: "outOfStock"},
				Qualifiers: []apiQualifier{{Qualifier: "size", Value: "L"}}},
			{Stock: apiStock{StockLevelStatus: "inStock"},
				Qualifiers: []apiQualifier{{Qualifier: "size", Value: "M"}}}, // dup
			{Stock: apiStock{StockLevelStatus: "inStock"},
				Qualifiers: []apiQualifier{{Qualifier: "size", Value: "S"}}},
			{Stock: apiStock{StockLevelStatus: "inStock"},
				Qualifiers: []apiQualifier{{Qualifier: "colour", Value: "red"}}},
		},
	}

	rec, ok := normalize(p)
	if !ok {
		t.Fatalf("expected record")
	}
	if !rec.InStock {
		t.Fatalf("expected in stock")
	}
	if len(rec.Sizes) != 2 || rec.Sizes[0] != "M" || rec.Sizes[1] != "S" {
		t.Fatalf("expected deduplicated sorted sizes [M S], got %v", rec.Sizes)
	}
}

func TestNormalizeOutOfStockAndEmptyCode(t *testing.T) {
	rec, ok := normalize(apiProduct{
		ProductCode: "P1",
		VariantOptions: []apiVariant{
			{Stock: apiStock{StockLevelStatus: "outOfStock"},
				Qualifiers: []apiQualifier{{Qualifier: "size", Value: "M"}}},
		},
	})
	if !ok {
		t.Fatalf("out-of-stock entries are still observations")
	}
	if rec.InStock || len(rec.Sizes) != 0 {
		t.Fatalf("expected out-of-stock with no sizes, got %+v", rec)
	}

	if _, ok := normalize(apiProduct{Name: "no code"}); ok {
		t.Fatalf("entries without a code must be discarded")
	}
}

func TestScanCollectsAllPagesAndCountsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("currentPage")
		if page == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"products":[
			{"productCode":"P%s-a","name":"A","price":{"value":100},
			 "variantOptions":[{"stock":{"stockLevelStatus":"inStock"},
			 "variantOptionQualifiers":[{"qualifier":"size","value":"M"}]}]},
			{"productCode":"P%s-b","name":"B","price":{"value":200},
			 "variantOptions":[{"stock":{"stockLevelStatus":"outOfStock"},
			 "variantOptionQualifiers":[{"qualifier":"size","value":"M"}]}]},
			{"productCode":"","name":"discard me"}
		]}`, page, page)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{
		Endpoint:       srv.URL,
		RequestTimeout: time.Second,
		MaxRetries:     1,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	sc := NewScanner(client, ScanConfig{TotalPages: 2, Workers: 3}, logx.Nop())

	res := sc.Scan(context.Background(), session.Set{})
	// Pages 0 and 1 contribute two records each; page 2 fails.
	if res.Total != 4 || len(res.Records) != 4 {
		t.Fatalf("expected 4 observed records, got total=%d records=%d", res.Total, len(res.Records))
	}
	if res.FailedPages != 1 {
		t.Fatalf("expected 1 failed page, got %d", res.FailedPages)
	}
	if got := res.InStock(); len(got) != 2 {
		t.Fatalf("expected 2 in-stock records, got %d", len(got))
	}
	codes := map[string]bool{}
	for _, rec := range res.Records {
		codes[rec.Code] = true
	}
	for _, want := range []string{"P0-a", "P0-b", "P1-a", "P1-b"} {
		if !codes[want] {
			t.Fatalf("missing record %s in %v", want, codes)
		}
	}
}
