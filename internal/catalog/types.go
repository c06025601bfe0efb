// Package catalog fetches and normalizes the paginated wishlist catalog.
package catalog

// StockRecord is one normalized catalog observation, produced per scan.
//
// Invariants:
//   - Code is never empty (entries without a code are discarded upstream)
//   - len(Sizes) > 0 iff InStock
type StockRecord struct {
	Code    string
	Name    string
	Price   float64
	URL     string
	Sizes   []string // distinct in-stock sizes, sorted
	InStock bool
}

// ---- wire types (catalog API JSON) ----

type apiResponse struct {
	Products []apiProduct `json:"products"`
}

type apiProduct struct {
	ProductCode    string       `json:"productCode"`
	Name           string       `json:"name"`
	Price          apiPrice     `json:"price"`
	URL            string       `json:"url"`
	VariantOptions []apiVariant `json:"variantOptions"`
}

type apiPrice struct {
	Value float64 `json:"value"`
}

type apiVariant struct {
	Stock      apiStock       `json:"stock"`
	Qualifiers []apiQualifier `json:"variantOptionQualifiers"`
}

type apiStock struct {
	StockLevelStatus string `json:"stockLevelStatus"`
}

type apiQualifier struct {
	Qualifier string `json:"qualifier"`
	Value     string `json:"value"`
}

const stockLevelInStock = "inStock"
