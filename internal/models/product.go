package models

// Product is one catalog entry with its keyword embedding attached.
type Product struct {
	Name       string    `json:"name"`
	Keywords   string    `json:"keywords"`
	Price      string    `json:"price"`
	Category   string    `json:"category"`
	Brand      string    `json:"brand"`
	ImageURL   string    `json:"image_url"`
	ProductURL string    `json:"product_url"`
	Embedding  []float32 `json:"embedding"`
}

// RankedProduct is a cached product with its similarity to the query.
type RankedProduct struct {
	Product    Product `json:"product"`
	Similarity float64 `json:"similarity"`
}

// GiftItem is the display form of a recommended product.
// ImageURL and Description are nil when the catalog row was not found.
type GiftItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	ImageURL    *string `json:"imageUrl"`
	Price       string  `json:"price"`
	Description *string `json:"description"`
}
