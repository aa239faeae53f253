package catalog

import (
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

const imageParams = "?ixlib=rb-1.2.1&auto=format&fit=crop&w=800&q=80"

func product(typ models.ProductType, name, price string, popular bool, image string, features ...string) models.Product {
	return models.Product{
		Slug:     slug.Make(name),
		Type:     typ,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Features: features,
		Popular:  popular,
		ImageURL: "https://images.unsplash.com/" + image + imageParams,
	}
}

// DefaultProducts возвращает стартовый каталог витрины.
func DefaultProducts() []models.Product {
	return []models.Product{
		product(models.ProductDigital, "Ghibli Digital Art - Personal License", "9.99", false, "photo-1533135347859-2d6efd2b5ba6",
			"High-resolution digital file", "Personal use license", "Instant download", "Multiple formats (JPG, PNG, PDF)"),
		product(models.ProductDigital, "Ghibli Digital Art - Commercial License", "29.99", true, "photo-1563089145-599997674d42",
			"High-resolution digital file", "Commercial use license", "Instant download",
			"Multiple formats (JPG, PNG, PDF, SVG)", "Print rights included", "Priority support"),
		product(models.ProductPrints, `Totoro Forest Art Print - 12" x 16"`, "39.99", false, "photo-1605941442838-33e316b1d2c2",
			"Gallery-quality printing", "Archival paper", "Vibrant Ghibli-inspired colors", "Ready to frame",
			"Signed digital certificate", "Worldwide shipping"),
		product(models.ProductPrints, `Spirited Away Framed Art - 18" x 24"`, "89.99", true, "photo-1581337544825-790a880ced7b",
			"Gallery-quality printing", "Archival paper", "Elegant frame included", "UV-protective glass",
			"Ready to hang", "Signed digital certificate", "Worldwide shipping"),
		product(models.ProductMerchandise, "My Neighbor Totoro T-Shirt", "29.99", false, "photo-1503341504253-dff4815485f1",
			"Premium cotton fabric", "Your custom Ghibli-style image", "Multiple sizes available",
			"Long-lasting print", "Machine washable", "Global shipping"),
		product(models.ProductMerchandise, "Spirited Away Merchandise Bundle", "99.99", true, "photo-1607082348824-0a96f2a4b9da",
			"T-shirt with your Ghibli artwork", "Coffee mug with custom artwork", "Phone case with magical spirits",
			"Tote bag with forest spirits", "Premium quality materials", "Global shipping"),
		product(models.ProductDigital, "Howl's Moving Castle Digital Pack", "14.99", false, "photo-1510925758641-869d353cecc7",
			"Collection of 5 digital wallpapers", "Phone, tablet and desktop sizes", "Magical castle theme", "Personal use only"),
		product(models.ProductPrints, "Kiki's Delivery Service Canvas Print", "59.99", false, "photo-1579783901586-d88db74b4fe4",
			"Premium stretched canvas", "Flying witch themed artwork", "Ready to hang", "Fade-resistant inks",
			"Available in multiple sizes"),
		product(models.ProductMerchandise, "Princess Mononoke Hoodie", "49.99", false, "photo-1556821840-3a63f95609a7",
			"Warm, cozy hoodie", "Forest spirit designs", "Premium cotton-polyester blend", "Machine washable", "Unisex design"),
	}
}
