package models

import "github.com/shopspring/decimal"

// ProductType — раздел каталога.
type ProductType string

const (
	ProductDigital     ProductType = "digital"
	ProductPrints      ProductType = "prints"
	ProductMerchandise ProductType = "merchandise"
)

// Product — товар витрины.
type Product struct {
	ID       int64           `json:"id"`
	Slug     string          `json:"slug"`
	Type     ProductType     `json:"type"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Features []string        `json:"features"`
	Popular  bool            `json:"popular"`
	ImageURL string          `json:"image_url"`
}

// CreditPackage — пакет кредитов, доступный для покупки.
// Price указан в рупиях, Amount — в минимальных единицах валюты (пайсах) для Razorpay.
type CreditPackage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Credits  int    `json:"credits"`
	Price    int64  `json:"price"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CreditPackages возвращает фиксированный набор пакетов кредитов.
func CreditPackages() []CreditPackage {
	return []CreditPackage{
		{ID: "basic", Name: "Basic", Credits: 5, Price: 99, Amount: 9900, Currency: "INR"},
		{ID: "standard", Name: "Standard", Credits: 15, Price: 249, Amount: 24900, Currency: "INR"},
		{ID: "premium", Name: "Premium", Credits: 50, Price: 699, Amount: 69900, Currency: "INR"},
	}
}

// FindCreditPackage ищет пакет по количеству кредитов и цене price в рупиях.
func FindCreditPackage(credits int, price int64, currency string) (CreditPackage, bool) {
	for _, p := range CreditPackages() {
		if p.Credits == credits && p.Price == price && p.Currency == currency {
			return p, true
		}
	}
	return CreditPackage{}, false
}
