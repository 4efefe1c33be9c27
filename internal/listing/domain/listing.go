package domain

import (
	"errors"
	"time"
)

var ErrListingNotFound = errors.New("listing not found")

type PackageSize string

const (
	PackageSmall  PackageSize = "small"
	PackageMedium PackageSize = "medium"
	PackageLarge  PackageSize = "large"
)

// PackageSpec holds approximate parcel dimensions (inches) and the max
// weight (lbs) used for shipping rate requests.
type PackageSpec struct {
	Label     string
	Length    int
	Width     int
	Height    int
	MaxWeight int
}

var PackageSizes = map[PackageSize]PackageSpec{
	PackageSmall:  {Label: "Small", Length: 10, Width: 8, Height: 4, MaxWeight: 1},
	PackageMedium: {Label: "Medium", Length: 14, Width: 12, Height: 6, MaxWeight: 3},
	PackageLarge:  {Label: "Large", Length: 18, Width: 14, Height: 8, MaxWeight: 5},
}

type ShippingPolicy string

const (
	ShippingBuyerPays     ShippingPolicy = "buyer"
	ShippingSellerPays    ShippingPolicy = "seller"
	ShippingInternational ShippingPolicy = "international"
)

type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionVintage Condition = "vintage"
)

type Listing struct {
	ID          int64     `json:"id"`
	SellerID    string    `json:"sellerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Brand       string    `json:"brand,omitempty"`
	Condition   Condition `json:"condition"`
	// PriceCents is in minor currency units.
	PriceCents     int64          `json:"price"`
	ImageURL       string         `json:"imageUrl"`
	Sold           bool           `json:"sold"`
	PackageSize    PackageSize    `json:"packageSize"`
	ShippingPaidBy ShippingPolicy `json:"shippingPaidBy"`
	// WeightOunces is the item weight in ounces, up to 70 lbs.
	WeightOunces int `json:"weight"`
	// InternationalShippingPriceCents is the seller-set flat rate for
	// international orders; nil unless the listing ships internationally.
	InternationalShippingPriceCents *int64    `json:"internationalShippingPrice,omitempty"`
	CreatedAt                       time.Time `json:"createdAt"`
}

func ValidPackageSize(s PackageSize) bool {
	_, ok := PackageSizes[s]
	return ok
}

func ValidShippingPolicy(p ShippingPolicy) bool {
	switch p {
	case ShippingBuyerPays, ShippingSellerPays, ShippingInternational:
		return true
	}
	return false
}

func ValidCondition(c Condition) bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionVintage:
		return true
	}
	return false
}
