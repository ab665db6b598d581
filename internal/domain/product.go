package domain

import "time"

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

type SugarLevel string

const (
	SugarNone    SugarLevel = "0%"
	SugarQuarter SugarLevel = "25%"
	SugarHalf    SugarLevel = "50%"
	SugarLess    SugarLevel = "75%"
	SugarFull    SugarLevel = "100%"
)

type IceLevel string

const (
	IceNone    IceLevel = "none"
	IceLess    IceLevel = "less"
	IceRegular IceLevel = "regular"
	IceExtra   IceLevel = "extra"
)

var (
	AllSugarLevels = []SugarLevel{SugarNone, SugarQuarter, SugarHalf, SugarLess, SugarFull}
	AllIceLevels   = []IceLevel{IceNone, IceLess, IceRegular, IceExtra}
)

type SizeOption struct {
	Size     Size  `json:"size"`
	Modifier Money `json:"modifier"`
}

type AddOn struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
}

// Product is a catalog snapshot as seen at order time.
// SugarLevels and IceLevels list what the product offers; an empty list means every level.
type Product struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	BasePrice   Money        `json:"base_price"`
	Sizes       []SizeOption `json:"sizes"`
	AddOns      []AddOn      `json:"add_ons"`
	SugarLevels []SugarLevel `json:"sugar_levels"`
	IceLevels   []IceLevel   `json:"ice_levels"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (p *Product) SizeModifier(size Size) (Money, bool) {
	for _, s := range p.Sizes {
		if s.Size == size {
			return s.Modifier, true
		}
	}
	return 0, false
}

func (p *Product) AddOn(id int64) (AddOn, bool) {
	for _, a := range p.AddOns {
		if a.ID == id {
			return a, true
		}
	}
	return AddOn{}, false
}

func (p *Product) OffersSugar(level SugarLevel) bool {
	if len(p.SugarLevels) == 0 {
		for _, l := range AllSugarLevels {
			if l == level {
				return true
			}
		}
		return false
	}
	for _, l := range p.SugarLevels {
		if l == level {
			return true
		}
	}
	return false
}

func (p *Product) OffersIce(level IceLevel) bool {
	if len(p.IceLevels) == 0 {
		for _, l := range AllIceLevels {
			if l == level {
				return true
			}
		}
		return false
	}
	for _, l := range p.IceLevels {
		if l == level {
			return true
		}
	}
	return false
}
