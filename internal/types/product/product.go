package product

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// Product данные товара из каталога, которых достаточно для позиции корзины
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// catalogProduct формат product-service: gorm модель без json тега у ID
type catalogProduct struct {
	ID    json.Number     `json:"ID"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// UnmarshalJSON принимает как наш формат, так и формат product-service ("ID")
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		catalogProduct
		LowerID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Name = raw.Name
	p.Price = raw.Price
	p.ID = raw.ID.String()

	if len(raw.LowerID) > 0 {
		var s string
		if err := json.Unmarshal(raw.LowerID, &s); err == nil {
			p.ID = s
			return nil
		}
		var n json.Number
		if err := json.Unmarshal(raw.LowerID, &n); err != nil {
			return err
		}
		p.ID = n.String()
	}

	return nil
}

// NumericID возвращает ID в виде числа, как его ждут order/inventory сервисы
func (p Product) NumericID() (uint64, error) {
	return strconv.ParseUint(p.ID, 10, 64)
}
