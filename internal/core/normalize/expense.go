package normalize

import (
	"strings"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

// UnitPriceDecimals is the precision of derived price-per-unit values.
const UnitPriceDecimals = 3

// Expense converts the raw AI answer for a receipt into a typed record.
func Expense(raw string, expenseType domain.ExpenseType, defaultCurrency string) (domain.ExpenseExtraction, error) {
	fields := map[string]any{}
	if err := DecodeObject(raw, &fields); err != nil {
		return domain.ExpenseExtraction{}, err
	}

	out := domain.ExpenseExtraction{
		ExpenseType: expenseType,
		Merchant:    Text(pick(fields, "merchant", "merchantName", "vendor", "station")),
		Date:        Date(Text(pick(fields, "date", "transactionDate", "txDate"))),
		Amount:      Amount(pick(fields, "amount", "total", "totalAmount", "grandTotal")),
		Currency:    Currency(Text(pick(fields, "currency", "currencyCode")), defaultCurrency),
		Quantity:    Amount(pick(fields, "quantity", "liters", "litres", "volume")),
		Unit:        strings.ToLower(Text(pick(fields, "unit", "quantityUnit"))),
		UnitPrice:   Amount(pick(fields, "unitPrice", "pricePerUnit", "pricePerLiter")),
		FuelType:    strings.ToLower(Text(pick(fields, "fuelType", "fuel"))),
		Confidence:  Confidence(pick(fields, "confidence")),
	}
	if expenseType == domain.ExpenseFuel && out.Quantity != nil && out.Unit == "" {
		out.Unit = "l"
	}
	if out.UnitPrice == nil && out.Amount != nil && out.Quantity != nil {
		derived := Round(*out.Amount / *out.Quantity, UnitPriceDecimals)
		out.UnitPrice = positive(derived)
	}
	return out, nil
}
