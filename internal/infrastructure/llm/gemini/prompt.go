package gemini

import (
	"github.com/liliganster/tp-companion/internal/core/domain"
)

const expenseBasePrompt = `You read a single receipt or invoice.
Return one strict JSON object with keys:
merchant (string), date (YYYY-MM-DD), amount (number, grand total incl. tax), currency (ISO 4217 code),
confidence (number from 0 to 1).
Use null for anything you cannot read. No markdown, no extra text.
`

var expenseHints = map[domain.ExpenseType]string{
	domain.ExpenseFuel: `This is a fuel station receipt. Also return:
quantity (number, liters dispensed), unit ("l" or "kwh"), unitPrice (number, price per unit),
fuelType (one of "diesel", "gasoline", "lpg", "cng", "electric").`,
	domain.ExpenseParking: `This is a parking ticket or parking receipt. The merchant is the operator or car park name.`,
	domain.ExpenseToll:    `This is a road toll receipt. The merchant is the toll operator or motorway section.`,
	domain.ExpenseMeal:    `This is a restaurant or catering bill. Use the total after tips if printed.`,
	domain.ExpenseLodging: `This is a hotel or lodging invoice. The date is the checkout or invoice date.`,
}

func buildExpensePrompt(expenseType domain.ExpenseType) string {
	hint, ok := expenseHints[expenseType]
	if !ok {
		return expenseBasePrompt
	}
	return expenseBasePrompt + "\n" + hint
}

const callSheetPrompt = `You read a film or TV production call sheet.
Return one strict JSON object with keys:
projectName (string), productionCompany (string), date (YYYY-MM-DD, the shooting day),
callTime (HH:MM, general crew call), confidence (number from 0 to 1),
locations (array of objects with address (full postal address as printed) and label (e.g. "set", "base", "parking", "catering")).
List locations in the order they appear. Skip hospitals and emergency contacts.
Use null for anything you cannot read. No markdown, no extra text.`
