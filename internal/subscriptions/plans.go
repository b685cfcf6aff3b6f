package subscriptions

// Plan is one purchasable subscription tier. Prices are whole KES.
type Plan struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	DurationDays int      `json:"durationDays"`
	Features     []string `json:"features"`
}

var plans = map[string]Plan{
	"monthly": {
		ID:           "monthly",
		Name:         "Monthly Unlimited",
		Description:  "Unlimited questions for one month",
		Price:        200,
		DurationDays: 30,
		Features: []string{
			"Unlimited questions",
			"Priority AI processing",
			"Advanced explanations",
			"Progress tracking",
			"Achievement badges",
			"Priority support",
			"Family dashboard",
		},
	},
	"yearly": {
		ID:           "yearly",
		Name:         "Yearly Unlimited",
		Description:  "Unlimited questions for one year",
		Price:        2000,
		DurationDays: 365,
		Features: []string{
			"All monthly features",
			"Save 17% compared to monthly",
			"Extended progress history",
			"Premium support",
			"Early access to new features",
		},
	},
}

// Plans lists the catalogue in a stable order.
func Plans() []Plan {
	return []Plan{plans["monthly"], plans["yearly"]}
}

// PlanByID resolves a plan, reporting whether it exists.
func PlanByID(id string) (Plan, bool) {
	p, ok := plans[id]
	return p, ok
}
