package provider

// Plan is a purchasable bundle (data plan or cable package) with a fixed price.
type Plan struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Validity string `json:"validity"`
}

// Amounts are in kobo.
var dataPlans = []Plan{
	{ID: "mtn-1gb-daily", Provider: "mtn", Name: "1GB (24 Hours)", Amount: 30_000, Validity: "1 day"},
	{ID: "mtn-1.5gb", Provider: "mtn", Name: "1.5GB (30 Days)", Amount: 100_000, Validity: "30 days"},
	{ID: "mtn-3gb", Provider: "mtn", Name: "3GB (30 Days)", Amount: 150_000, Validity: "30 days"},
	{ID: "mtn-10gb", Provider: "mtn", Name: "10GB (30 Days)", Amount: 300_000, Validity: "30 days"},
	{ID: "airtel-1.5gb", Provider: "airtel", Name: "1.5GB (30 Days)", Amount: 100_000, Validity: "30 days"},
	{ID: "airtel-3gb", Provider: "airtel", Name: "3GB (30 Days)", Amount: 150_000, Validity: "30 days"},
	{ID: "glo-2gb", Provider: "glo", Name: "2GB (30 Days)", Amount: 100_000, Validity: "30 days"},
	{ID: "glo-5gb", Provider: "glo", Name: "5GB (30 Days)", Amount: 200_000, Validity: "30 days"},
	{ID: "9mobile-1gb", Provider: "9mobile", Name: "1GB (30 Days)", Amount: 100_000, Validity: "30 days"},
	{ID: "9mobile-3gb", Provider: "9mobile", Name: "3GB (30 Days)", Amount: 200_000, Validity: "30 days"},
}

var cablePackages = []Plan{
	{ID: "dstv-access", Provider: "dstv", Name: "DStv Access", Amount: 200_000, Validity: "1 month"},
	{ID: "dstv-family", Provider: "dstv", Name: "DStv Family", Amount: 400_000, Validity: "1 month"},
	{ID: "dstv-compact", Provider: "dstv", Name: "DStv Compact", Amount: 790_000, Validity: "1 month"},
	{ID: "dstv-premium", Provider: "dstv", Name: "DStv Premium", Amount: 1_890_000, Validity: "1 month"},
	{ID: "gotv-lite", Provider: "gotv", Name: "GOtv Lite", Amount: 90_000, Validity: "1 month"},
	{ID: "gotv-value", Provider: "gotv", Name: "GOtv Value", Amount: 190_000, Validity: "1 month"},
	{ID: "gotv-plus", Provider: "gotv", Name: "GOtv Plus", Amount: 310_000, Validity: "1 month"},
	{ID: "startimes-basic", Provider: "startimes", Name: "StarTimes Basic", Amount: 170_000, Validity: "1 month"},
	{ID: "startimes-classic", Provider: "startimes", Name: "StarTimes Classic", Amount: 250_000, Validity: "1 month"},
}

// DataPlans returns the data bundle catalog, optionally filtered by provider code.
func DataPlans(providerCode string) []Plan {
	return filterPlans(dataPlans, providerCode)
}

// CablePackages returns the cable package catalog, optionally filtered by provider code.
func CablePackages(providerCode string) []Plan {
	return filterPlans(cablePackages, providerCode)
}

// FindDataPlan looks up a data plan by identifier.
func FindDataPlan(id string) (Plan, bool) {
	return findPlan(dataPlans, id)
}

// FindCablePackage looks up a cable package by identifier.
func FindCablePackage(id string) (Plan, bool) {
	return findPlan(cablePackages, id)
}

func filterPlans(plans []Plan, providerCode string) []Plan {
	if providerCode == "" {
		return append([]Plan(nil), plans...)
	}
	out := make([]Plan, 0)
	for _, p := range plans {
		if p.Provider == providerCode {
			out = append(out, p)
		}
	}
	return out
}

func findPlan(plans []Plan, id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
