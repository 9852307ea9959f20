package ledger

// Details captures the structured payload attached to a transaction. Exactly
// one of the per-type blocks is set, matching the transaction Type; the flat
// fields carry provider response data shared by all types.
type Details struct {
	Airtime     *AirtimeDetails     `json:"airtime,omitempty"`
	Data        *DataDetails        `json:"data,omitempty"`
	Electricity *ElectricityDetails `json:"electricity,omitempty"`
	Cable       *CableDetails       `json:"cable,omitempty"`
	Funding     *FundingDetails     `json:"funding,omitempty"`

	ProviderName string            `json:"provider_name,omitempty"`
	ProviderRef  string            `json:"provider_ref,omitempty"`
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// AirtimeDetails records an airtime top-up destination.
type AirtimeDetails struct {
	PhoneNumber string `json:"phone_number"`
}

// DataDetails records a data bundle purchase.
type DataDetails struct {
	PhoneNumber string `json:"phone_number"`
	PlanID      string `json:"plan_id,omitempty"`
	PlanName    string `json:"plan_name,omitempty"`
}

// ElectricityDetails records a prepaid meter top-up and the token issued.
type ElectricityDetails struct {
	MeterNumber string `json:"meter_number"`
	Token       string `json:"token,omitempty"`
	Units       string `json:"units,omitempty"`
}

// CableDetails records a cable subscription renewal.
type CableDetails struct {
	SmartcardNumber string `json:"smartcard_number"`
	PackageID       string `json:"package_id,omitempty"`
	PackageName     string `json:"package_name,omitempty"`
}

// FundingDetails records a wallet funding attempt through the payment gateway.
type FundingDetails struct {
	PaymentMethod    string `json:"payment_method"`
	Email            string `json:"email,omitempty"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	Channel          string `json:"channel,omitempty"`
	GatewayResponse  string `json:"gateway_response,omitempty"`
}
