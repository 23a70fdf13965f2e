package providers

import "github.com/zkp2p/tlsn-attest/shared"

// registry is the closed, compile-time set of provider profiles.
var registry = map[ID]Profile{
	ProviderWise: {
		ID:   ProviderWise,
		Host: shared.GetEnvOrDefault("WISE_HOST", "wise.com"),
		Port: shared.GetEnvIntOrDefault("WISE_PORT", 443),
		RequestBuilders: map[string]RequestTemplate{
			"transfer_details": {
				Name:   "transfer_details",
				Method: "GET",
				Path:   "/gateway/v3/profiles/{profile_id}/transfers/{transaction_id}",
			},
		},
		FieldCatalog: []FieldLocator{
			{Name: "primary_amount", JSONPath: "$.primaryAmount"},
			{Name: "currency", JSONPath: "$.targetCurrency"},
			{Name: "resource.id", JSONPath: "$.resource.id"},
			{Name: "visible_on", JSONPath: "$.visibleOn"},
			{Name: "title", JSONPath: "$.title"},
			{Name: "status", JSONPath: "$.status"},
		},
		DisclosableFields: map[string]bool{
			"primary_amount": true,
			"currency":       true,
			"resource.id":    true,
			"visible_on":     true,
			"title":          true,
			"status":         true,
		},
	},
	ProviderPayPal: {
		ID:   ProviderPayPal,
		Host: shared.GetEnvOrDefault("PAYPAL_HOST", "www.paypal.com"),
		Port: shared.GetEnvIntOrDefault("PAYPAL_PORT", 443),
		RequestBuilders: map[string]RequestTemplate{
			"activity_details": {
				Name:   "activity_details",
				Method: "GET",
				Path:   "/myaccount/activities/details/inline/{transaction_id}",
			},
		},
		FieldCatalog: []FieldLocator{
			{Name: "status", JSONPath: "$.activity.status"},
			{Name: "gross_amount", JSONPath: "$.activity.grossAmount.value"},
		},
		DisclosableFields: map[string]bool{
			"status":       true,
			"gross_amount": true,
		},
	},
}

// registryErrors holds the result of validating every registry entry
// against profileSchema once at package init, rather than trusting the
// literals above to stay well-formed as the registry grows.
var registryErrors = func() map[ID]error {
	errs := make(map[ID]error, len(registry))
	for id, p := range registry {
		if err := ValidateProfile(p); err != nil {
			errs[id] = err
		}
	}
	return errs
}()

// Lookup returns the profile for id, or ProviderUnknown if id is not a
// member of the closed set. A profile that fails its schema validation is
// reported as a ConfigError rather than handed to a caller.
func Lookup(id ID) (Profile, error) {
	p, ok := registry[id]
	if !ok {
		return Profile{}, shared.NewProviderUnknownError(string(id))
	}
	if err := registryErrors[id]; err != nil {
		return Profile{}, err
	}
	return p, nil
}
