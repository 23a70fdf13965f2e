package providers

import "github.com/zkp2p/tlsn-attest/shared"

// Credentials carry the secret material the request builder folds into a
// request and must mark redact in the resulting SentPlan. Owned exclusively
// by the HTTP driver for the lifetime of one session.
type Credentials struct {
	CookieStr           string
	AuthorisationHeader string
	Headers             map[string]string
}

// RequestTemplate describes one named request a provider profile can build
// (every registered provider exposes a single template; the registry is
// kept a map so a profile could add more without changing its shape).
type RequestTemplate struct {
	Name    string
	Method  string
	Path    string // may contain {param} placeholders resolved from BuildRequest's params
	Headers map[string]string
}

// FieldLocator names the semantic field and its JSON path into the
// response body, dot-separated per spec.md's field_catalog contract.
type FieldLocator struct {
	Name     string
	JSONPath string
}

// ID is the closed, compile-time set of provider identifiers.
type ID string

const (
	ProviderWise   ID = "wise"
	ProviderPayPal ID = "paypal"
)

// Profile is the closed-set record describing one payment provider:
// endpoint, request template(s), field catalog, disclosable fields.
type Profile struct {
	ID                ID
	Host              string
	Port              int
	RequestBuilders   map[string]RequestTemplate
	FieldCatalog      []FieldLocator
	DisclosableFields map[string]bool
}

// Field looks up a named locator in the catalog.
func (p Profile) Field(name string) (FieldLocator, bool) {
	for _, f := range p.FieldCatalog {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLocator{}, false
}

// IsDisclosable reports whether name is in the profile's disclosable set.
func (p Profile) IsDisclosable(name string) bool {
	return p.DisclosableFields[name]
}

// DefaultRequestTemplateName returns the sole entry of RequestBuilders, for
// CLI callers that name a provider but not a template. Every profile in the
// registry exposes exactly one; a profile that ever grows a second
// template stops being usable through this shortcut, which is the point —
// ambiguity becomes a BuilderInputMissing error instead of a silent guess.
func (p Profile) DefaultRequestTemplateName() (string, error) {
	if len(p.RequestBuilders) != 1 {
		return "", shared.NewBuilderInputMissingError("request template (profile exposes none or more than one)")
	}
	for name := range p.RequestBuilders {
		return name, nil
	}
	return "", shared.NewBuilderInputMissingError("request template")
}
