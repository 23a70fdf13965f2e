package providers

import (
	"strings"
	"testing"
)

func TestLookupKnownProviders(t *testing.T) {
	for _, id := range []ID{ProviderWise, ProviderPayPal} {
		p, err := Lookup(id)
		if err != nil {
			t.Fatalf("unexpected error looking up %s: %v", id, err)
		}
		if p.ID != id {
			t.Fatalf("expected profile id %s, got %s", id, p.ID)
		}
		if len(p.FieldCatalog) == 0 {
			t.Fatalf("%s: expected a non-empty field catalog", id)
		}
	}
}

func TestLookupUnknownProvider(t *testing.T) {
	_, err := Lookup(ID("amazon"))
	if err == nil {
		t.Fatal("expected ProviderUnknown error for unregistered provider")
	}
	if !strings.Contains(err.Error(), "ProviderUnknown") {
		t.Fatalf("expected ProviderUnknown error, got: %v", err)
	}
}

func TestBuildRequestRedactsCredentials(t *testing.T) {
	profile, err := Lookup(ProviderWise)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	creds := Credentials{CookieStr: "session=topsecret", AuthorisationHeader: "Bearer abc123"}
	params := map[string]string{"profile_id": "42", "transaction_id": "999"}

	data, secrets, err := BuildRequest(profile, "transfer_details", creds, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "GET /gateway/v3/profiles/42/transfers/999 HTTP/1.1") {
		t.Fatalf("request line missing resolved params: %s", data)
	}
	if len(secrets) != 2 {
		t.Fatalf("expected one secret range per credential value, got %d", len(secrets))
	}

	cookieBytes := data[secrets[0].Start:secrets[0].End]
	if string(cookieBytes) != "session=topsecret" {
		t.Fatalf("cookie secret range should cover exactly the cookie value, got %q", cookieBytes)
	}
	authBytes := data[secrets[1].Start:secrets[1].End]
	if string(authBytes) != "Bearer abc123" {
		t.Fatalf("authorization secret range should cover exactly the header value, got %q", authBytes)
	}

	if strings.Contains(string(cookieBytes), "Cookie:") || strings.Contains(string(authBytes), "Authorization:") {
		t.Fatalf("secret ranges must not cover the header name, got cookie=%q auth=%q", cookieBytes, authBytes)
	}
	if !strings.Contains(string(data), "Cookie: session=topsecret") {
		t.Fatalf("expected the Cookie header name to remain outside any secret range: %s", data)
	}
	if !strings.Contains(string(data), "Authorization: Bearer abc123") {
		t.Fatalf("expected the Authorization header name to remain outside any secret range: %s", data)
	}
}

func TestBuildRequestCarriesMandatoryHeaders(t *testing.T) {
	profile, err := Lookup(ProviderWise)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	creds := Credentials{CookieStr: "s=1"}
	params := map[string]string{"profile_id": "1", "transaction_id": "2"}

	data, _, err := BuildRequest(profile, "transfer_details", creds, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Accept: */*", "Accept-Encoding: identity", "Connection: close", "User-Agent: "} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected request to carry %q: %s", want, data)
		}
	}
	if strings.Count(string(data), "Accept:") != 1 {
		t.Fatalf("expected exactly one Accept header, got request: %s", data)
	}
}

func TestBuildRequestMissingCredentials(t *testing.T) {
	profile, _ := Lookup(ProviderWise)
	_, _, err := BuildRequest(profile, "transfer_details", Credentials{}, map[string]string{"profile_id": "1", "transaction_id": "2"})
	if err == nil {
		t.Fatal("expected BuilderInputMissing error for empty credentials")
	}
}

func TestBuildRequestUnresolvedParam(t *testing.T) {
	profile, _ := Lookup(ProviderWise)
	creds := Credentials{CookieStr: "s=1"}
	_, _, err := BuildRequest(profile, "transfer_details", creds, map[string]string{"profile_id": "1"})
	if err == nil {
		t.Fatal("expected BuilderInputMissing error for unresolved transaction_id")
	}
}

func TestLocateFieldsExactRanges(t *testing.T) {
	body := []byte(`{"primaryAmount":"-120.00 USD","targetCurrency":"USD","resource":{"id":555},"visibleOn":"2026-01-01","title":"To Alex","status":"COMPLETED"}`)
	profile, _ := Lookup(ProviderWise)

	ranges, err := LocateFields(body, profile.FieldCatalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != len(profile.FieldCatalog) {
		t.Fatalf("expected %d ranges, got %d", len(profile.FieldCatalog), len(ranges))
	}
	for _, r := range ranges {
		if r.Start < 0 || r.End > len(body) || r.Start >= r.End {
			t.Fatalf("field %s has invalid range [%d,%d)", r.Name, r.Start, r.End)
		}
		extracted := string(body[r.Start:r.End])
		if strings.TrimSpace(extracted) == "" {
			t.Fatalf("field %s resolved to an empty byte range", r.Name)
		}
	}
}

func TestLocateFieldsMissingField(t *testing.T) {
	body := []byte(`{"primaryAmount":"-1.00 USD"}`)
	profile, _ := Lookup(ProviderWise)
	if _, err := LocateFields(body, profile.FieldCatalog); err == nil {
		t.Fatal("expected FieldMissing error when catalog entries are absent from the response")
	}
}

func TestLocateAvailableFieldsSkipsMissing(t *testing.T) {
	body := []byte(`{"primaryAmount":"-1.00 USD","status":"COMPLETED"}`)
	profile, _ := Lookup(ProviderWise)
	ranges := LocateAvailableFields(body, profile.FieldCatalog)
	if len(ranges) != 2 {
		t.Fatalf("expected 2 resolvable fields, got %d", len(ranges))
	}
}

func TestParseResponseFramesBodyOffset(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 13\r\n\r\n{\"status\":1}\n")
	parsed, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d", parsed.StatusCode)
	}
	if parsed.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header to be parsed, got %q", parsed.Header.Get("Content-Type"))
	}
	if !strings.HasPrefix(string(parsed.Body), "{\"status\":1}") {
		t.Fatalf("unexpected body: %q", parsed.Body)
	}
}

func TestParseResponseTruncated(t *testing.T) {
	if _, err := ParseResponse([]byte("HTTP/1.1 200")); err == nil {
		t.Fatal("expected ResponseTruncated error for incomplete status line")
	}
}

func TestValidateProfileAcceptsRegisteredProfiles(t *testing.T) {
	for _, id := range []ID{ProviderWise, ProviderPayPal} {
		p, err := Lookup(id)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", id, err)
		}
		if err := ValidateProfile(p); err != nil {
			t.Fatalf("%s: expected the registered profile to pass schema validation, got: %v", id, err)
		}
	}
}

func TestValidateProfileRejectsDisclosableFieldNotInCatalog(t *testing.T) {
	p, err := Lookup(ProviderWise)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.DisclosableFields = map[string]bool{"not_a_real_field": true}

	if err := ValidateProfile(p); err == nil {
		t.Fatal("expected a ConfigError when DisclosableFields names a field absent from FieldCatalog")
	}
}

func TestValidateProfileRejectsMalformedTemplate(t *testing.T) {
	p, err := Lookup(ProviderWise)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.RequestBuilders = map[string]RequestTemplate{
		"broken": {Name: "broken", Method: "TRACE", Path: "no-leading-slash"},
	}

	if err := ValidateProfile(p); err == nil {
		t.Fatal("expected a ConfigError for an unsupported method and a path missing its leading slash")
	}
}

func TestParseResponseFramesBodyOffsetPastDefaultBufferSize(t *testing.T) {
	header := "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n"
	body := strings.Repeat("a", 5000)
	raw := []byte(header + body)

	parsed, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.BodyStart != len(header) {
		t.Fatalf("expected body offset %d, got %d", len(header), parsed.BodyStart)
	}
	if string(parsed.Body) != body {
		t.Fatalf("expected body of length %d, got length %d", len(body), len(parsed.Body))
	}
}
