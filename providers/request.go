package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zkp2p/tlsn-attest/shared"
)

const defaultUserAgent = "tlsn-attest/1.0"

// SecretRange marks a [start,end) byte range of a built request that
// carries authentication material and must be redacted.
type SecretRange struct {
	Start, End int
}

// BuildRequest renders an HTTP/1.1 request for the named template,
// resolving {param} placeholders from params, and reports which byte
// ranges hold secret material. Grounded on providers.CreateRequest's
// header emission order: request line, Host, Content-Length,
// Connection: close, Accept: */*, Accept-Encoding: identity, User-Agent,
// then the rest of the profile's headers, then the credential headers.
// Accept is always */*: a profile's own Accept entry is dropped. A
// profile whose Headers carry a User-Agent entry supplies that header
// itself, in place of the built-in one. Otherwise userAgent overrides
// defaultUserAgent when the caller supplies one (a SessionConfig's
// USER_AGENT setting, typically); omit it to keep the module default.
func BuildRequest(profile Profile, templateName string, creds Credentials, params map[string]string, userAgent ...string) ([]byte, []SecretRange, error) {
	tmpl, ok := profile.RequestBuilders[templateName]
	if !ok {
		return nil, nil, shared.NewBuilderInputMissingError(templateName)
	}

	if creds.CookieStr == "" && creds.AuthorisationHeader == "" && len(creds.Headers) == 0 {
		return nil, nil, shared.NewBuilderInputMissingError("credentials")
	}

	path := tmpl.Path
	for k, v := range params {
		placeholder := "{" + k + "}"
		if !strings.Contains(path, placeholder) {
			continue
		}
		path = strings.ReplaceAll(path, placeholder, v)
	}
	if strings.Contains(path, "{") {
		return nil, nil, shared.NewBuilderInputMissingError("path parameter")
	}

	type secretHeader struct {
		name  string
		value string
	}
	var secretHeaders []secretHeader
	if creds.CookieStr != "" {
		secretHeaders = append(secretHeaders, secretHeader{"Cookie", creds.CookieStr})
	}
	if creds.AuthorisationHeader != "" {
		secretHeaders = append(secretHeaders, secretHeader{"Authorization", creds.AuthorisationHeader})
	}
	secretKeys := make([]string, 0, len(creds.Headers))
	for k := range creds.Headers {
		secretKeys = append(secretKeys, k)
	}
	sort.Strings(secretKeys)
	for _, k := range secretKeys {
		secretHeaders = append(secretHeaders, secretHeader{k, creds.Headers[k]})
	}

	publicHeaderKeys := make([]string, 0, len(tmpl.Headers))
	for k := range tmpl.Headers {
		publicHeaderKeys = append(publicHeaderKeys, k)
	}
	sort.Strings(publicHeaderKeys)

	hasUA := false
	for _, k := range publicHeaderKeys {
		if strings.EqualFold(k, "User-Agent") {
			hasUA = true
		}
	}

	ua := defaultUserAgent
	if len(userAgent) > 0 && userAgent[0] != "" {
		ua = userAgent[0]
	}

	lines := []string{
		fmt.Sprintf("%s %s HTTP/1.1", tmpl.Method, path),
		fmt.Sprintf("Host: %s", profile.Host),
		"Content-Length: 0",
		"Connection: close",
		"Accept: */*",
		"Accept-Encoding: identity",
	}
	if !hasUA {
		lines = append(lines, fmt.Sprintf("User-Agent: %s", ua))
	}
	for _, k := range publicHeaderKeys {
		// Accept is a required header (Host, User-Agent, Accept,
		// Accept-Encoding, Connection are all mandated); a profile's own
		// Headers entry for it is silently dropped rather than emitted a
		// second time with a different value.
		if strings.EqualFold(k, "Accept") {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", k, tmpl.Headers[k]))
	}

	var buf strings.Builder
	buf.WriteString(strings.Join(lines, "\r\n"))
	buf.WriteString("\r\n")

	// Each secret header's name stays reveal (it carries no credential
	// material); only the value substring is marked redact, so the span
	// never covers the "Cookie: "/"Authorization: " prefix.
	var secretRanges []SecretRange
	for _, h := range secretHeaders {
		buf.WriteString(h.name)
		buf.WriteString(": ")
		valueStart := buf.Len()
		buf.WriteString(h.value)
		secretRanges = append(secretRanges, SecretRange{Start: valueStart, End: buf.Len()})
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")

	return []byte(buf.String()), secretRanges, nil
}
