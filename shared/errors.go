package shared

import "fmt"

// Code is the machine-readable error taxonomy of §7: Config, Network,
// Notary, TLS, Http, Parse, Policy, Crypto, Io.
type Code string

const (
	CodeConfig  Code = "config"
	CodeNetwork Code = "network"
	CodeNotary  Code = "notary"
	CodeTLS     Code = "tls"
	CodeHTTP    Code = "http"
	CodeParse   Code = "parse"
	CodePolicy  Code = "policy"
	CodeCrypto  Code = "crypto"
	CodeIO      Code = "io"
)

// ExitCode maps a taxonomy code to the process exit code of §6.
func (c Code) ExitCode() int {
	switch c {
	case CodeConfig:
		return 2
	case CodeNetwork:
		return 3
	case CodeNotary:
		return 4
	case CodeHTTP:
		return 5
	case CodeParse:
		return 6
	case CodePolicy:
		return 7
	case CodeCrypto, CodeTLS:
		return 8
	case CodeIO:
		return 3
	default:
		return 1
	}
}

// AttestError is the base error type for all library errors, grounded on
// libclient.ReclaimError: a stable code plus a single-line human message.
type AttestError struct {
	Code    Code
	Subtype string // e.g. "ProviderUnknown", "NotaryUnreachable"
	Message string
	Cause   error
}

func (e *AttestError) Error() string {
	subtype := e.Subtype
	if subtype == "" {
		subtype = string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", subtype, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", subtype, e.Message)
}

func (e *AttestError) Unwrap() error { return e.Cause }

func newErr(code Code, subtype, message string, cause error) *AttestError {
	return &AttestError{Code: code, Subtype: subtype, Message: message, Cause: cause}
}

// Config errors.
func NewConfigError(field, message string) *AttestError {
	return newErr(CodeConfig, "Config", fmt.Sprintf("field %q: %s", field, message), nil)
}

func NewProviderUnknownError(providerID string) *AttestError {
	return newErr(CodeConfig, "ProviderUnknown", fmt.Sprintf("unknown provider %q", providerID), nil)
}

func NewBuilderInputMissingError(field string) *AttestError {
	return newErr(CodeConfig, "BuilderInputMissing", fmt.Sprintf("required credential field %q is empty", field), nil)
}

// Network / Notary errors.
func NewNotaryUnreachableError(target string, cause error) *AttestError {
	return newErr(CodeNetwork, "NotaryUnreachable", fmt.Sprintf("failed to reach notary at %s", target), cause)
}

func NewNotaryRejectedError(reason string) *AttestError {
	return newErr(CodeNotary, "NotaryRejected", reason, nil)
}

func NewNotaryProtocolError(step string, cause error) *AttestError {
	return newErr(CodeNotary, "NotaryProtocol", fmt.Sprintf("protocol error during %s", step), cause)
}

func NewCapExceededError(which string, limit int) *AttestError {
	return newErr(CodeNetwork, "CapExceeded", fmt.Sprintf("%s data exceeded cap of %d bytes", which, limit), nil)
}

// TLS / HTTP errors.
func NewTLSError(message string, cause error) *AttestError {
	return newErr(CodeTLS, "TLS", message, cause)
}

func NewHTTPStatusError(code int) *AttestError {
	return newErr(CodeHTTP, "HttpStatus", fmt.Sprintf("unexpected status code %d", code), nil)
}

func NewResponseTruncatedError(cause error) *AttestError {
	return newErr(CodeHTTP, "ResponseTruncated", "response ended before framing completed", cause)
}

func NewRequestWriteFailedError(cause error) *AttestError {
	return newErr(CodeHTTP, "RequestWriteFailed", "failed to write request to MPC-TLS stream", cause)
}

func NewUnexpectedContentTypeError(contentType string) *AttestError {
	return newErr(CodeHTTP, "UnexpectedContentType", fmt.Sprintf("unexpected content-type %q", contentType), nil)
}

// Parse errors.
func NewFieldMissingError(name string) *AttestError {
	return newErr(CodeParse, "FieldMissing", fmt.Sprintf("required field %q not found in response", name), nil)
}

func NewParseError(message string, cause error) *AttestError {
	return newErr(CodeParse, "Parse", message, cause)
}

// Policy errors.
func NewPolicyViolationError(field string) *AttestError {
	return newErr(CodePolicy, "PolicyViolation", fmt.Sprintf("field %q is not in the provider's disclosable set", field), nil)
}

func NewRedactionViolationError(message string) *AttestError {
	return newErr(CodePolicy, "RedactionViolation", message, nil)
}

// Crypto errors.
func NewNotarySignatureInvalidError(cause error) *AttestError {
	return newErr(CodeCrypto, "NotarySignatureInvalid", "notary signature failed verification", cause)
}

func NewServerIdentityMismatchError(expected, got string) *AttestError {
	return newErr(CodeCrypto, "ServerIdentityMismatch", fmt.Sprintf("expected host %q, certificate identifies %q", expected, got), nil)
}

func NewCommitmentOpeningInvalidError(spanIndex int) *AttestError {
	return newErr(CodeCrypto, "CommitmentOpeningInvalid", fmt.Sprintf("opening for span %d does not match its commitment", spanIndex), nil)
}

func NewDisclosurePolicyViolationError(message string) *AttestError {
	return newErr(CodeCrypto, "DisclosurePolicyViolation", message, nil)
}

// IO errors.
func NewScopeLockedError(scope string) *AttestError {
	return newErr(CodeIO, "ScopeLocked", fmt.Sprintf("scope %q is already locked by another run", scope), nil)
}

func NewArtifactVersionUnsupportedError(got byte) *AttestError {
	return newErr(CodeIO, "ArtifactVersionUnsupported", fmt.Sprintf("unsupported artifact version %d", got), nil)
}

func NewIOError(message string, cause error) *AttestError {
	return newErr(CodeIO, "Io", message, cause)
}
