package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/zkp2p/tlsn-attest/shared"
)

// profileSchema is the structural contract every entry in the registry must
// satisfy. Grounded on the teacher's ValidateProviderParams/
// ValidateProviderSecretParams, which compile a gojsonschema.Schema once and
// validate a provider's template and params against it before either is
// trusted; here the "params" being validated are the registry's own
// compile-time Profile literals, not caller-supplied input.
const profileSchema = `{
  "type": "object",
  "required": ["ID", "Host", "Port", "RequestBuilders", "FieldCatalog", "DisclosableFields"],
  "properties": {
    "ID": {"type": "string", "minLength": 1},
    "Host": {"type": "string", "minLength": 1},
    "Port": {"type": "integer", "minimum": 1, "maximum": 65535},
    "RequestBuilders": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["Name", "Method", "Path"],
        "properties": {
          "Name": {"type": "string", "minLength": 1},
          "Method": {"type": "string", "enum": ["GET", "POST", "PUT", "DELETE", "PATCH"]},
          "Path": {"type": "string", "minLength": 1, "pattern": "^/"}
        }
      }
    },
    "FieldCatalog": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["Name", "JSONPath"],
        "properties": {
          "Name": {"type": "string", "minLength": 1},
          "JSONPath": {"type": "string", "pattern": "^\\$"}
        }
      }
    },
    "DisclosableFields": {"type": "object"}
  }
}`

// compiledProfileSchema is initialized as a plain variable (not inside an
// init func) so registryErrors, which calls ValidateProfile during its own
// initializer, is ordered after it by Go's package-level variable
// dependency analysis — an init func's side effects aren't visible to that
// ordering, only to later init funcs.
var compiledProfileSchema = compileProfileSchema()

func compileProfileSchema() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(profileSchema))
	if err != nil {
		// profileSchema is a compile-time literal; a failure here is a
		// programming error in this file, not a condition any caller of
		// this package could work around.
		panic(fmt.Sprintf("providers: profile schema failed to compile: %v", err))
	}
	return schema
}

// ValidateProfile checks p's shape against profileSchema, then cross-checks
// that every name in DisclosableFields actually appears in FieldCatalog — a
// constraint gojsonschema can't express across sibling keys, so it's
// checked directly the same way the teacher layers ValidateProviderParams
// (schema) under its own additional structural checks.
func ValidateProfile(p Profile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return shared.NewConfigError("profile", fmt.Sprintf("failed to marshal %s for validation: %v", p.ID, err))
	}

	result, err := compiledProfileSchema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return shared.NewConfigError("profile", fmt.Sprintf("%s: schema validation failed: %v", p.ID, err))
	}
	if !result.Valid() {
		var b strings.Builder
		for _, e := range result.Errors() {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(e.String())
		}
		return shared.NewConfigError("profile", fmt.Sprintf("%s: %s", p.ID, b.String()))
	}

	for name := range p.DisclosableFields {
		if _, ok := p.Field(name); !ok {
			return shared.NewConfigError("profile", fmt.Sprintf("%s: disclosable field %q is not in the field catalog", p.ID, name))
		}
	}
	return nil
}
