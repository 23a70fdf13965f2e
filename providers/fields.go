package providers

// FieldRange is a resolved field: its semantic name and the [start,end)
// byte range within the response body (not the full response) at which
// its JSON value sits.
type FieldRange struct {
	Name       string
	Start, End int
}

// LocateFields resolves every entry in the profile's field catalog against
// a JSON response body, returning exact byte ranges via the offset-
// preserving parse tree in json_positioned.go. A field present in the
// catalog but absent from this particular response is reported via
// shared.NewFieldMissingError and the whole call fails: callers that only
// need the fields actually present should filter the catalog first.
func LocateFields(body []byte, catalog []FieldLocator) ([]FieldRange, error) {
	out := make([]FieldRange, 0, len(catalog))
	for _, f := range catalog {
		r, err := locateJSONPathByteRange(body, f.JSONPath, f.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// LocateAvailableFields is like LocateFields but skips catalog entries not
// present in this response instead of failing the whole call.
func LocateAvailableFields(body []byte, catalog []FieldLocator) []FieldRange {
	out := make([]FieldRange, 0, len(catalog))
	for _, f := range catalog {
		r, err := locateJSONPathByteRange(body, f.JSONPath, f.Name)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}
