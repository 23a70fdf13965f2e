package providers

import (
	"strconv"
	"strings"

	gojson "github.com/coreos/go-json"
	jp "github.com/reclaimprotocol/jsonpathplus-go"
	"github.com/zkp2p/tlsn-attest/shared"
)

// locateJSONPathByteRange resolves a field's JSONPath against body and
// returns the exact [start,end) byte range its value occupies, by running
// jsonpathplus-go's JSONPath evaluator against the raw bytes and then
// cross-walking coreos/go-json's offset-carrying parse tree along the same
// path to recover the byte offsets JSONPath itself discards. name is the
// field's semantic name, used only to shape the returned error.
func locateJSONPathByteRange(body []byte, jsonPathExpr, name string) (FieldRange, error) {
	results, err := jp.Query(jsonPathExpr, string(body))
	if err != nil || len(results) == 0 {
		return FieldRange{}, shared.NewFieldMissingError(name)
	}

	var root gojson.Node
	if err := gojson.Unmarshal(body, &root); err != nil {
		return FieldRange{}, shared.NewParseError("failed to parse response body for byte offsets", err)
	}

	segments := jsonPathToSegments(results[0].Path)
	node, err := findNodeBySegments(&root, segments)
	if err != nil {
		return FieldRange{}, shared.NewFieldMissingError(name)
	}

	// coreos/go-json's Node.End is the index of the value's last byte, not
	// a Go slice's exclusive bound, so the byte range is [Start, End+1).
	start, end := node.Start, node.End+1
	if start < 0 || end > len(body) || start > end {
		return FieldRange{}, shared.NewParseError("field "+name+" resolved to an out-of-bounds byte range", nil)
	}
	return FieldRange{Name: name, Start: start, End: end}, nil
}

// jsonPathToSegments converts a JSONPath like $.a[1].b to segments ["a","1","b"].
func jsonPathToSegments(path string) []string {
	p := strings.TrimPrefix(path, "$")
	p = strings.TrimPrefix(p, ".")
	if p == "" {
		return nil
	}
	segments := make([]string, 0)
	cur := strings.Builder{}
	inBracket := false
	for _, r := range p {
		switch r {
		case '.':
			if !inBracket {
				if cur.Len() > 0 {
					segments = append(segments, cur.String())
					cur.Reset()
				}
				continue
			}
		case '[':
			if cur.Len() > 0 {
				segments = append(segments, cur.String())
				cur.Reset()
			}
			inBracket = true
			continue
		case ']':
			if inBracket {
				seg := cur.String()
				cur.Reset()
				inBracket = false
				seg = strings.Trim(seg, "'\"")
				segments = append(segments, seg)
				continue
			}
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		segments = append(segments, cur.String())
	}
	return segments
}

// findNodeBySegments walks a coreos/go-json Node tree following segments.
func findNodeBySegments(node *gojson.Node, segments []string) (*gojson.Node, error) {
	cur := node
	for i, seg := range segments {
		switch v := cur.Value.(type) {
		case map[string]gojson.Node:
			next, ok := v[seg]
			if !ok {
				return nil, shared.NewParseError("object key \""+seg+"\" not found at segment "+strconv.Itoa(i), nil)
			}
			cur = &next
		case []gojson.Node:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, shared.NewParseError("invalid array index \""+seg+"\" at segment "+strconv.Itoa(i), nil)
			}
			cur = &v[idx]
		default:
			return nil, shared.NewParseError("cannot traverse into value at segment "+strconv.Itoa(i), nil)
		}
	}
	return cur, nil
}
