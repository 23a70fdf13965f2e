package providers

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"net/textproto"

	"github.com/zkp2p/tlsn-attest/shared"
)

// ParsedResponse is the result of framing a raw HTTP/1.1 response: the
// status, headers, and the byte offset at which the body begins within
// the original buffer. Grounded on providers/http_parser.go's
// parseHTTPResponseBytes, simplified to stdlib bufio/textproto.
type ParsedResponse struct {
	StatusCode int
	Header     http.Header
	BodyStart  int
	Body       []byte
}

// ParseResponse frames raw, returning ResponseTruncated errors when the
// status line or headers never complete.
func ParseResponse(raw []byte) (*ParsedResponse, error) {
	br := bytes.NewReader(raw)
	reader := bufio.NewReader(br)
	tp := textproto.NewReader(reader)

	statusLine, err := tp.ReadLine()
	if err != nil {
		return nil, shared.NewResponseTruncatedError(err)
	}
	var httpVersion string
	var statusCode int
	var statusMessage string
	if n, scanErr := fmt.Sscanf(statusLine, "%s %d %s", &httpVersion, &statusCode, &statusMessage); n < 2 {
		return nil, shared.NewParseError("malformed status line", scanErr)
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, shared.NewResponseTruncatedError(err)
	}

	// bufio.Reader pulls ahead from br in chunks up to its buffer size
	// (4096 bytes by default), so "len(raw) - reader.Buffered()" only
	// gives the right header length when the whole response fits in one
	// fill. len(raw)-br.Len() is the total bytes bufio has ever pulled
	// from br; subtracting reader.Buffered() (bytes pulled but not yet
	// handed to tp) leaves exactly the header bytes tp has consumed,
	// regardless of how many fills that took.
	consumed := len(raw) - br.Len() - reader.Buffered()
	body := raw[consumed:]

	return &ParsedResponse{
		StatusCode: statusCode,
		Header:     http.Header(mimeHeader),
		BodyStart:  consumed,
		Body:       body,
	}, nil
}
