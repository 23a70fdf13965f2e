// Package notary implements the control-channel connection to the Notary:
// a websocket dial plus a small JSON session-setup envelope, grounded on
// libclient/websocket.go's ConnectToTEEK/ConnectToTEET (those two TEE
// endpoints collapse into this module's single Notary endpoint).
package notary

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zkp2p/tlsn-attest/shared"
	"go.uber.org/zap"
)

// Endpoint describes where and how to reach a Notary.
type Endpoint struct {
	Host string
	Port int
	TLS  bool
}

func (e Endpoint) url() string {
	scheme := "ws"
	if e.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/session", scheme, e.Host, e.Port)
}

// SetupRequest is the session-setup envelope sent to the Notary on
// connect, analogous to libclient's shared.Message envelope: a session
// id, the byte caps this run will enforce, and the attestation scheme.
type SetupRequest struct {
	SessionID         string `json:"session_id"`
	MaxSentBytes      int    `json:"max_sent_bytes"`
	MaxRecvBytes      int    `json:"max_recv_bytes"`
	AttestationScheme string `json:"attestation_scheme"`
}

// SetupResponse is the Notary's acknowledgement, carrying the key id it
// will sign attestations with.
type SetupResponse struct {
	SessionID     string `json:"session_id"`
	Accepted      bool   `json:"accepted"`
	RejectReason  string `json:"reject_reason,omitempty"`
	NotaryKeyHex  string `json:"notary_key_hex"`
}

// Client holds one Notary control-channel connection for the lifetime of
// a session.
type Client struct {
	logger *zap.Logger
	conn   *websocket.Conn

	SessionID    string
	NotaryKeyHex string // address-form key id the Notary announced at setup
}

// Connect dials the Notary and performs session setup, retrying the dial
// exactly once on NotaryUnreachable per the bounded-retry rule (grounded
// on the reconnect-once pattern in shared.RetryWithBackoff /
// shared.DefaultRetryConfig, now tuned to MaxAttempts=2).
func Connect(ctx context.Context, logger *zap.Logger, endpoint Endpoint, maxSentBytes, maxRecvBytes int) (*Client, error) {
	sessionID := uuid.NewString()
	req := SetupRequest{
		SessionID:         sessionID,
		MaxSentBytes:      maxSentBytes,
		MaxRecvBytes:      maxRecvBytes,
		AttestationScheme: "tlsn-attest/v1",
	}

	var client *Client
	err := shared.RetryWithBackoff(shared.DefaultRetryConfig(), func() error {
		c, dialErr := dial(ctx, logger, endpoint, req)
		if dialErr != nil {
			return dialErr
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func dial(ctx context.Context, logger *zap.Logger, endpoint Endpoint, req SetupRequest) (*Client, error) {
	target := endpoint.url()
	u, err := url.Parse(target)
	if err != nil {
		return nil, shared.NewConfigError("notary_endpoint", err.Error())
	}

	logger.Info("dialing notary", zap.String("url", u.String()))

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, shared.NewNotaryUnreachableError(target, err)
	}

	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, shared.NewNotaryProtocolError("session-setup-write", err)
	}

	var resp SetupResponse
	if err := conn.ReadJSON(&resp); err != nil {
		conn.Close()
		return nil, shared.NewNotaryProtocolError("session-setup-read", err)
	}
	if !resp.Accepted {
		conn.Close()
		return nil, shared.NewNotaryRejectedError(resp.RejectReason)
	}
	if resp.SessionID != req.SessionID {
		conn.Close()
		return nil, shared.NewNotaryProtocolError("session-id-mismatch", nil)
	}

	return &Client{logger: logger, conn: conn, SessionID: req.SessionID, NotaryKeyHex: resp.NotaryKeyHex}, nil
}

// SendCommitments forwards redaction commitments to the Notary ahead of
// the signature request. pipeline.Prove calls it once, after the provider
// exchange, with both the sent-side and recv-side commitments.
func (c *Client) SendCommitments(commitments any) error {
	if err := c.conn.WriteJSON(struct {
		Type        string `json:"type"`
		Commitments any    `json:"commitments"`
	}{Type: "commitments", Commitments: commitments}); err != nil {
		return shared.NewNotaryProtocolError("send-commitments", err)
	}
	return nil
}

// RequestSignature asks the Notary to sign the attestation body and
// returns the raw signature bytes it replies with.
func (c *Client) RequestSignature(body []byte) ([]byte, error) {
	if err := c.conn.WriteJSON(struct {
		Type string `json:"type"`
		Body string `json:"body"`
	}{Type: "sign", Body: encodeBody(body)}); err != nil {
		return nil, shared.NewNotaryProtocolError("request-signature-write", err)
	}

	var resp struct {
		Type      string `json:"type"`
		Signature string `json:"signature"`
		Error     string `json:"error,omitempty"`
	}
	if err := c.conn.ReadJSON(&resp); err != nil {
		return nil, shared.NewNotaryProtocolError("request-signature-read", err)
	}
	if resp.Error != "" {
		return nil, shared.NewNotaryRejectedError(resp.Error)
	}
	return decodeBody(resp.Signature)
}

// Close ends the control channel.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func encodeBody(body []byte) string {
	return base64.StdEncoding.EncodeToString(body)
}

func decodeBody(s string) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, shared.NewNotaryProtocolError("decode-signature", err)
	}
	return out, nil
}
