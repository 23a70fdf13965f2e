package pipeline

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/zkp2p/tlsn-attest/config"
	"github.com/zkp2p/tlsn-attest/notary"
	"github.com/zkp2p/tlsn-attest/presenter"
	"github.com/zkp2p/tlsn-attest/providers"
	"github.com/zkp2p/tlsn-attest/shared"
	"go.uber.org/zap"
)

// startFakeProvider serves the Wise transfer_details JSON body over TLS,
// closing the connection after each response (the request builder always
// sends Connection: close), and reports the trust pool a session must be
// configured with to accept its throwaway certificate.
func startFakeProvider(t *testing.T) (host string, port int, roots *x509.CertPool) {
	t.Helper()
	body := `{"primaryAmount":"12.00 USD","targetCurrency":"USD","resource":{"id":"R1"},"visibleOn":"2026-01-01","title":"Payment to Jane","status":"COMPLETED"}`
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	h, p, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	portNum, err := strconv.Atoi(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return h, portNum, pool
}

// startFakeNotary runs a minimal websocket Notary: accepts session setup,
// drains the commitments message, and signs whatever body a sign request
// carries with key.
func startFakeNotary(t *testing.T, key *shared.NotaryKeyPair) notary.Endpoint {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var setup notary.SetupRequest
		if err := conn.ReadJSON(&setup); err != nil {
			return
		}
		resp := notary.SetupResponse{SessionID: setup.SessionID, Accepted: true, NotaryKeyHex: key.KeyID().Hex()}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}

		for {
			var msg struct {
				Type string `json:"type"`
				Body string `json:"body"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case "commitments":
				continue
			case "sign":
				raw, err := base64.StdEncoding.DecodeString(msg.Body)
				if err != nil {
					return
				}
				sig, err := key.Sign(raw)
				if err != nil {
					return
				}
				conn.WriteJSON(struct {
					Type      string `json:"type"`
					Signature string `json:"signature"`
				}{"sign", base64.StdEncoding.EncodeToString(sig)})
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return notary.Endpoint{Host: host, Port: port, TLS: false}
}

func TestProveToPresentEndToEnd(t *testing.T) {
	providerHost, providerPort, providerRoots := startFakeProvider(t)

	notaryKey, err := shared.GenerateNotaryKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	notaryEndpoint := startFakeNotary(t, notaryKey)

	wise, err := providers.Lookup(providers.ProviderWise)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profile := wise
	profile.Host = providerHost
	profile.Port = providerPort

	dir := t.TempDir()
	cfg := &config.SessionConfig{
		Notary:       notaryEndpoint,
		MaxSentBytes: config.DefaultMaxSentBytes,
		MaxRecvBytes: config.DefaultMaxRecvBytes,
		ArtifactDir:  dir,
	}

	params := RequestParams{
		TemplateName:       "transfer_details",
		Credentials:        providers.Credentials{CookieStr: "s=abc"},
		PathParams:         map[string]string{"profile_id": "P9", "transaction_id": "TX123"},
		ProviderTrustRoots: providerRoots,
	}
	whitelist := presenter.Whitelist{}
	for field := range profile.DisclosableFields {
		whitelist[field] = true
	}

	pres, err := ProveToPresent(context.Background(), cfg, zap.NewNop(), profile, params, "wise", whitelist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pres.RevealedRecv) != len(profile.DisclosableFields) {
		t.Fatalf("expected every disclosable field revealed, got %d of %d", len(pres.RevealedRecv), len(profile.DisclosableFields))
	}
	for _, rs := range pres.RevealedSent {
		if strings.Contains(string(rs.Plaintext), "abc") {
			t.Fatalf("credential leaked into a revealed sent span: %q", rs.Plaintext)
		}
	}

	paths := PathsForScope(cfg, "wise")
	for _, p := range []string{paths.Attestation, paths.Secrets, paths.Presentation} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected artifact %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(paths.Lock); err == nil {
		t.Fatalf("expected the scope lock to be released after a successful run")
	}

	result, err := Verify(cfg, "wise", profile, providerHost, []common.Address{notaryKey.KeyID()}, providerRoots)
	if err != nil {
		t.Fatalf("unexpected error verifying the persisted presentation: %v", err)
	}
	if result.ServerIdentity != providerHost {
		t.Fatalf("unexpected server identity: %s", result.ServerIdentity)
	}
	if len(result.DisclosedFields) != len(profile.DisclosableFields) {
		t.Fatalf("expected every disclosable field disclosed, got %d", len(result.DisclosedFields))
	}
}

func TestProveRejectsUnexpectedContentType(t *testing.T) {
	body := `{"primaryAmount":"12.00 USD","targetCurrency":"USD","resource":{"id":"R1"},"visibleOn":"2026-01-01","title":"Payment to Jane","status":"COMPLETED"}`
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())

	notaryKey, err := shared.GenerateNotaryKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	notaryEndpoint := startFakeNotary(t, notaryKey)

	wise, err := providers.Lookup(providers.ProviderWise)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profile := wise
	profile.Host = host
	profile.Port = port

	dir := t.TempDir()
	cfg := &config.SessionConfig{
		Notary:       notaryEndpoint,
		MaxSentBytes: config.DefaultMaxSentBytes,
		MaxRecvBytes: config.DefaultMaxRecvBytes,
		ArtifactDir:  dir,
	}
	params := RequestParams{
		TemplateName:       "transfer_details",
		Credentials:        providers.Credentials{CookieStr: "s=abc"},
		PathParams:         map[string]string{"profile_id": "P9", "transaction_id": "TX123"},
		ProviderTrustRoots: roots,
	}

	_, _, err = Prove(context.Background(), cfg, zap.NewNop(), profile, params)
	if err == nil {
		t.Fatal("expected an UnexpectedContentType error for a non-JSON response")
	}
	if !strings.Contains(err.Error(), "UnexpectedContentType") {
		t.Fatalf("expected UnexpectedContentType error, got: %v", err)
	}
}

func TestWriteProveRejectsConcurrentScope(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.SessionConfig{ArtifactDir: dir}
	paths := PathsForScope(cfg, "busy")

	lock, err := acquireScopeLock(paths.Lock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer lock.release()

	_, err = acquireScopeLock(paths.Lock)
	if err == nil {
		t.Fatal("expected ScopeLocked for a concurrently-held scope lock")
	}
	if !strings.Contains(err.Error(), "ScopeLocked") {
		t.Fatalf("expected ScopeLocked error, got: %v", err)
	}
}

func TestPathsForScope(t *testing.T) {
	cfg := &config.SessionConfig{ArtifactDir: "/tmp/artifacts"}
	paths := PathsForScope(cfg, "wise")
	if paths.Attestation != filepath.Join("/tmp/artifacts", "wise.attestation") {
		t.Fatalf("unexpected attestation path: %s", paths.Attestation)
	}
	if paths.Presentation != filepath.Join("/tmp/artifacts", "wise.presentation") {
		t.Fatalf("unexpected presentation path: %s", paths.Presentation)
	}
}
