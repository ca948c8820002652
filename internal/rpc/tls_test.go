//go:build !windows

package rpc

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencausal/latticegraphd/internal/store/memory"
)

// generateTestCert generates a self-signed certificate for testing.
func generateTestCert(t *testing.T, tmpDir string) (certFile, keyFile string) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate private key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"Test"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	certFile = filepath.Join(tmpDir, "test.crt")
	certOut, err := os.Create(certFile)
	if err != nil {
		t.Fatalf("failed to create cert file: %v", err)
	}
	pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	certOut.Close()

	keyFile = filepath.Join(tmpDir, "test.key")
	keyOut, err := os.Create(keyFile)
	if err != nil {
		t.Fatalf("failed to create key file: %v", err)
	}
	pem.Encode(keyOut, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	keyOut.Close()

	return certFile, keyFile
}

func startTLSServer(t *testing.T, certFile, keyFile string) (*Server, string) {
	t.Helper()
	s := NewServer(memory.New(), nil)
	if err := s.SetTLSConfig(certFile, keyFile); err != nil {
		t.Fatalf("SetTLSConfig failed: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln.Close()
	addr := ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ready := make(chan struct{})
	go func() {
		go func() { close(ready) }()
		_ = s.ServeTCP(ctx, addr)
	}()
	<-ready
	time.Sleep(50 * time.Millisecond)
	return s, addr
}

func TestTLSHandshakeWorks(t *testing.T) {
	tmpDir := t.TempDir()
	certFile, keyFile := generateTestCert(t, tmpDir)
	_, addr := startTLSServer(t, certFile, keyFile)

	tlsConfig := &tls.Config{InsecureSkipVerify: true}
	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 2 * time.Second}, "tcp", addr, tlsConfig)
	if err != nil {
		t.Fatalf("TLS dial failed: %v", err)
	}
	defer conn.Close()

	state := conn.ConnectionState()
	if !state.HandshakeComplete {
		t.Error("TLS handshake not complete")
	}
	if state.Version < tls.VersionTLS12 {
		t.Errorf("TLS version %x is below TLS 1.2", state.Version)
	}

	req := Request{Operation: OpHealth}
	reqBytes, _ := json.Marshal(req)
	reqBytes = append(reqBytes, '\n')
	if _, err := conn.Write(reqBytes); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}

	reader := bufio.NewReader(conn)
	respBytes, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success, got error: %s", resp.Error)
	}
}

func TestInvalidCertRejected(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewServer(memory.New(), nil)

	if err := s.SetTLSConfig("/nonexistent/cert.pem", "/nonexistent/key.pem"); err == nil {
		t.Error("SetTLSConfig should fail with nonexistent files")
	}

	invalidCert := filepath.Join(tmpDir, "invalid.crt")
	invalidKey := filepath.Join(tmpDir, "invalid.key")
	os.WriteFile(invalidCert, []byte("not a valid cert"), 0600)
	os.WriteFile(invalidKey, []byte("not a valid key"), 0600)

	if err := s.SetTLSConfig(invalidCert, invalidKey); err == nil {
		t.Error("SetTLSConfig should fail with invalid cert content")
	}
}

func TestPlainTCPConnectionToTLSServerFails(t *testing.T) {
	tmpDir := t.TempDir()
	certFile, keyFile := generateTestCert(t, tmpDir)
	_, addr := startTLSServer(t, certFile, keyFile)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Logf("plain TCP connection rejected outright: %v", err)
		return
	}
	defer conn.Close()

	req := Request{Operation: OpHealth}
	reqBytes, _ := json.Marshal(req)
	reqBytes = append(reqBytes, '\n')
	if _, err := conn.Write(reqBytes); err != nil {
		t.Logf("write to TLS server with plain TCP failed (expected): %v", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	respBytes, err := reader.ReadBytes('\n')
	if err != nil {
		t.Logf("read from TLS server with plain TCP failed (expected): %v", err)
		return
	}
	var resp Response
	if json.Unmarshal(respBytes, &resp) == nil && resp.Success {
		t.Error("plain TCP connection should not receive a valid response from a TLS server")
	}
}
