package tlsshell

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSelfSignedCert(t *testing.T, path string, validFor time.Duration) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "tlsshell-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(validFor),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(path, pemBytes, 0o644))
}

// TestHelperProcess isn't a real test. It backs fakeExecCommandContext the
// same way the shell tool family mocks subprocess invocation.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, "ok")
	os.Exit(0)
}

func fakeExecCommandContext(ctx context.Context, command string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", command}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

func withMockedOpenSSL(t *testing.T) {
	t.Helper()
	oldExec, oldLookPath := execCommandContext, lookPath
	execCommandContext = fakeExecCommandContext
	lookPath = func(string) (string, error) { return "/usr/bin/openssl", nil }
	t.Cleanup(func() {
		execCommandContext = oldExec
		lookPath = oldLookPath
	})
}

func TestProvisionReportsMissingOpenSSL(t *testing.T) {
	oldLookPath := lookPath
	lookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }
	defer func() { lookPath = oldLookPath }()

	result := Provision(context.Background(), t.TempDir(), 30)
	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "openssl not found")
}

func TestProvisionGeneratesFreshCAAndLeafWhenStoreEmpty(t *testing.T) {
	withMockedOpenSSL(t)

	storeDir := t.TempDir()
	result := Provision(context.Background(), storeDir, 30)

	require.True(t, result.OK)
	assert.True(t, result.FreshCA)
	assert.True(t, result.FreshLeaf)
	assert.Equal(t, filepath.Join(storeDir, "ca.crt"), result.Certs.CACertPath)
	assert.Equal(t, filepath.Join(storeDir, "leaf.crt"), result.Certs.LeafCertPath)
}

func TestNeedsRenewalFalseForValidFarFutureCert(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "valid.crt")
	writeSelfSignedCert(t, path, 365*24*time.Hour)
	assert.False(t, needsRenewal(path, 30))
}

func TestNeedsRenewalTrueWhenWithinThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "expiring.crt")
	writeSelfSignedCert(t, path, 10*24*time.Hour)
	assert.True(t, needsRenewal(path, 30))
}

func TestNeedsRenewalTrueWhenFileMissing(t *testing.T) {
	assert.True(t, needsRenewal(filepath.Join(t.TempDir(), "missing.crt"), 30))
}

func TestNeedsRenewalTrueWhenUnparseable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.crt")
	require.NoError(t, os.WriteFile(path, []byte("not a cert"), 0o644))
	assert.True(t, needsRenewal(path, 30))
}

func TestRunOpenSSLWrapsFailure(t *testing.T) {
	oldExec := execCommandContext
	execCommandContext = func(ctx context.Context, command string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	}
	defer func() { execCommandContext = oldExec }()

	err := runOpenSSL(context.Background(), "req")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openssl")
}
