// Package tlsshell implements the §6.7 TLS shell collaborator: a thin
// wrapper over the system openssl binary that provisions a local CA and
// leaf certificate pair, renewing them once they approach expiry.
package tlsshell

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"cogcore/internal/logging"
)

const execTimeout = 30 * time.Second

// execCommandContext is swapped out in tests to avoid invoking a real
// openssl binary, mirroring the shell tool family's mocking seam.
var execCommandContext = exec.CommandContext

// lookPath is swapped out in tests alongside execCommandContext.
var lookPath = exec.LookPath

// Certs is the filesystem location of a provisioned CA/leaf pair.
type Certs struct {
	CACertPath   string
	CAKeyPath    string
	LeafCertPath string
	LeafKeyPath  string
}

// Result is the outcome of Provision.
type Result struct {
	Certs     Certs
	FreshCA   bool
	FreshLeaf bool
	OK        bool
	Reason    string
}

// Provision ensures a CA and leaf certificate exist under storeDir,
// generating whichever is missing or within renewalThresholdDays of
// expiry. openssl is invoked via exec.CommandContext the same way the
// shell tool family runs external commands, with stdout/stderr captured
// and a bounded timeout (§6.7).
func Provision(ctx context.Context, storeDir string, renewalThresholdDays int) Result {
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return Result{OK: false, Reason: fmt.Sprintf("mkdir store dir: %v", err)}
	}

	certs := Certs{
		CACertPath:   filepath.Join(storeDir, "ca.crt"),
		CAKeyPath:    filepath.Join(storeDir, "ca.key"),
		LeafCertPath: filepath.Join(storeDir, "leaf.crt"),
		LeafKeyPath:  filepath.Join(storeDir, "leaf.key"),
	}

	if _, err := lookPath("openssl"); err != nil {
		return Result{OK: false, Reason: "openssl not found on PATH"}
	}

	freshCA := needsRenewal(certs.CACertPath, renewalThresholdDays)
	if freshCA {
		if err := generateCA(ctx, certs); err != nil {
			return Result{OK: false, Reason: fmt.Sprintf("generate CA: %v", err)}
		}
		logging.TLS("provisioned fresh CA at %s", certs.CACertPath)
	}

	freshLeaf := freshCA || needsRenewal(certs.LeafCertPath, renewalThresholdDays)
	if freshLeaf {
		if err := generateLeaf(ctx, certs); err != nil {
			return Result{OK: false, Reason: fmt.Sprintf("generate leaf: %v", err)}
		}
		logging.TLS("provisioned fresh leaf certificate at %s", certs.LeafCertPath)
	}

	return Result{Certs: certs, FreshCA: freshCA, FreshLeaf: freshLeaf, OK: true}
}

// needsRenewal reports whether certPath is missing, unparseable, or expires
// within thresholdDays.
func needsRenewal(certPath string, thresholdDays int) bool {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return true
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return true
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return true
	}
	return time.Until(cert.NotAfter) < time.Duration(thresholdDays)*24*time.Hour
}

func runOpenSSL(ctx context.Context, args ...string) error {
	execCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	cmd := execCommandContext(execCtx, "openssl", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("openssl %v timed out after %s", args, execTimeout)
		}
		return fmt.Errorf("openssl %v failed: %w\n%s", args, err, stderr.String())
	}
	return nil
}

func generateCA(ctx context.Context, certs Certs) error {
	return runOpenSSL(ctx,
		"req", "-x509", "-newkey", "rsa:4096", "-sha256", "-days", "3650",
		"-nodes",
		"-keyout", certs.CAKeyPath,
		"-out", certs.CACertPath,
		"-subj", "/CN=cogcore-local-ca",
	)
}

func generateLeaf(ctx context.Context, certs Certs) error {
	csrPath := certs.LeafCertPath + ".csr"
	defer os.Remove(csrPath)

	if err := runOpenSSL(ctx,
		"req", "-newkey", "rsa:2048", "-nodes",
		"-keyout", certs.LeafKeyPath,
		"-out", csrPath,
		"-subj", "/CN=cogcore-local",
	); err != nil {
		return err
	}

	return runOpenSSL(ctx,
		"x509", "-req", "-sha256", "-days", "398",
		"-in", csrPath,
		"-CA", certs.CACertPath, "-CAkey", certs.CAKeyPath, "-CAcreateserial",
		"-out", certs.LeafCertPath,
	)
}
