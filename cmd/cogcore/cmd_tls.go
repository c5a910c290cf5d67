package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"cogcore/internal/tlsshell"
)

var tlsCmd = &cobra.Command{
	Use:   "tls",
	Short: "Provision or renew the local CA/leaf certificate pair (§6.7)",
	RunE: func(cmd *cobra.Command, args []string) error {
		storeDir := cfg.TLS.StoreDir
		if !filepath.IsAbs(storeDir) {
			storeDir = filepath.Join(cfg.Home, storeDir)
		}

		result := tlsshell.Provision(cmd.Context(), storeDir, cfg.TLS.RenewalThresholdDays)
		if !result.OK {
			return fmt.Errorf("tls provisioning failed: %s", result.Reason)
		}

		fmt.Printf("ca: %s (fresh=%v)\nleaf: %s (fresh=%v)\n",
			result.Certs.CACertPath, result.FreshCA, result.Certs.LeafCertPath, result.FreshLeaf)
		return nil
	},
}
