// Package commands implements the goradiusctl CLI commands.
package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dlp-radius/goradius/internal/dictionary"
	"github.com/dlp-radius/goradius/internal/radclient"
)

var (
	// rclient is the radclient.Client talking directly to the RADIUS
	// server over UDP, initialized in PersistentPreRunE.
	rclient *radclient.Client

	// dict resolves attribute names for every subcommand.
	dict *dictionary.Dictionary

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the goradiusd host (no port; radclient binds its own
	// auth/acct/coa ports).
	serverAddr string

	// secret is the shared secret used for authenticator computation and
	// attribute encryption.
	secret string

	// dictFiles names additional vendor dictionary files to merge on top
	// of the embedded standard dictionary.
	dictFiles []string

	authPort, acctPort, coaPort int
	timeout                     time.Duration
	retries                     int
)

// rootCmd is the top-level cobra command for goradiusctl.
var rootCmd = &cobra.Command{
	Use:   "goradiusctl",
	Short: "CLI client for the goradiusd RADIUS daemon",
	Long:  "goradiusctl sends Access-Request, Accounting-Request, CoA-Request, and Disconnect-Request packets directly over UDP and decodes the replies, playing the role FreeRADIUS's radclient plays.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		d, err := loadDictionary(dictFiles)
		if err != nil {
			return fmt.Errorf("load dictionary: %w", err)
		}
		dict = d

		c, err := radclient.NewClient(radclient.Config{
			Server:   serverAddr,
			AuthPort: authPort,
			AcctPort: acctPort,
			CoAPort:  coaPort,
			Secret:   []byte(secret),
			Dict:     dict,
			Timeout:  timeout,
			Retries:  retries,
		})
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		rclient = c

		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func loadDictionary(files []string) (*dictionary.Dictionary, error) {
	std, err := dictionary.LoadStandard()
	if err != nil {
		return nil, fmt.Errorf("load standard dictionary: %w", err)
	}
	if len(files) == 0 {
		return std, nil
	}
	extra, err := dictionary.Load(files...)
	if err != nil {
		return nil, fmt.Errorf("load dictionary files %v: %w", files, err)
	}
	return std.Merge(extra), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "127.0.0.1", "goradiusd host")
	rootCmd.PersistentFlags().StringVar(&secret, "secret", "", "shared secret (required)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "output format: table, json")
	rootCmd.PersistentFlags().StringArrayVar(&dictFiles, "dict-file", nil, "additional dictionary file to merge on top of the embedded standard dictionary (repeatable)")
	rootCmd.PersistentFlags().IntVar(&authPort, "auth-port", radclient.DefaultAuthPort, "authentication port")
	rootCmd.PersistentFlags().IntVar(&acctPort, "acct-port", radclient.DefaultAcctPort, "accounting port")
	rootCmd.PersistentFlags().IntVar(&coaPort, "coa-port", radclient.DefaultCoAPort, "CoA/Disconnect port")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", radclient.DefaultTimeout, "per-attempt wait before retransmitting")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", radclient.DefaultRetries, "total transmission attempts")

	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(acctCmd())
	rootCmd.AddCommand(coaCmd())
	rootCmd.AddCommand(disconnectCmd())
	rootCmd.AddCommand(dictionaryCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
