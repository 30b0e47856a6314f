// Command cli is the operator console for the file-sharing service. It
// manages the users CSV and exports media archives, working directly on the
// storage directory the server uses.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cristidraghici/open-file-sharing/internal/config"
)

var (
	cfg       *config.Config
	usersFile string
)

var rootCmd = &cobra.Command{
	Use:   "ofs",
	Short: "Open File Sharing operator console",
	Long:  "Manage users and media archives of the file-sharing service.",
}

func main() {
	cfg = config.LoadConfig()

	rootCmd.PersistentFlags().StringVar(&cfg.StoragePath, "storage", cfg.StoragePath, "base storage directory")
	rootCmd.PersistentFlags().StringVarP(&usersFile, "file", "f", "", "path to the users CSV file (default {storage}/users.csv)")

	rootCmd.AddCommand(userCmd, mediaCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// usersPath resolves the users CSV location after flag overrides.
func usersPath() string {
	if usersFile != "" {
		return usersFile
	}
	return filepath.Join(cfg.StoragePath, "users.csv")
}
