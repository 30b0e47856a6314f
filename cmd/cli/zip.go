package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cristidraghici/open-file-sharing/internal/archive"
	"github.com/cristidraghici/open-file-sharing/internal/media"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Work with stored media",
}

var (
	zipType       string
	zipExtensions string
	zipUser       string
	zipMetadata   bool
	zipFlat       bool
	zipNoDate     bool
)

var mediaZipCmd = &cobra.Command{
	Use:   "zip [output]",
	Short: "Create a zip file of stored media",
	Long: `Create a zip file containing media files from the uploads directory.
Archives are written to the zips directory under the storage path, with an
automatic date suffix unless --no-date is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}

		store, err := media.NewStore(cfg.UploadsDir())
		if err != nil {
			return err
		}

		opts := archive.Options{
			Type:            zipType,
			User:            zipUser,
			IncludeMetadata: zipMetadata,
			Flat:            zipFlat,
			NoDate:          zipNoDate,
		}
		if zipExtensions != "" {
			opts.Extensions = strings.Split(zipExtensions, ",")
		}

		res, err := archive.Create(store, cfg.ZipsDir(), name, opts)
		if err != nil {
			return err
		}

		for _, skipped := range res.Skipped {
			fmt.Printf("  - failed to add: %s\n", skipped)
		}
		fmt.Printf("Successfully created zip file: %s (%d files)\n", res.Path, res.Added)
		return nil
	},
}

func init() {
	mediaZipCmd.Flags().StringVarP(&zipType, "type", "t", "", "filter by file type (image, video, document, other)")
	mediaZipCmd.Flags().StringVarP(&zipExtensions, "extensions", "e", "", "filter by file extensions (comma-separated, e.g. jpg,png,pdf)")
	mediaZipCmd.Flags().StringVarP(&zipUser, "user", "u", "", "filter by uploading user")
	mediaZipCmd.Flags().BoolVarP(&zipMetadata, "include-metadata", "m", false, "include metadata JSON files in the zip")
	mediaZipCmd.Flags().BoolVar(&zipFlat, "flat", false, "place metadata files next to payloads instead of metadata/")
	mediaZipCmd.Flags().BoolVar(&zipNoDate, "no-date", false, "do not include the date in the zip file name")

	mediaCmd.AddCommand(mediaZipCmd)
}
