// Package archive exports stored media as zip files, mirroring what the
// operator console's media:zip command has always produced: payloads under
// their original filenames, optionally with the metadata sidecars in a
// metadata/ subdirectory.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/cristidraghici/open-file-sharing/internal/common"
	"github.com/cristidraghici/open-file-sharing/internal/media"
)

// DefaultName is used when the caller supplies no output name.
const DefaultName = "media-files"

// Options narrow the set of exported objects and shape the zip layout.
type Options struct {
	Type            string   // classification bucket, empty = all
	Extensions      []string // original-filename extensions, lowercase without dot
	User            string   // uploadedBy filter, empty = all
	IncludeMetadata bool     // add the {id}.json sidecars
	Flat            bool     // metadata next to payloads instead of metadata/
	NoDate          bool     // omit the timestamp suffix in the zip name
}

// Result reports what was written.
type Result struct {
	Path    string
	Added   int
	Skipped []string // filenames whose payload could not be read
}

// Create writes a zip of the store's media into outDir. The archive name is
// name (DefaultName when empty) plus a timestamp suffix unless disabled.
// Returns common.ErrorNotFound when no object matches the options.
func Create(store *media.Store, outDir, name string, opts Options) (*Result, error) {
	if opts.Type != "" && !media.ValidType(opts.Type) {
		return nil, fmt.Errorf("%w: invalid type %q", common.ErrorValidation, opts.Type)
	}

	all, err := store.ListAll()
	if err != nil {
		return nil, err
	}
	selected := filter(all, opts)
	if len(selected) == 0 {
		return nil, fmt.Errorf("no media matching the criteria: %w", common.ErrorNotFound)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating zips directory: %w", err)
	}

	if name == "" {
		name = DefaultName
	}
	if !opts.NoDate {
		name += "_" + time.Now().Format("2006-01-02_15-04-05")
	}
	outPath := filepath.Join(outDir, name+".zip")

	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("creating zip file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	res := &Result{Path: outPath}
	used := make(map[string]struct{})

	for _, obj := range selected {
		entry := obj.FileName
		if _, taken := used[entry]; taken {
			// Duplicate display names collide inside the archive; the
			// stored name is unique by construction.
			entry = obj.StoredAs
		}
		used[entry] = struct{}{}

		if err := addFile(zw, obj.Path, entry); err != nil {
			res.Skipped = append(res.Skipped, obj.FileName)
			continue
		}
		res.Added++

		if opts.IncludeMetadata {
			metaEntry := obj.ID + ".json"
			if !opts.Flat {
				metaEntry = "metadata/" + metaEntry
			}
			metaPath := filepath.Join(store.Root(), obj.ID+".json")
			if _, err := os.Stat(metaPath); err == nil {
				_ = addFile(zw, metaPath, metaEntry)
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing zip: %w", err)
	}
	if res.Added == 0 {
		os.Remove(outPath)
		return nil, fmt.Errorf("no files were added to the zip: %w", common.ErrorNotFound)
	}
	return res, nil
}

func filter(objs []*media.StoredObject, opts Options) []*media.StoredObject {
	extSet := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			extSet[e] = struct{}{}
		}
	}

	out := make([]*media.StoredObject, 0, len(objs))
	for _, obj := range objs {
		if opts.Type != "" && !media.MatchesType(obj.Mime, opts.Type) {
			continue
		}
		if len(extSet) > 0 {
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(obj.FileName), "."))
			if _, ok := extSet[ext]; !ok {
				continue
			}
		}
		if opts.User != "" && obj.UploadedBy != opts.User {
			continue
		}
		out = append(out, obj)
	}
	return out
}

func addFile(zw *zip.Writer, path, entry string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entry,
		Method:   zip.Deflate,
		Modified: info.ModTime(),
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
