// Package media implements the media store: binary payloads plus one JSON
// metadata sidecar per object, kept under a single root directory.
//
// There is no locking and no two-phase commit across the payload/sidecar
// pair. Concurrent stores never collide (every call draws a fresh random
// id), and a payload that lost its sidecar stays discoverable through the
// fallback scan with degraded metadata.
package media

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cristidraghici/open-file-sharing/internal/common"
)

// Store owns one uploads directory. All operations run synchronously; the
// surrounding server provides concurrency.
type Store struct {
	root string
}

// NewStore opens (creating if necessary) the store root directory.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating store root %s: %w", root, err)
	}
	return &Store{root: filepath.Clean(root)}, nil
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// Store persists the regular file at sourcePath under a fresh random id and
// writes the metadata sidecar. The source is moved when possible and copied
// as a fallback. An empty uploadedBy defaults to "unknown".
func (s *Store) Store(originalName, sourcePath, uploadedBy string) (*StoredObject, error) {
	if uploadedBy == "" {
		uploadedBy = "unknown"
	}

	id, err := newID()
	if err != nil {
		return nil, fmt.Errorf("generating id: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "." {
		ext = ""
	}
	storedAs := id + ext
	target := filepath.Join(s.root, storedAs)

	if err := s.persist(sourcePath, target); err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", common.ErrorStorageFailure, storedAs, err)
	}

	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	obj := &StoredObject{
		ID:         id,
		FileName:   originalName,
		SafeName:   sanitizeName(base),
		StoredAs:   storedAs,
		Size:       info.Size(),
		Mime:       detectMime(target),
		UploadedAt: time.Now().Format(timeLayout),
		UploadedBy: uploadedBy,
		Path:       target,
	}

	// Best effort: a crash or write failure here leaves an orphaned
	// payload, which the fallback scan still lists with degraded metadata.
	if data, err := json.Marshal(obj); err == nil {
		_ = os.WriteFile(s.sidecarPath(id), data, 0o644)
	}

	return obj, nil
}

// FindByID resolves an object, preferring its sidecar and falling back to a
// glob over "{id}.*". Returns common.ErrorNotFound when neither path yields
// a regular file.
func (s *Store) FindByID(id string) (*StoredObject, error) {
	if obj, err := s.readSidecar(s.sidecarPath(id)); err == nil {
		path := filepath.Join(s.root, obj.StoredAs)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			s.resolve(obj, path, info)
			return obj, nil
		}
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, id+".*"))
	for _, m := range matches {
		if strings.EqualFold(filepath.Ext(m), ".json") {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return s.degraded(id, m, info), nil
	}

	return nil, common.ErrorNotFound
}

// ListAll returns every stored object, most recent upload first.
//
// Pass one reads the sidecars and drops entries whose payload is missing;
// pass two picks up payloads with no sidecar and synthesizes their metadata
// from filesystem attributes. Ties on uploadedAt break by descending
// filename so the order is total and pagination stays stable.
func (s *Store) ListAll() ([]*StoredObject, error) {
	items := make([]*StoredObject, 0)
	seen := make(map[string]struct{})

	sidecars, _ := filepath.Glob(filepath.Join(s.root, "*.json"))
	for _, metaFile := range sidecars {
		obj, err := s.readSidecar(metaFile)
		if err != nil {
			continue
		}
		path := filepath.Join(s.root, obj.StoredAs)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			// Payload is gone; the stale sidecar drops out of the listing.
			continue
		}
		s.resolve(obj, path, info)
		items = append(items, obj)
		seen[obj.ID] = struct{}{}
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading store root: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.EqualFold(filepath.Ext(name), ".json") {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := seen[id]; ok {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		items = append(items, s.degraded(id, filepath.Join(s.root, name), info))
	}

	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].uploadedAtTime(), items[j].uploadedAtTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return items[i].FileName > items[j].FileName
	})

	return items, nil
}

// ListPaginated applies the optional type filter to the full listing and
// returns the 1-based page slice. Out-of-range pages yield empty Items with
// the true Total.
func (s *Store) ListPaginated(page, perPage int, typeFilter string) (*Page, error) {
	all, err := s.ListAll()
	if err != nil {
		return nil, err
	}

	if typeFilter != "" {
		filtered := make([]*StoredObject, 0, len(all))
		for _, obj := range all {
			if MatchesType(obj.Mime, typeFilter) {
				filtered = append(filtered, obj)
			}
		}
		all = filtered
	}

	total := len(all)
	start := (page - 1) * perPage
	if start < 0 || start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return &Page{
		Items:   all[start:end],
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

// DeleteByID removes the payload(s) matching "{id}.*" and the sidecar.
// Best effort, not transactional: it reports whether any file was removed.
func (s *Store) DeleteByID(id string) bool {
	removed := false

	matches, _ := filepath.Glob(filepath.Join(s.root, id+".*"))
	for _, m := range matches {
		if strings.EqualFold(filepath.Ext(m), ".json") {
			continue
		}
		if err := os.Remove(m); err == nil {
			removed = true
		}
	}

	// A payload stored without an extension lives at the bare id.
	if err := os.Remove(filepath.Join(s.root, id)); err == nil {
		removed = true
	}

	if err := os.Remove(s.sidecarPath(id)); err == nil {
		removed = true
	}

	return removed
}

func (s *Store) sidecarPath(id string) string {
	return filepath.Join(s.root, id+".json")
}

// persist moves source to target, copying through a temp file in the store
// root when rename fails (uploads commonly arrive from another filesystem).
func (s *Store) persist(source, target string) error {
	if err := os.Rename(source, target); err == nil {
		return nil
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorageFailure, err)
	}
	defer os.Remove(tmp.Name())

	src, err := os.Open(source)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", common.ErrorStorageFailure, err)
	}
	_, copyErr := io.Copy(tmp, src)
	src.Close()
	if closeErr := tmp.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorageFailure, copyErr)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorageFailure, err)
	}

	_ = os.Remove(source)
	return nil
}

// readSidecar decodes a sidecar file, tolerating partial or corrupt JSON by
// falling back to values derived from the sidecar filename.
func (s *Store) readSidecar(path string) (*StoredObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	obj := &StoredObject{}
	_ = json.Unmarshal(data, obj)

	if obj.ID == "" {
		base := filepath.Base(path)
		obj.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if obj.StoredAs == "" {
		obj.StoredAs = obj.ID
	}
	if obj.FileName == "" {
		obj.FileName = obj.StoredAs
	}
	if obj.UploadedBy == "" {
		obj.UploadedBy = "unknown"
	}
	return obj, nil
}

// resolve refreshes the filesystem-derived fields of a sidecar entry.
func (s *Store) resolve(obj *StoredObject, path string, info fs.FileInfo) {
	obj.Path = path
	obj.Size = info.Size()
	if obj.Mime == "" {
		obj.Mime = detectMime(path)
	}
}

// degraded synthesizes metadata for a payload that has no sidecar.
func (s *Store) degraded(id, path string, info fs.FileInfo) *StoredObject {
	return &StoredObject{
		ID:         id,
		FileName:   filepath.Base(path),
		StoredAs:   filepath.Base(path),
		Size:       info.Size(),
		Mime:       detectMime(path),
		UploadedAt: info.ModTime().Format(timeLayout),
		UploadedBy: "unknown",
		Path:       path,
	}
}

// newID returns 16 random bytes hex-encoded (32 chars).
func newID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
