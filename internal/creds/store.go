// Package creds implements the flat-file credential store: one CSV row per
// user, fields username, role, bcrypt password hash. The file carries a
// UTF-8 byte-order mark for spreadsheet-tool compatibility; it is tolerated
// on read and written whenever the store (re)creates the file.
//
// The line-record format is an external contract shared with coexisting
// user-management tooling. Readers take no lock; writers are serialized by a
// store-level mutex to avoid lost updates between concurrent mutations.
package creds

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/cristidraghici/open-file-sharing/internal/common"
)

// User is the result of a successful credential lookup. ID is derived
// deterministically from the username (see DeriveUserID), never stored.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Roles accepted by AddUser.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

var (
	utf8BOM       = []byte{0xEF, 0xBB, 0xBF}
	validUsername = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// Store reads and mutates one users CSV file.
type Store struct {
	path string

	mu sync.Mutex // serializes writers
}

// NewStore returns a Store over the given CSV file path. The file may not
// exist yet; lookups against a missing file simply fail.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the underlying CSV file path.
func (s *Store) Path() string { return s.path }

// VerifyCredentials checks a username/password pair. The scan stops at the
// first row matching the username; a wrong password on that row fails
// without looking further. Any failure (missing file, unknown user, bad
// password) yields common.ErrorUnauthorized.
func (s *Store) VerifyCredentials(username, password string) (*User, error) {
	records, err := s.readRecords()
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	for _, rec := range records {
		if len(rec) < 3 {
			continue
		}
		if rec[0] != username {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(rec[2]), []byte(password)) != nil {
			return nil, common.ErrorUnauthorized
		}
		return &User{
			ID:       DeriveUserID(username),
			Username: username,
			Role:     rec[1],
		}, nil
	}

	return nil, common.ErrorUnauthorized
}

// AddUser validates, hashes and appends a new user row. The username must be
// alphanumeric/underscore and unused; role must be "admin" or "user".
func (s *Store) AddUser(username, password, role string) (*User, error) {
	if !validUsername.MatchString(username) {
		return nil, fmt.Errorf("%w: username must contain only letters, numbers and underscores", common.ErrorValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password cannot be empty", common.ErrorValidation)
	}
	role = strings.ToLower(role)
	if role != RoleAdmin && role != RoleUser {
		return nil, fmt.Errorf("%w: role must be either %q or %q", common.ErrorValidation, RoleAdmin, RoleUser)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	for _, rec := range records {
		if len(rec) > 0 && rec[0] == username {
			return nil, fmt.Errorf("user %q: %w", username, common.ErrorAlreadyExists)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating users directory: %w", err)
	}

	_, statErr := os.Stat(s.path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening users file: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := f.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("writing users file: %w", err)
		}
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{username, role, string(hash)}); err != nil {
		return nil, fmt.Errorf("writing users file: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("writing users file: %w", err)
	}

	return &User{ID: DeriveUserID(username), Username: username, Role: role}, nil
}

// DeleteUser rewrites the file without the named user's rows and reports
// whether anything was removed. A missing file is not an error.
func (s *Store) DeleteUser(username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading users file: %w", err)
	}

	remaining := make([][]string, 0, len(records))
	for _, rec := range records {
		if len(rec) >= 3 && rec[0] == username {
			continue
		}
		remaining = append(remaining, rec)
	}
	if len(remaining) == len(records) {
		return false, nil
	}

	f, err := os.Create(s.path)
	if err != nil {
		return false, fmt.Errorf("rewriting users file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return false, fmt.Errorf("rewriting users file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(remaining); err != nil {
		return false, fmt.Errorf("rewriting users file: %w", err)
	}

	return true, nil
}

// ListUsers returns the username and role of every well-formed row.
func (s *Store) ListUsers() ([]User, error) {
	records, err := s.readRecords()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading users file: %w", err)
	}

	users := make([]User, 0, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		users = append(users, User{
			ID:       DeriveUserID(rec[0]),
			Username: rec[0],
			Role:     rec[1],
		})
	}
	return users, nil
}

// readRecords loads every CSV row, skipping a leading UTF-8 BOM if present.
func (s *Store) readRecords() ([][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}
