// Package dataset persists and serves named datasets: one directory per
// dataset holding the geocoded cache, the failed-address list, and a copy
// of the original upload.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpumc/family-mapper/internal/model"
)

// Artifact file names inside a dataset directory.
const (
	CacheFile    = "geocoded_cache.csv"
	FailedFile   = "failed_addresses.csv"
	OriginalFile = "original.csv"
)

// minCacheBytes is the size below which a cache file is considered
// corrupted and its dataset skipped.
const minCacheBytes = 10

// listConcurrency bounds parallel row counting during List.
const listConcurrency = 8

// ErrNotFound indicates the named dataset does not exist.
var ErrNotFound = eris.New("dataset: not found")

// ErrExists indicates a dataset with that name already exists.
var ErrExists = eris.New("dataset: name already exists")

// Store is a directory-per-dataset persistence layer rooted at a single
// directory. Each running job writes only to its own dataset directory.
type Store struct {
	root string
}

// NewStore creates a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// ValidName reports whether a dataset name is safe to use as a directory
// name under the store root.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, name)
}

func (s *Store) ensureRoot() error {
	return eris.Wrap(os.MkdirAll(s.root, 0o755), "dataset: create root")
}

// Exists reports whether a dataset directory with the given name exists.
func (s *Store) Exists(name string) bool {
	info, err := os.Stat(s.path(name))
	return err == nil && info.IsDir()
}

// Create makes the dataset directory, failing if it already exists.
func (s *Store) Create(name string) error {
	if !ValidName(name) {
		return eris.Errorf("dataset: invalid name %q", name)
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}
	if err := os.Mkdir(s.path(name), 0o755); err != nil {
		if os.IsExist(err) {
			return ErrExists
		}
		return eris.Wrap(err, "dataset: create directory")
	}
	return nil
}

// Remove deletes a dataset directory and everything in it.
func (s *Store) Remove(name string) error {
	if !ValidName(name) {
		return eris.Errorf("dataset: invalid name %q", name)
	}
	if !s.Exists(name) {
		return ErrNotFound
	}
	return eris.Wrap(os.RemoveAll(s.path(name)), "dataset: remove directory")
}

// Clear deletes every dataset and recreates the empty root.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return eris.Wrap(err, "dataset: clear root")
	}
	return s.ensureRoot()
}

// SaveTemp writes an upload to a uniquely named temp file under the store
// root and returns its path. The extension is preserved so the parser can
// dispatch on it.
func (s *Store) SaveTemp(r io.Reader, ext string) (string, error) {
	if err := s.ensureRoot(); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, "temp_"+uuid.New().String()+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "dataset: create temp file")
	}
	defer f.Close() //nolint:errcheck
	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(path)
		return "", eris.Wrap(err, "dataset: save temp file")
	}
	return path, nil
}

// WriteCache writes the canonical geocoded table, including rows without
// coordinates.
func (s *Store) WriteCache(name string, results []model.GeocodeResult) error {
	data, err := csvutil.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "dataset: marshal cache")
	}
	return eris.Wrap(os.WriteFile(filepath.Join(s.path(name), CacheFile), data, 0o644), "dataset: write cache")
}

// failedRow is the failures artifact row: the name column is relabeled for
// presentation and a profile link is added for the external id.
type failedRow struct {
	Name          string `csv:"Name"`
	Address       string `csv:"Address"`
	City          string `csv:"City"`
	State         string `csv:"State"`
	Zip           string `csv:"Zip"`
	PeopleID      string `csv:"PeopleID"`
	FullAddress   string `csv:"Full_Address"`
	FailureReason string `csv:"Failure_Reason"`
	PeopleIDLink  string `csv:"PeopleID Link"`
}

// failedRowNoLink is the failures row without the link column, used when no
// link base is configured.
type failedRowNoLink struct {
	Name          string `csv:"Name"`
	Address       string `csv:"Address"`
	City          string `csv:"City"`
	State         string `csv:"State"`
	Zip           string `csv:"Zip"`
	PeopleID      string `csv:"PeopleID"`
	FullAddress   string `csv:"Full_Address"`
	FailureReason string `csv:"Failure_Reason"`
}

// WriteFailed writes the failed-address artifact.
func (s *Store) WriteFailed(name string, failed []model.FailedAddress, linkBase string) error {
	var data []byte
	var err error

	if linkBase == "" {
		rows := make([]failedRowNoLink, len(failed))
		for i, f := range failed {
			rows[i] = failedRowNoLink{
				Name: f.Name, Address: f.Address, City: f.City, State: f.State,
				Zip: f.Zip, PeopleID: f.PeopleID,
				FullAddress: f.FullAddress, FailureReason: f.FailureReason,
			}
		}
		data, err = csvutil.Marshal(rows)
	} else {
		rows := make([]failedRow, len(failed))
		for i, f := range failed {
			rows[i] = failedRow{
				Name: f.Name, Address: f.Address, City: f.City, State: f.State,
				Zip: f.Zip, PeopleID: f.PeopleID,
				FullAddress: f.FullAddress, FailureReason: f.FailureReason,
				PeopleIDLink: model.PersonLink(linkBase, f.PeopleID),
			}
		}
		data, err = csvutil.Marshal(rows)
	}
	if err != nil {
		return eris.Wrap(err, "dataset: marshal failed addresses")
	}
	return eris.Wrap(os.WriteFile(filepath.Join(s.path(name), FailedFile), data, 0o644), "dataset: write failed addresses")
}

// WriteOriginal writes a copy of the parsed upload.
func (s *Store) WriteOriginal(name string, rows [][]string) error {
	f, err := os.Create(filepath.Join(s.path(name), OriginalFile))
	if err != nil {
		return eris.Wrap(err, "dataset: create original copy")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "dataset: write original row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "dataset: flush original copy")
}

// ArtifactPath returns the path of a named artifact file, or ErrNotFound
// if the dataset or the artifact is missing.
func (s *Store) ArtifactPath(name, file string) (string, error) {
	if !ValidName(name) {
		return "", eris.Errorf("dataset: invalid name %q", name)
	}
	path := filepath.Join(s.path(name), file)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

// cacheRow reads coordinates as raw text so rows with missing or
// non-numeric values can be filtered instead of failing the whole load.
type cacheRow struct {
	Name        string `csv:"Family Name"`
	Address     string `csv:"Address"`
	City        string `csv:"City"`
	State       string `csv:"State"`
	Zip         string `csv:"Zip"`
	PeopleID    string `csv:"PeopleID"`
	Latitude    string `csv:"Latitude"`
	Longitude   string `csv:"Longitude"`
	FullAddress string `csv:"Full_Address"`
}

// LoadValid reads a dataset's cache and returns only the rows with both
// coordinates present and numeric.
func (s *Store) LoadValid(name string) ([]model.GeocodeResult, error) {
	path, err := s.ArtifactPath(name, CacheFile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read cache")
	}

	var rows []cacheRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrap(err, "dataset: parse cache")
	}

	valid := make([]model.GeocodeResult, 0, len(rows))
	for _, row := range rows {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(row.Latitude), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(row.Longitude), 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		valid = append(valid, model.GeocodeResult{
			AddressRecord: model.AddressRecord{
				Name: row.Name, Address: row.Address, City: row.City,
				State: row.State, Zip: row.Zip, PeopleID: row.PeopleID,
			},
			Latitude:    &lat,
			Longitude:   &lon,
			FullAddress: row.FullAddress,
		})
	}
	return valid, nil
}

// Info describes one stored dataset for the picker.
type Info struct {
	Name         string    `json:"name"`
	LastModified time.Time `json:"last_modified"`
	AddressCount int       `json:"address_count"`
}

// List returns all readable datasets, newest first. Datasets with missing
// or corrupted cache files are skipped.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, s.ensureRoot()
		}
		return nil, eris.Wrap(err, "dataset: read root")
	}

	var g errgroup.Group
	g.SetLimit(listConcurrency)

	results := make([]*Info, len(entries))
	for i, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		i := i
		name := entry.Name()
		g.Go(func() error {
			if info, ok := s.describe(name); ok {
				results[i] = &info
			}
			return nil
		})
	}
	_ = g.Wait()

	var infos []Info
	for _, info := range results {
		if info != nil {
			infos = append(infos, *info)
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LastModified.After(infos[j].LastModified)
	})
	return infos, nil
}

// describe stats and counts one dataset, reporting ok=false when it should
// be skipped.
func (s *Store) describe(name string) (Info, bool) {
	cachePath := filepath.Join(s.path(name), CacheFile)
	stat, err := os.Stat(cachePath)
	if err != nil {
		return Info{}, false
	}
	if stat.Size() < minCacheBytes {
		zap.L().Warn("skipping corrupted dataset", zap.String("dataset", name))
		return Info{}, false
	}

	count, err := countRows(cachePath)
	if err != nil {
		zap.L().Warn("skipping unreadable dataset", zap.String("dataset", name), zap.Error(err))
		return Info{}, false
	}

	return Info{
		Name:         name,
		LastModified: stat.ModTime(),
		AddressCount: count,
	}, true
}

// countRows counts data rows in a CSV file, excluding the header.
func countRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrap(err, "dataset: open cache")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	count := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, eris.Wrap(err, "dataset: count rows")
		}
		count++
	}
	if count > 0 {
		count-- // header
	}
	return count, nil
}
