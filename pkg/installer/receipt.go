package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mp4-to-gif-converter/packager/pkg/manifest"
	"go.etcd.io/bbolt"
)

// ReceiptFile is written into the install dir. It records everything an
// install created, so uninstall never has to guess.
const ReceiptFile = "unins000.db"

const (
	metaBucket      = "meta"
	filesBucket     = "files"
	dirsBucket      = "dirs"
	shortcutsBucket = "shortcuts"
)

var receiptBuckets = []string{metaBucket, filesBucket, dirsBucket, shortcutsBucket}

const (
	metaManifest   = "manifest"
	metaVersion    = "version"
	metaInstallDir = "install_dir"
	metaTasks      = "tasks"
)

// Receipt describes an installed product.
type Receipt struct {
	InstallDir      string
	Version         string
	PreviousVersion string
	Manifest        *manifest.Manifest
	Tasks           []string
	Files           []string // files that uninstall removes
	Dirs            []string // directories the install created
	Shortcuts       []string
	Launched        []string // post install actions that were started
}

type receiptStore struct {
	db *bbolt.DB
}

func openReceipt(path string) (*receiptStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening receipt %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range receiptBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &receiptStore{db: db}, nil
}

func (s *receiptStore) Close() error {
	return s.db.Close()
}

func (s *receiptStore) set(bucket, key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s bucket does not exist", bucket)
		}
		if err := b.Put([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("setting %s key: %w", key, err)
		}
		return nil
	})
}

// add records a path, keyed so that lookups are case insensitive on
// windows and repeat installs do not duplicate it.
func (s *receiptStore) add(bucket string, paths ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s bucket does not exist", bucket)
		}
		for _, p := range paths {
			if err := b.Put([]byte(pathKey(p)), []byte(p)); err != nil {
				return fmt.Errorf("recording %s: %w", p, err)
			}
		}
		return nil
	})
}

func (s *receiptStore) values(bucket string) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s bucket does not exist", bucket)
		}
		return b.ForEach(func(_, v []byte) error {
			out = append(out, string(v))
			return nil
		})
	})
	return out, err
}

func (s *receiptStore) get(bucket, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s bucket does not exist", bucket)
		}
		value = string(b.Get([]byte(key)))
		return nil
	})
	return value, err
}

func (s *receiptStore) writeMeta(r *Receipt) error {
	raw, err := manifest.Marshal(r.Manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	meta := map[string]string{
		metaManifest:   string(raw),
		metaVersion:    r.Version,
		metaInstallDir: r.InstallDir,
		metaTasks:      strings.Join(r.Tasks, ","),
	}
	for k, v := range meta {
		if err := s.set(metaBucket, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *receiptStore) load() (*Receipt, error) {
	r := &Receipt{}

	raw, err := s.get(metaBucket, metaManifest)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		if r.Manifest, err = manifest.Parse([]byte(raw)); err != nil {
			return nil, fmt.Errorf("decoding recorded manifest: %w", err)
		}
	}

	if r.Version, err = s.get(metaBucket, metaVersion); err != nil {
		return nil, err
	}
	if r.InstallDir, err = s.get(metaBucket, metaInstallDir); err != nil {
		return nil, err
	}
	tasks, err := s.get(metaBucket, metaTasks)
	if err != nil {
		return nil, err
	}
	if tasks != "" {
		r.Tasks = strings.Split(tasks, ",")
	}

	for bucket, dst := range map[string]*[]string{
		filesBucket:     &r.Files,
		dirsBucket:      &r.Dirs,
		shortcutsBucket: &r.Shortcuts,
	} {
		if *dst, err = s.values(bucket); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// ReadReceipt loads the receipt of the product installed in dir. It
// returns ErrNotInstalled when there is none.
func ReadReceipt(dir string) (*Receipt, error) {
	path := filepath.Join(dir, ReceiptFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no receipt in %s: %w", dir, ErrNotInstalled)
	}

	s, err := openReceipt(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.load()
}

func pathKey(p string) string {
	p = filepath.Clean(p)
	if filepath.Separator == '\\' {
		p = strings.ToLower(p)
	}
	return p
}

// deepestFirst orders paths so children sort before their parents.
func deepestFirst(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.SliceStable(out, func(i, j int) bool {
		di := strings.Count(out[i], string(filepath.Separator))
		dj := strings.Count(out[j], string(filepath.Separator))
		if di != dj {
			return di > dj
		}
		return out[i] > out[j]
	})
	return out
}
