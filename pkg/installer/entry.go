package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	ErrNotInstalled     = errors.New("product is not installed")
	ErrAlreadyInstalled = errors.New("product is already installed")
	ErrRunning          = errors.New("product is running")
)

// UninstallRoot is where windows keeps the add/remove programs entries,
// below HKCU for per-user installs and HKLM for per-machine ones.
const UninstallRoot = `Software\Microsoft\Windows\CurrentVersion\Uninstall`

// Entry is a product's add/remove programs entry. Field names follow the
// registry value names.
type Entry struct {
	Key                  string `msgpack:"-"`
	DisplayName          string `msgpack:"DisplayName"`
	DisplayVersion       string `msgpack:"DisplayVersion"`
	Publisher            string `msgpack:"Publisher"`
	URLInfoAbout         string `msgpack:"URLInfoAbout,omitempty"`
	InstallLocation      string `msgpack:"InstallLocation"`
	DisplayIcon          string `msgpack:"DisplayIcon,omitempty"`
	UninstallString      string `msgpack:"UninstallString"`
	QuietUninstallString string `msgpack:"QuietUninstallString,omitempty"`
	EstimatedSize        uint32 `msgpack:"EstimatedSize"` // KiB
	NoModify             bool   `msgpack:"NoModify"`
	NoRepair             bool   `msgpack:"NoRepair"`
}

// Platform is where the engine records installs and creates shortcuts.
type Platform interface {
	// WriteEntry creates or replaces the uninstall entry.
	WriteEntry(e Entry) error
	// ReadEntry returns ErrNotInstalled if there is no entry for key.
	ReadEntry(key string) (Entry, error)
	// DeleteEntry is a no-op if the entry is already gone.
	DeleteEntry(key string) error
	// CreateShortcut creates a link to target. link has no extension,
	// the returned path is the file that was written.
	CreateShortcut(link, target, workDir string) (string, error)
}

const entriesBucket = "uninstall"

// storePlatform keeps uninstall entries, msgpack encoded, in a bbolt
// database and uses symlinks for shortcuts. It is the platform everywhere
// but windows, and the one tests use.
type storePlatform struct {
	path string
}

// NewStorePlatform returns a platform that keeps its entries below dir.
func NewStorePlatform(dir string) Platform {
	return &storePlatform{path: filepath.Join(dir, "uninstall.db")}
}

func (p *storePlatform) open() (*bbolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return nil, fmt.Errorf("creating entry store dir: %w", err)
	}
	db, err := bbolt.Open(p.path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening entry store %s: %w", p.path, err)
	}
	return db, nil
}

func (p *storePlatform) WriteEntry(e Entry) error {
	raw, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}

	db, err := p.open()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(entriesBucket))
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		return b.Put([]byte(e.Key), raw)
	})
}

func (p *storePlatform) ReadEntry(key string) (Entry, error) {
	var e Entry

	if _, err := os.Stat(p.path); errors.Is(err, os.ErrNotExist) {
		return e, ErrNotInstalled
	}

	db, err := p.open()
	if err != nil {
		return e, err
	}
	defer db.Close()

	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(entriesBucket))
		if b == nil {
			return ErrNotInstalled
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return ErrNotInstalled
		}
		return msgpack.Unmarshal(raw, &e)
	})
	e.Key = key
	return e, err
}

// DeleteEntry removes the entry, and the store itself once it holds no
// entries, so a clean profile stays clean.
func (p *storePlatform) DeleteEntry(key string) error {
	if _, err := os.Stat(p.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	db, err := p.open()
	if err != nil {
		return err
	}

	var empty bool
	err = db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(entriesBucket))
		if b == nil {
			empty = true
			return nil
		}
		if err := b.Delete([]byte(key)); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
		first, _ := b.Cursor().First()
		empty = first == nil
		return nil
	})
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil || !empty {
		return err
	}

	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	// the dir goes too, if nothing else lives there
	_ = os.Remove(filepath.Dir(p.path))
	return nil
}

func (p *storePlatform) CreateShortcut(link, target, _ string) (string, error) {
	if err := os.Remove(link); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("replacing shortcut %s: %w", link, err)
	}
	if err := os.Symlink(target, link); err != nil {
		return "", fmt.Errorf("creating shortcut %s: %w", link, err)
	}
	return link, nil
}
