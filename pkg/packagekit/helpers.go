package packagekit

import (
	"os"

	"github.com/pkg/errors"
)

func isDirectory(d string) error {
	dStat, err := os.Stat(d)
	if os.IsNotExist(err) {
		return errors.Wrapf(err, "missing payload root %s", d)
	}
	if err != nil {
		return errors.Wrapf(err, "stat payload root %s", d)
	}

	if !dStat.IsDir() {
		return errors.Errorf("payload root (%s) isn't a directory", d)
	}

	return nil
}
