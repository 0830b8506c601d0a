package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// FormatVersion converts a version string into the W.X.Y.Z form that
// windows file versions and the uninstall entry require. A git style
// `v1.2.3-4-gdeadbee` suffix becomes the fourth component.
func FormatVersion(rawVersion string) (string, error) {
	v, err := semver.NewVersion(rawVersion)
	if err != nil {
		return "", errors.Wrapf(err, "version %s did not match expected format", rawVersion)
	}

	commits := "0"
	if pre := v.Prerelease(); pre != "" {
		head := strings.SplitN(pre, "-", 2)[0]
		if _, err := strconv.ParseUint(head, 10, 16); err == nil {
			commits = head
		}
	}

	return fmt.Sprintf("%d.%d.%d.%s", v.Major(), v.Minor(), v.Patch(), commits), nil
}

// CompareVersions compares two product versions, returning -1, 0 or 1.
func CompareVersions(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing version %s", a)
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing version %s", b)
	}
	return va.Compare(vb), nil
}
