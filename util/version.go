package util

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
)

// Version is a semantic version of the form vMAJOR.MINOR.PATCH.
type Version struct {
	Major uint
	Minor uint
	Patch uint
}

// ToolVersion is the version of depbuild itself. It is recorded in every build stamp.
var ToolVersion = Version{1, 0, 0}

var versionRegexp = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)$`)

// ParseVersion parses a version string such as "v1.2.3".
func ParseVersion(s string) (Version, error) {
	match := versionRegexp.FindStringSubmatch(s)
	if match == nil {
		return Version{}, eris.Errorf("invalid version string '%s'", s)
	}

	parts := []uint{}
	for _, m := range match[1:] {
		part, err := strconv.ParseUint(m, 10, 32)
		if err != nil {
			return Version{}, eris.Wrapf(err, "invalid version component '%s'", m)
		}
		parts = append(parts, uint(part))
	}
	return Version{parts[0], parts[1], parts[2]}, nil
}

// Less reports whether v orders before other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}
