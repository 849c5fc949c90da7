// Package semver implements the three-component version value type used by
// the document and compilation version stores. Versions are compared
// component-wise; lexical comparison of "1.10.0" vs "1.9.0" would be wrong.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// Version is a parsed X.Y.Z version number.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Initial is the version assigned to a freshly created document or
// compilation.
var Initial = Version{Major: 1, Minor: 0, Patch: 0}

// Parse parses an "X.Y.Z" string into a Version.
func Parse(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Version{}, vderrors.ValidationError("version must have three components").
			WithContext("version", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, vderrors.ValidationError("version component is not a non-negative integer").
				WithContext("version", s).
				WithContext("component", p)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParse parses s and panics on failure. Intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version as "X.Y.Z".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// BumpPatch returns the version with the patch component incremented.
func (v Version) BumpPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// BumpMinor returns the version with the minor component incremented and the
// patch component reset.
func (v Version) BumpMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// BumpMajor returns the version with the major component incremented and the
// minor and patch components reset.
func (v Version) BumpMajor() Version {
	return Version{Major: v.Major + 1}
}

// Compare returns -1, 0, or 1 depending on whether v is less than, equal to,
// or greater than other.
func (v Version) Compare(other Version) int {
	if c := compareInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	return compareInt(v.Patch, other.Patch)
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Equal reports whether v and other are the same version.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
