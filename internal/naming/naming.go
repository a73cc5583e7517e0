// Package naming validates bucket names before a session starts. S3 bucket
// names are DNS names, so validation leans on the IDNA lookup profile in
// addition to the S3-specific length and character rules.
package naming

import (
	"errors"
	"net"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidBucketName indicates the name cannot be used as an S3 bucket.
var ErrInvalidBucketName = errors.New("invalid bucket name")

var labelRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidateBucketName checks the S3 bucket naming rules: 3-63 characters,
// lowercase letters, digits, hyphens and dots, with each dot-separated
// label starting and ending alphanumeric, not formatted as an IP address,
// and resolvable under the IDNA lookup profile.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return ErrInvalidBucketName
	}
	if net.ParseIP(name) != nil {
		return ErrInvalidBucketName
	}
	for _, label := range strings.Split(name, ".") {
		if !labelRe.MatchString(label) {
			return ErrInvalidBucketName
		}
	}
	if _, err := idna.Lookup.ToASCII(name); err != nil {
		return ErrInvalidBucketName
	}
	return nil
}
