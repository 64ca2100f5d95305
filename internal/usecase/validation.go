package usecase

import "unicode"

const (
	minMembershipIDLength = 6
	maxMembershipIDLength = 40
)

// ValidateMembershipID checks the shape of a legacy membership id: letters,
// digits and dashes within a bounded length.
func ValidateMembershipID(id string) bool {
	if len(id) < minMembershipIDLength || len(id) > maxMembershipIDLength {
		return false
	}

	for _, r := range id {
		if r > unicode.MaxASCII {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}

	return true
}
