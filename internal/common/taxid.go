// -----------------------------------------------------------------------
// Tax Identifiers - NIP and REGON checksum validation
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"strings"
)

var nipWeights = []int{6, 5, 7, 2, 3, 4, 5, 6, 7}

var (
	regon9Weights  = []int{8, 9, 2, 3, 4, 5, 6, 7}
	regon14Weights = []int{2, 4, 8, 5, 0, 9, 7, 3, 6, 1, 2, 4, 8}
)

// NormalizeDigits strips everything but ASCII digits. Used before comparing
// or checksumming identifiers that may carry dashes or spaces.
func NormalizeDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateNIP verifies a Polish NIP: exactly 10 digits and a valid mod-11
// weighted checksum. A computed control digit of 10 is invalid by definition.
func ValidateNIP(nip string) (bool, string) {
	digits := NormalizeDigits(nip)
	if len(digits) != 10 {
		return false, "NIP musi zawierać dokładnie 10 cyfr"
	}

	sum := 0
	for i, w := range nipWeights {
		sum += w * int(digits[i]-'0')
	}

	control := sum % 11
	if control == 10 {
		return false, "nieprawidłowa suma kontrolna NIP"
	}
	if control != int(digits[9]-'0') {
		return false, "nieprawidłowa suma kontrolna NIP"
	}
	return true, ""
}

// ValidateREGON verifies a Polish REGON in its 9- or 14-digit form.
func ValidateREGON(regon string) (bool, string) {
	digits := NormalizeDigits(regon)

	switch len(digits) {
	case 9:
		if !regonChecksumOK(digits, regon9Weights) {
			return false, "nieprawidłowa suma kontrolna REGON"
		}
		return true, ""
	case 14:
		// The 14-digit form embeds a valid 9-digit REGON
		if !regonChecksumOK(digits[:9], regon9Weights) {
			return false, "nieprawidłowa suma kontrolna REGON"
		}
		if !regonChecksumOK(digits, regon14Weights) {
			return false, "nieprawidłowa suma kontrolna REGON"
		}
		return true, ""
	default:
		return false, fmt.Sprintf("REGON musi zawierać 9 lub 14 cyfr, podano %d", len(digits))
	}
}

func regonChecksumOK(digits string, weights []int) bool {
	sum := 0
	for i, w := range weights {
		sum += w * int(digits[i]-'0')
	}
	control := sum % 11
	if control == 10 {
		control = 0
	}
	return control == int(digits[len(weights)]-'0')
}
