package identity

import "fmt"

// NormalizePhone reduces a phone-shaped string to the canonical display form
// (AAA) BBB-CCCC. Ten digits are accepted as-is; eleven digits with a leading
// country 1 drop it; any other digit count is rejected. Both the extractor
// and contact reconciliation key on this form, so it is the single place
// phone identity is decided.
func NormalizePhone(raw string) (string, bool) {
	var digits []byte
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}

	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", false
	}

	return fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:10]), true
}
