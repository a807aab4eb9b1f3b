package domain

import "strconv"

// OrderedNameNumber returns the smallest positive integer k such that
// desired immediately followed by k does not occur in existing. Used when a
// caller needs the suffix itself rather than the combined name.
func OrderedNameNumber(desired string, existing []string) int {
	taken := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		taken[name] = struct{}{}
	}
	for k := 1; ; k++ {
		if _, ok := taken[desired+strconv.Itoa(k)]; !ok {
			return k
		}
	}
}

// OrderedName returns desired unchanged when it does not occur in existing,
// otherwise desired with the lowest free positive integer suffix appended.
func OrderedName(desired string, existing []string) string {
	occupied := false
	for _, name := range existing {
		if name == desired {
			occupied = true
			break
		}
	}
	if !occupied {
		return desired
	}
	return desired + strconv.Itoa(OrderedNameNumber(desired, existing))
}

// TruncateName returns name limited to max runes. The second result reports
// whether truncation happened, so the caller can surface the advisory once.
func TruncateName(name string, max int) (string, bool) {
	if max <= 0 {
		max = MaxNameLength
	}
	runes := []rune(name)
	if len(runes) <= max {
		return name, false
	}
	return string(runes[:max]), true
}

// ValidateNameLength returns a NameTooLongError when name exceeds
// MaxNameLength runes.
func ValidateNameLength(name string) error {
	if len([]rune(name)) > MaxNameLength {
		return NameTooLongError{Name: name, Max: MaxNameLength}
	}
	return nil
}
