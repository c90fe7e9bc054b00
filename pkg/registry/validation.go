package registry

import "unicode/utf8"

func lengthWithin(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

// IsValidTag reports whether tag has between 1 and 32 characters.
func IsValidTag(tag string) bool {
	return lengthWithin(tag, MinTagLength, MaxTagLength)
}

// IsValidTagCollection reports whether tags holds 1 to 10 valid tags.
// Duplicates are permitted.
func IsValidTagCollection(tags []string) bool {
	if len(tags) < MinTagCount || len(tags) > MaxTagCount {
		return false
	}
	for _, tag := range tags {
		if !IsValidTag(tag) {
			return false
		}
	}
	return true
}

// IsValidTitle reports whether title has between 1 and 64 characters.
func IsValidTitle(title string) bool {
	return lengthWithin(title, MinTitleLength, MaxTitleLength)
}

// IsValidDescription reports whether description has between 1 and 128 characters.
func IsValidDescription(description string) bool {
	return lengthWithin(description, MinDescriptionLength, MaxDescriptionLength)
}

// IsValidSize reports whether 1 <= size < 1,000,000,000.
func IsValidSize(size uint64) bool {
	return size >= MinSizeBytes && size < MaxSizeBytes
}

// ValidateMetadata checks every mutable field and returns the kind of the
// first failure in the order title, size, description, tags.
func ValidateMetadata(title string, size uint64, description string, tags []string) error {
	if !IsValidTitle(title) {
		return ErrInvalidMetadata
	}
	if !IsValidSize(size) {
		return ErrFileSizeViolation
	}
	if !IsValidDescription(description) {
		return ErrInvalidMetadata
	}
	if !IsValidTagCollection(tags) {
		return ErrTagValidationFailed
	}
	return nil
}
