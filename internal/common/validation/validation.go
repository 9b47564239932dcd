package validation

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"nebula-miniapp/internal/common/errors"
)

const (
	MinRating = 1
	MaxRating = 5

	MinDonationStars = 1
	MaxDonationStars = 10

	MaxItemIDLength   = 64
	MaxPlatformLength = 32
	MaxCategoryLength = 64
)

var (
	itemIDRegex   = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
	platformRegex = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// ValidateItemID checks a catalog item id taken from the path.
func ValidateItemID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	if len(id) > MaxItemIDLength {
		return fmt.Errorf("item id cannot exceed %d characters", MaxItemIDLength)
	}
	if !itemIDRegex.MatchString(id) {
		return fmt.Errorf("item id must contain only letters, digits, dashes and underscores")
	}
	return nil
}

func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)
	}
	return nil
}

func ValidateDonation(stars int) error {
	if stars < MinDonationStars || stars > MaxDonationStars {
		return fmt.Errorf("stars must be between %d and %d", MinDonationStars, MaxDonationStars)
	}
	return nil
}

// ValidateCategory accepts any short label; the All sentinel is handled by the caller.
func ValidateCategory(category string) error {
	if len(category) > MaxCategoryLength {
		return fmt.Errorf("category cannot exceed %d characters", MaxCategoryLength)
	}
	return nil
}

// NormalizePlatform lowercases a Telegram platform name and maps anything
// unrecognisable to "unknown".
func NormalizePlatform(platform string) string {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" || len(platform) > MaxPlatformLength || !platformRegex.MatchString(platform) {
		return "unknown"
	}
	return platform
}

// IsValidKind reports whether kind is one of the catalog list filters.
func IsValidKind(kind string) bool {
	switch kind {
	case "", "all", "games", "apps":
		return true
	}
	return false
}

// FromBinding turns a gin/validator binding error into validation AppErrors,
// one per failing field.
func FromBinding(err error) []errors.AppError {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return []errors.AppError{*errors.NewValidationError("body", err.Error())}
	}
	out := make([]errors.AppError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, *errors.NewValidationError(lowerFirst(fe.Field()), describe(fe)))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed on " + fe.Tag()
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
