package capture

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/walkmapper/walkmapper_core/internal/models"
)

var (
	profileValidate     *validator.Validate
	profileValidateOnce sync.Once
)

// Validate checks a candidate segment against the policy.
// Rules run in order and the first failure wins.
func Validate(candidate models.Segment, policy Policy) (models.Segment, error) {
	if !candidate.TransportMode.Valid() {
		return models.Segment{}, fmt.Errorf("%w: %q", ErrInvalidTransportMode, candidate.TransportMode)
	}

	if candidate.DurationSeconds < 0 {
		return models.Segment{}, ErrNegativeDuration
	}
	if candidate.DurationSeconds == 0 && policy.RejectZeroDuration {
		return models.Segment{}, ErrZeroDuration
	}

	if policy.RequireRating {
		if candidate.ExperienceRating < 1 || candidate.ExperienceRating > 5 {
			return models.Segment{}, ErrMissingRating
		}
	} else if candidate.ExperienceRating < 0 || candidate.ExperienceRating > 5 {
		return models.Segment{}, ErrRatingOutOfRange
	}

	return candidate, nil
}

// ValidateProfile checks the struct rules on a user profile plus the
// variant's full-name requirement
func ValidateProfile(profile models.UserProfile, policy Policy) error {
	profileValidateOnce.Do(func() {
		profileValidate = validator.New(validator.WithRequiredStructEnabled())
	})

	if err := profileValidate.Struct(profile); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	if policy.RequireFullName && strings.TrimSpace(profile.FullName) == "" {
		return fmt.Errorf("%w: FullName (required)", ErrInvalidProfile)
	}
	return nil
}
