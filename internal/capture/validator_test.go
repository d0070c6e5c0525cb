package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/walkmapper/walkmapper_core/internal/models"
)

func TestValidate(t *testing.T) {
	rated := Policy{RequireRating: true}
	timed := Policy{RejectZeroDuration: true}
	loose := Policy{}

	tests := []struct {
		name    string
		segment models.Segment
		policy  Policy
		wantErr error
	}{
		{
			name:    "Valid rated segment",
			segment: models.Segment{TransportMode: models.ModeWalking, DurationSeconds: 30, ExperienceRating: 4},
			policy:  rated,
		},
		{
			name:    "Unknown transport mode",
			segment: models.Segment{TransportMode: "hovercraft", DurationSeconds: 30, ExperienceRating: 4},
			policy:  rated,
			wantErr: ErrInvalidTransportMode,
		},
		{
			name:    "Transport mode checked before duration",
			segment: models.Segment{TransportMode: "", DurationSeconds: -5},
			policy:  rated,
			wantErr: ErrInvalidTransportMode,
		},
		{
			name:    "Negative duration",
			segment: models.Segment{TransportMode: models.ModeBiking, DurationSeconds: -1},
			policy:  loose,
			wantErr: ErrNegativeDuration,
		},
		{
			name:    "Zero duration rejected when time is required",
			segment: models.Segment{TransportMode: models.ModeDriving},
			policy:  timed,
			wantErr: ErrZeroDuration,
		},
		{
			name:    "Zero duration is passing through",
			segment: models.Segment{TransportMode: models.ModeDriving},
			policy:  loose,
		},
		{
			name:    "Rating zero rejected when required",
			segment: models.Segment{TransportMode: models.ModeTransit, DurationSeconds: 10},
			policy:  rated,
			wantErr: ErrMissingRating,
		},
		{
			name:    "Rating zero accepted when not required",
			segment: models.Segment{TransportMode: models.ModeTransit, DurationSeconds: 10},
			policy:  loose,
		},
		{
			name:    "Rating above five rejected when required",
			segment: models.Segment{TransportMode: models.ModeOther, DurationSeconds: 10, ExperienceRating: 6},
			policy:  rated,
			wantErr: ErrMissingRating,
		},
		{
			name:    "Rating above five rejected when optional",
			segment: models.Segment{TransportMode: models.ModeOther, DurationSeconds: 10, ExperienceRating: 6},
			policy:  loose,
			wantErr: ErrRatingOutOfRange,
		},
		{
			name:    "Zero duration and zero rating in rated variant",
			segment: models.Segment{TransportMode: models.ModeWalking},
			policy:  CampusWalkRated.Policy,
			wantErr: ErrMissingRating,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.segment, tt.policy)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.segment, got)
		})
	}
}

func TestValidateProfile(t *testing.T) {
	t.Run("Student needs grade level", func(t *testing.T) {
		err := ValidateProfile(models.UserProfile{UserType: models.UserStudent}, Policy{})
		assert.ErrorIs(t, err, ErrInvalidProfile)
		assert.Contains(t, err.Error(), "GradeLevel")
	})

	t.Run("Student with grade level", func(t *testing.T) {
		err := ValidateProfile(models.UserProfile{UserType: models.UserStudent, GradeLevel: "junior"}, Policy{})
		assert.NoError(t, err)
	})

	t.Run("Faculty without grade level", func(t *testing.T) {
		err := ValidateProfile(models.UserProfile{UserType: models.UserFaculty, Department: "Physics"}, Policy{})
		assert.NoError(t, err)
	})

	t.Run("Unknown user type", func(t *testing.T) {
		err := ValidateProfile(models.UserProfile{UserType: "alien"}, Policy{})
		assert.ErrorIs(t, err, ErrInvalidProfile)
	})

	t.Run("Full name required by variant", func(t *testing.T) {
		err := ValidateProfile(models.UserProfile{UserType: models.UserStaff}, CampusWalkRated.Policy)
		assert.ErrorIs(t, err, ErrInvalidProfile)

		err = ValidateProfile(models.UserProfile{UserType: models.UserStaff, FullName: "Sam Lee"}, CampusWalkRated.Policy)
		assert.NoError(t, err)
	})
}

func TestGetVariant(t *testing.T) {
	assert.Equal(t, "campus_walk", GetVariant("campus_walk").Name)
	assert.Equal(t, "geo_survey", GetVariant("geo_survey").Name)
	assert.Equal(t, DefaultVariant, GetVariant("unknown").Name)
	assert.Len(t, AllVariants(), 3)
}
