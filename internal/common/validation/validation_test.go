package validation

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nebula-miniapp/internal/common/errors"
)

func TestValidateItemID(t *testing.T) {
	for _, id := range []string{"a1", "tetris_2", "6650f1c2-aa"} {
		assert.NoError(t, ValidateItemID(id), id)
	}
	for _, id := range []string{"", "   ", "a/b", "a b", "../etc", strings.Repeat("x", MaxItemIDLength+1)} {
		assert.Error(t, ValidateItemID(id), id)
	}
}

func TestRatingAndDonationBounds(t *testing.T) {
	assert.NoError(t, ValidateRating(1))
	assert.NoError(t, ValidateRating(5))
	assert.Error(t, ValidateRating(0))
	assert.Error(t, ValidateRating(6))

	assert.NoError(t, ValidateDonation(10))
	assert.Error(t, ValidateDonation(0))
	assert.Error(t, ValidateDonation(11))
}

func TestNormalizePlatform(t *testing.T) {
	cases := map[string]string{
		"ios":       "ios",
		" Android ": "android",
		"tdesktop":  "tdesktop",
		"web_k":     "web_k",
		"":          "unknown",
		"mac os":    "unknown",
		"<script>":  "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePlatform(in), in)
	}
	assert.Equal(t, "unknown", NormalizePlatform(strings.Repeat("a", MaxPlatformLength+1)))
}

func TestIsValidKind(t *testing.T) {
	for _, k := range []string{"", "all", "games", "apps"} {
		assert.True(t, IsValidKind(k), k)
	}
	assert.False(t, IsValidKind("Games"))
	assert.False(t, IsValidKind("movies"))
}

func TestFromBinding(t *testing.T) {
	type body struct {
		Rating int `validate:"required,min=1,max=5"`
		Stars  int `validate:"max=10"`
	}
	err := validator.New().Struct(body{Stars: 20})
	require.Error(t, err)

	got := FromBinding(err)
	require.Len(t, got, 2)
	assert.Equal(t, errors.ErrCodeValidation, got[0].Code)
	assert.Equal(t, "rating", got[0].Details["field"])
	assert.Equal(t, "is required", got[0].Details["reason"])
	assert.Equal(t, "stars", got[1].Details["field"])
	assert.Equal(t, "must be at most 10", got[1].Details["reason"])
}

func TestFromBindingNonValidatorError(t *testing.T) {
	got := FromBinding(stderrors.New("unexpected EOF"))

	require.Len(t, got, 1)
	assert.Equal(t, "body", got[0].Details["field"])
	assert.Equal(t, "unexpected EOF", got[0].Details["reason"])
}
