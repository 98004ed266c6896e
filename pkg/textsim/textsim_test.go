package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatioIdentical(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, Ratio("School fair on Friday", "School fair on Friday"))
}

func TestRatioIgnoresWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, Ratio("School  fair\n on Friday", " School fair on Friday "))
}

func TestRatioEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Ratio("", "anything"))
	assert.Equal(t, 0.0, Ratio("   ", "anything"))
	assert.Equal(t, 0.0, Ratio("", ""))
}

func TestRatioDisjoint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
}

func TestRatioKnownValue(t *testing.T) {
	t.Parallel()

	// "abcd" vs "bcde": common block "bcd", 2*3/(4+4) = 0.75
	assert.InDelta(t, 0.75, Ratio("abcd", "bcde"), 1e-9)
}

func TestRatioNearDuplicateAnnouncements(t *testing.T) {
	t.Parallel()

	a := "Picture day rescheduled to Friday October 10. Bring order forms."
	b := "Picture day rescheduled to Friday October 17. Bring order forms."
	assert.Greater(t, Ratio(a, b), 0.85)

	c := "Band rehearsal moved to the gym this week only."
	assert.Less(t, Ratio(a, c), 0.85)
}

func TestRatioSymmetric(t *testing.T) {
	t.Parallel()

	a := "Spirit week starts Monday, wear your house colors"
	b := "Spirit week begins Monday, wear house colors"
	assert.InDelta(t, Ratio(a, b), Ratio(b, a), 1e-9)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", Normalize("  a \t b\n\nc "))
	assert.Equal(t, "", Normalize("   "))
}
