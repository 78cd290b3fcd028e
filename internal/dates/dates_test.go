package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEastern(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer("US/Eastern", "")
	require.NoError(t, err)
	return n
}

func TestNormalize_Valid(t *testing.T) {
	n := newEastern(t)

	assert.Equal(t, "2018-01-15T13:00:00-05:00", n.Normalize("01/15/2018 01:00 PM"))
	assert.Equal(t, "2018-07-04T09:30:00-04:00", n.Normalize("07/04/2018 09:30 AM"))
}

func TestNormalize_Lenient(t *testing.T) {
	n := newEastern(t)

	assert.Equal(t, "2020-01-13T09:00:00-05:00", n.Normalize("1/13/2020 9:00 AM"))
	assert.Equal(t, "2018-01-15T13:00:00-05:00", n.Normalize("01/15/2018 01:00 pm"))
	assert.Equal(t, "2020-07-04T21:05:00-04:00", n.Normalize("7/4/2020 9:5 pm"))
	assert.Equal(t, "2020-01-13T00:30:00-05:00", n.Normalize("1/13/2020 12:30 am"))
}

func TestNormalize_RoundTripsWallClock(t *testing.T) {
	n := newEastern(t)
	inputs := []string{
		"01/01/2020 12:00 AM",
		"03/08/2020 04:15 PM",
		"11/01/2020 11:59 PM",
		"12/31/1999 06:45 AM",
	}

	for _, in := range inputs {
		out := n.Normalize(in)
		require.NotEmpty(t, out, in)

		parsed, err := time.Parse(time.RFC3339, out)
		require.NoError(t, err)
		assert.Equal(t, in, n.Localize(&parsed))
	}
}

func TestNormalize_Malformed(t *testing.T) {
	n := newEastern(t)
	inputs := []string{
		"",
		"   ",
		"not a date",
		"2018-01-15",
		"13/15/2018 01:00 PM",
		"01/32/2018 01:00 PM",
		"01/15/2018 13:00 PM",
		"01/15/2018 01:60 PM",
		"01/15/2018 01:00",
		"01/15/2018 01:00 XM",
	}

	for _, in := range inputs {
		assert.NotPanics(t, func() {
			assert.Equal(t, "", n.Normalize(in), "input %q", in)
		})
	}
}

func TestLocalize_Nil(t *testing.T) {
	n := newEastern(t)
	assert.Equal(t, "", n.Localize(nil))
}

func TestLocalize_FromUTC(t *testing.T) {
	n := newEastern(t)
	utc := time.Date(2018, 1, 15, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "01/15/2018 01:00 PM", n.Localize(&utc))
}

func TestNewNormalizer_BadZone(t *testing.T) {
	_, err := NewNormalizer("Not/AZone", "")
	assert.Error(t, err)
}
