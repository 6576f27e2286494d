package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPointsBands(t *testing.T) {
	cases := []struct {
		minutes int
		want    int
	}{
		{0, 1},
		{1, 1},
		{14, 1},
		{15, 3},
		{29, 3},
		{30, 5},
		{59, 5},
		{60, 8},
		{119, 8},
		{120, 10},
		{240, 10},
	}
	for _, tc := range cases {
		got := Points(time.Duration(tc.minutes) * time.Minute)
		assert.Equal(t, tc.want, got, "minutes=%d", tc.minutes)
	}
}

func TestPointsTruncatesSeconds(t *testing.T) {
	// 14m59s has not completed the 15th minute.
	assert.Equal(t, 1, Points(14*time.Minute+59*time.Second))
	assert.Equal(t, 3, Points(15*time.Minute+1*time.Second))
	assert.Equal(t, 8, Points(119*time.Minute+59*time.Second))
}

func TestPointsNegativeDuration(t *testing.T) {
	// Clock skew must not crash and lands in the lowest band.
	assert.Equal(t, 1, Points(-5*time.Minute))
	assert.Equal(t, 1, Points(0))
}

func TestPointsMonotonic(t *testing.T) {
	valid := map[int]bool{1: true, 3: true, 5: true, 8: true, 10: true}
	prev := 0
	for m := 0; m <= 300; m++ {
		p := Points(time.Duration(m) * time.Minute)
		assert.True(t, valid[p], "minutes=%d produced %d", m, p)
		assert.GreaterOrEqual(t, p, prev, "points decreased at %d minutes", m)
		prev = p
	}
}
