package flux

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"wrapped crc", fmt.Errorf("sector 3: %w", ErrCrcMismatch), KindCrcMismatch},
		{"invalid arg helper", InvalidArgf("workers %d", -1), KindInvalidArgument},
		{"drift", fmt.Errorf("rev 2: %w", ErrSyncDrift), KindSyncDrift},
		{"bounds", ErrBoundsExceeded, KindBoundsExceeded},
		{"passes", ErrInsufficientPasses, KindInsufficientPasses},
		{"sync", ErrSyncNotFound, KindSyncNotFound},
		{"foreign", errors.New("disk on fire"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	assert.True(t, IsFatal(InvalidArgf("bad preset %q", "x")))
	assert.False(t, IsFatal(fmt.Errorf("track 0: %w", ErrCrcMismatch)))
	assert.False(t, IsFatal(nil))
}

func TestInvalidArgfMessage(t *testing.T) {
	t.Parallel()

	err := InvalidArgf("min_passes %d exceeds max_passes %d", 5, 3)
	assert.EqualError(t, err, "min_passes 5 exceeds max_passes 3: invalid argument")
}

func TestTrackKeyOrdering(t *testing.T) {
	t.Parallel()

	keys := []TrackKey{{2, 1}, {0, 1}, {2, 0}, {0, 0}}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	assert.Equal(t, []TrackKey{{0, 0}, {0, 1}, {2, 0}, {2, 1}}, keys)
	assert.Equal(t, "02.1", TrackKey{2, 1}.String())
}
