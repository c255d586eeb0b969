package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusFilter(t *testing.T) {
	all, err := parseStatusFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, AllStatuses, all)

	some, err := parseStatusFilter([]string{"image_too_large", "unposted"})
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusImageTooLarge, StatusUnposted}, some)

	_, err = parseStatusFilter([]string{"posted"})
	assert.ErrorContains(t, err, `unknown status "posted"`)
}

func TestWriteStatusCounts(t *testing.T) {
	store := newTestStore(t,
		testImage{id: 1, status: StatusUnposted},
		testImage{id: 2, status: StatusUnposted},
		testImage{id: 3, status: StatusImageTooLarge},
		testImage{id: 4, status: StatusSuccess},
	)
	counts, err := store.CountByStatus(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name     string
		statuses []Status
		want     string
	}{
		{
			name:     "all statuses",
			statuses: AllStatuses,
			want: "unposted         2\n" +
				"success          1\n" +
				"download_fail    0\n" +
				"image_too_large  1\n" +
				"post_fail        0\n" +
				"total            4\n",
		},
		{
			name:     "filtered",
			statuses: []Status{StatusImageTooLarge, StatusPostFail},
			want: "image_too_large  1\n" +
				"post_fail        0\n" +
				"total            1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			writeStatusCounts(&out, counts, tt.statuses)
			assert.Equal(t, tt.want, out.String())
		})
	}
}
