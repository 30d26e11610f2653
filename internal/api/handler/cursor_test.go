package handler

import (
	"testing"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	cursor := &JobCursor{
		CreatedAt: time.Unix(0, 1767225600123456789),
		JobID:     "0b6f2c1e-7d4f-4f4c-9a51-3f1d2e0c9b7a",
	}

	decoded, err := DecodeJobCursor(EncodeJobCursor(cursor))
	require.NoError(t, err)
	assert.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, cursor.JobID, decoded.JobID)
}

func TestDecodeJobCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "###"},
		{name: "missing separator", cursor: "MTIzNDU="},
		{name: "non numeric time", cursor: "YWJjfGpvYi0x"},
		{name: "empty job id", cursor: "MTIzfA=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJobCursor(tt.cursor)
			assert.Error(t, err)
		})
	}

	cursor, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestPageAfter(t *testing.T) {
	base := time.Now()
	jobs := []domain.JobView{
		{JobID: "c", CreatedAt: base.Add(2 * time.Second)},
		{JobID: "b", CreatedAt: base.Add(time.Second)},
		{JobID: "a", CreatedAt: base},
	}

	tests := []struct {
		name   string
		cursor *JobCursor
		want   []string
	}{
		{name: "no cursor", cursor: nil, want: []string{"c", "b", "a"}},
		{name: "after first", cursor: &JobCursor{JobID: "c", CreatedAt: jobs[0].CreatedAt}, want: []string{"b", "a"}},
		{name: "after last", cursor: &JobCursor{JobID: "a", CreatedAt: jobs[2].CreatedAt}, want: nil},
		{name: "cursor job removed", cursor: &JobCursor{JobID: "gone", CreatedAt: base.Add(1500 * time.Millisecond)}, want: []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, job := range pageAfter(jobs, tt.cursor) {
				got = append(got, job.JobID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
