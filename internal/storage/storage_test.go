package storage

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
	"github.com/cuongbtq/text-stream/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage() *Storage {
	return NewStorage(slog.New(slog.DiscardHandler))
}

func TestStorage_CreateJob(t *testing.T) {
	tests := []struct {
		name      string
		inputText string
		wantErr   error
	}{
		{
			name:      "valid input",
			inputText: "Hello, World!",
		},
		{
			name:      "many repeated characters",
			inputText: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		},
		{
			name:      "empty input",
			inputText: "",
			wantErr:   domain.ErrInvalidArgument,
		},
		{
			name:      "whitespace only input",
			inputText: " \t\n ",
			wantErr:   domain.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStorage()

			job, err := s.CreateJob(tt.inputText, "conn-1")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, s.Len())
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, job.JobID)
			assert.Equal(t, "conn-1", job.OwnerID)
			assert.Equal(t, domain.JobStatusPending, job.Status)
			assert.False(t, job.CreatedAt.IsZero())
			assert.True(t, job.StartedAt.IsZero())
			assert.True(t, job.CompletedAt.IsZero())

			result, err := transform.Transform(tt.inputText)
			require.NoError(t, err)
			assert.Equal(t, len([]rune(result.FormattedResult)), job.TotalUnits)

			signal, ok := s.Signal(job.JobID)
			require.True(t, ok)
			assert.NoError(t, signal.Err(), "new signal must be unset")
		})
	}
}

func TestStorage_GetJob(t *testing.T) {
	s := newTestStorage()

	_, ok := s.GetJob("missing")
	assert.False(t, ok)

	created, err := s.CreateJob("abc", "conn-1")
	require.NoError(t, err)

	got, ok := s.GetJob(created.JobID)
	require.True(t, ok)
	assert.Equal(t, created, got)

	// returned value is a copy
	got.Status = domain.JobStatusFailed
	again, _ := s.GetJob(created.JobID)
	assert.Equal(t, domain.JobStatusPending, again.Status)
}

func TestStorage_UpdateJob(t *testing.T) {
	s := newTestStorage()

	err := s.UpdateJob(domain.Job{JobID: "missing"})
	require.ErrorIs(t, err, domain.ErrJobNotFound)

	job, err := s.CreateJob("abc", "conn-1")
	require.NoError(t, err)

	startedAt := time.Now()
	job.Status = domain.JobStatusRunning
	job.StartedAt = startedAt
	job.OwnerID = "someone-else"
	job.TotalUnits = 1
	require.NoError(t, s.UpdateJob(job))

	got, _ := s.GetJob(job.JobID)
	assert.Equal(t, domain.JobStatusRunning, got.Status)
	assert.Equal(t, startedAt, got.StartedAt)
	assert.Equal(t, "conn-1", got.OwnerID, "owner is never reassigned")
	assert.NotEqual(t, 1, got.TotalUnits, "total units are fixed at creation")

	// backwards transition is rejected
	got.Status = domain.JobStatusPending
	require.ErrorIs(t, s.UpdateJob(got), domain.ErrInvalidTransition)
}

func TestStorage_MutateJob_Invariants(t *testing.T) {
	s := newTestStorage()

	job, err := s.CreateJob("Hello", "conn-1")
	require.NoError(t, err)

	firstStart := time.Now()
	_, err = s.MutateJob(job.JobID, func(j *domain.Job) error {
		j.Status = domain.JobStatusRunning
		j.StartedAt = firstStart
		j.ProcessedUnits = 3
		return nil
	})
	require.NoError(t, err)

	got, err := s.MutateJob(job.JobID, func(j *domain.Job) error {
		j.StartedAt = firstStart.Add(time.Hour)
		j.ProcessedUnits = 1
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, firstStart, got.StartedAt, "startedAt is set once")
	assert.Equal(t, 3, got.ProcessedUnits, "processed units never decrease")

	got, err = s.MutateJob(job.JobID, func(j *domain.Job) error {
		j.ProcessedUnits = j.TotalUnits + 10
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, got.TotalUnits, got.ProcessedUnits, "processed units are capped at total")

	sentinel := fmt.Errorf("abort")
	_, err = s.MutateJob(job.JobID, func(j *domain.Job) error {
		j.Status = domain.JobStatusFailed
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	got, _ = s.GetJob(job.JobID)
	assert.Equal(t, domain.JobStatusRunning, got.Status, "aborted mutation writes nothing")
}

func TestStorage_CancelJob(t *testing.T) {
	tests := []struct {
		name         string
		setupStatus  domain.JobStatus
		wantOK       bool
		wantStatus   domain.JobStatus
		wantPrevious domain.JobStatus
	}{
		{
			name:         "cancel pending job",
			setupStatus:  domain.JobStatusPending,
			wantOK:       true,
			wantStatus:   domain.JobStatusCancelled,
			wantPrevious: domain.JobStatusPending,
		},
		{
			name:         "cancel running job",
			setupStatus:  domain.JobStatusRunning,
			wantOK:       true,
			wantStatus:   domain.JobStatusCancelled,
			wantPrevious: domain.JobStatusRunning,
		},
		{
			name:         "cancel completed job",
			setupStatus:  domain.JobStatusCompleted,
			wantOK:       false,
			wantStatus:   domain.JobStatusCompleted,
			wantPrevious: domain.JobStatusCompleted,
		},
		{
			name:         "cancel failed job",
			setupStatus:  domain.JobStatusFailed,
			wantOK:       false,
			wantStatus:   domain.JobStatusFailed,
			wantPrevious: domain.JobStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStorage()

			job, err := s.CreateJob("abc", "conn-1")
			require.NoError(t, err)

			if tt.setupStatus != domain.JobStatusPending {
				_, err = s.MutateJob(job.JobID, func(j *domain.Job) error {
					j.Status = domain.JobStatusRunning
					j.StartedAt = time.Now()
					return nil
				})
				require.NoError(t, err)
			}
			if tt.setupStatus.IsTerminal() {
				_, err = s.MutateJob(job.JobID, func(j *domain.Job) error {
					j.Status = tt.setupStatus
					j.CompletedAt = time.Now()
					return nil
				})
				require.NoError(t, err)
			}
			before, _ := s.GetJob(job.JobID)

			previous, ok := s.CancelJob(job.JobID)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPrevious, previous)

			after, _ := s.GetJob(job.JobID)
			assert.Equal(t, tt.wantStatus, after.Status)
			assert.False(t, after.CompletedAt.IsZero())

			signal, _ := s.Signal(job.JobID)
			if tt.wantOK {
				assert.Error(t, signal.Err(), "signal must be triggered")
			} else {
				assert.Equal(t, before, after, "rejected cancel must not alter the job")
			}
		})
	}
}

func TestStorage_CancelJob_Idempotent(t *testing.T) {
	s := newTestStorage()

	_, ok := s.CancelJob("missing")
	assert.False(t, ok)

	job, err := s.CreateJob("abc", "conn-1")
	require.NoError(t, err)

	_, ok = s.CancelJob(job.JobID)
	require.True(t, ok)
	first, _ := s.GetJob(job.JobID)

	previous, ok := s.CancelJob(job.JobID)
	assert.False(t, ok)
	assert.Equal(t, domain.JobStatusCancelled, previous)

	second, _ := s.GetJob(job.JobID)
	assert.Equal(t, first, second, "timestamps and status unchanged")

	assert.NotPanics(t, func() {
		s.Release(job.JobID)
		s.Release(job.JobID)
		s.Release("missing")
	})
}

func TestStorage_ListJobsByOwner(t *testing.T) {
	s := newTestStorage()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first, err := s.CreateJob("first", "owner-a")
	require.NoError(t, err)
	_, err = s.CreateJob("other", "owner-b")
	require.NoError(t, err)
	second, err := s.CreateJob("second", "owner-a")
	require.NoError(t, err)

	jobs := s.ListJobsByOwner("owner-a")
	require.Len(t, jobs, 2)
	assert.Equal(t, second.JobID, jobs[0].JobID)
	assert.Equal(t, first.JobID, jobs[1].JobID)

	assert.Empty(t, s.ListJobsByOwner("nobody"))
}

func TestStorage_CleanupOlderThan(t *testing.T) {
	s := newTestStorage()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now.Add(-2 * time.Hour) }

	oldCompleted, err := s.CreateJob("old completed", "conn")
	require.NoError(t, err)
	oldPending, err := s.CreateJob("old pending", "conn")
	require.NoError(t, err)
	oldRunning, err := s.CreateJob("old running", "conn")
	require.NoError(t, err)
	oldCancelled, err := s.CreateJob("old cancelled", "conn")
	require.NoError(t, err)

	s.now = func() time.Time { return now }
	recentCompleted, err := s.CreateJob("recent completed", "conn")
	require.NoError(t, err)

	for _, id := range []string{oldCompleted.JobID, oldRunning.JobID, recentCompleted.JobID} {
		_, err = s.MutateJob(id, func(j *domain.Job) error {
			j.Status = domain.JobStatusRunning
			return nil
		})
		require.NoError(t, err)
	}
	for _, id := range []string{oldCompleted.JobID, recentCompleted.JobID} {
		_, err = s.MutateJob(id, func(j *domain.Job) error {
			j.Status = domain.JobStatusCompleted
			return nil
		})
		require.NoError(t, err)
	}
	_, ok := s.CancelJob(oldCancelled.JobID)
	require.True(t, ok)

	removed := s.CleanupOlderThan(time.Hour)
	assert.Equal(t, 2, removed)

	_, ok = s.GetJob(oldCompleted.JobID)
	assert.False(t, ok)
	_, ok = s.GetJob(oldCancelled.JobID)
	assert.False(t, ok)
	_, ok = s.Signal(oldCompleted.JobID)
	assert.False(t, ok, "signal is destroyed with the job")

	for _, id := range []string{oldPending.JobID, oldRunning.JobID, recentCompleted.JobID} {
		_, ok = s.GetJob(id)
		assert.True(t, ok, "job %s must be kept", id)
	}

	assert.Equal(t, 0, s.CleanupOlderThan(time.Hour))
}

func TestStorage_PurgeOlderThan_ReturnsRemovedJobs(t *testing.T) {
	s := newTestStorage()

	created, err := s.CreateJob("abc", "conn")
	require.NoError(t, err)
	_, ok := s.CancelJob(created.JobID)
	require.True(t, ok)

	signal, _ := s.Signal(created.JobID)

	purged := s.PurgeOlderThan(-time.Minute)
	require.Len(t, purged, 1)
	assert.Equal(t, created.JobID, purged[0].JobID)
	assert.Equal(t, domain.JobStatusCancelled, purged[0].Status)
	assert.Error(t, signal.Err())
}

func TestStorage_ListDuringMutations(t *testing.T) {
	s := newTestStorage()

	job, err := s.CreateJob("The quick brown fox jumps over the lazy dog", "owner")
	require.NoError(t, err)
	_, err = s.MutateJob(job.JobID, func(j *domain.Job) error {
		j.Status = domain.JobStatusRunning
		return nil
	})
	require.NoError(t, err)

	const iterations = 2000

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_, err := s.MutateJob(job.JobID, func(j *domain.Job) error {
				if j.ProcessedUnits < j.TotalUnits {
					j.ProcessedUnits++
				}
				j.ErrorMessage = fmt.Sprintf("tick-%d", i)
				return nil
			})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			jobs := s.ListJobsByOwner("owner")
			if assert.Len(t, jobs, 1) {
				assert.Equal(t, job.JobID, jobs[0].JobID)
				assert.Equal(t, domain.JobStatusRunning, jobs[0].Status)
			}
		}
	}()
	wg.Wait()
}

func TestStorage_ConcurrentMutations(t *testing.T) {
	s := newTestStorage()

	job, err := s.CreateJob("The quick brown fox jumps over the lazy dog", "conn")
	require.NoError(t, err)
	_, err = s.MutateJob(job.JobID, func(j *domain.Job) error {
		j.Status = domain.JobStatusRunning
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	workers := 50
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := s.MutateJob(job.JobID, func(current *domain.Job) error {
					current.ProcessedUnits++
					return nil
				})
				assert.NoError(t, err)
				_ = s.ListJobsByOwner("conn")
			}
		}(i)
	}
	wg.Wait()

	got, _ := s.GetJob(job.JobID)
	want := workers * 20
	if want > got.TotalUnits {
		want = got.TotalUnits
	}
	assert.Equal(t, want, got.ProcessedUnits, "no increment may be lost below the cap")
}

func TestStorage_ConcurrentCreate(t *testing.T) {
	s := newTestStorage()
	const numJobs = 200

	var wg sync.WaitGroup
	wg.Add(numJobs)
	for i := 0; i < numJobs; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateJob(fmt.Sprintf("payload-%d", i), fmt.Sprintf("owner-%d", i%4))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, numJobs, s.Len())
	total := 0
	for i := 0; i < 4; i++ {
		total += len(s.ListJobsByOwner(fmt.Sprintf("owner-%d", i)))
	}
	assert.Equal(t, numJobs, total)
}
