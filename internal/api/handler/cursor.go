package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
)

// JobCursor marks the last job of a page
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

func DecodeJobCursor(cursorStr string) (*JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 || decodedParts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	_, err = fmt.Sscanf(decodedParts[0], "%d", &createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &JobCursor{
		CreatedAt: time.Unix(0, createdAt),
		JobID:     decodedParts[1],
	}, nil
}

func EncodeJobCursor(cursor *JobCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.JobID)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}

// pageAfter returns the jobs that follow cursor in a newest-first list. If
// the cursor's job is gone, paging resumes at the first older job.
func pageAfter(jobs []domain.JobView, cursor *JobCursor) []domain.JobView {
	if cursor == nil {
		return jobs
	}

	for i, job := range jobs {
		if job.JobID == cursor.JobID {
			return jobs[i+1:]
		}
	}

	for i, job := range jobs {
		if job.CreatedAt.Before(cursor.CreatedAt) {
			return jobs[i:]
		}
	}
	return nil
}
