package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how many addresses of a replay have been translated.
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	Failed     uint64    `json:"failed"`
	InProgress uint64    `json:"in_progress"`
}

// StartTranslation marks one address as being translated.
func (b *ProgressBar) StartTranslation() {
	b.Lock()
	defer b.Unlock()

	b.InProgress++
}

// FinishTranslation moves one address from in progress to finished. Failed
// addresses count as finished too.
func (b *ProgressBar) FinishTranslation(failed bool) {
	b.Lock()
	defer b.Unlock()

	b.InProgress--
	b.Finished++

	if failed {
		b.Failed++
	}
}

// Remaining returns the number of addresses not yet finished.
func (b *ProgressBar) Remaining() uint64 {
	b.Lock()
	defer b.Unlock()

	return b.Total - b.Finished
}

// progressBarStatus is a copy of the counters of a ProgressBar taken under its
// lock.
type progressBarStatus struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	Failed     uint64    `json:"failed"`
	InProgress uint64    `json:"in_progress"`
}

func (b *ProgressBar) status() progressBarStatus {
	b.Lock()
	defer b.Unlock()

	return progressBarStatus{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		Failed:     b.Failed,
		InProgress: b.InProgress,
	}
}
