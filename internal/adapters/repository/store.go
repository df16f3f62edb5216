// Package repository stores a subject's samples, attempts and interactions
// in capacity-bounded buckets.
package repository

import (
	"context"
	"time"

	"github.com/okian/aura/internal/domain/model"
)

// Kind names one of a subject's append-only streams.
type Kind string

const (
	KindSamples      Kind = "samples"
	KindAttempts     Kind = "attempts"
	KindInteractions Kind = "interactions"
)

// BucketMeta describes the bucket that received the last item of an append.
// Total is the number of items stored in the stream after the append.
type BucketMeta struct {
	BucketRef    string    `json:"bucketRef"`
	BucketNumber int       `json:"bucketNumber"`
	Count        int       `json:"count"`
	IsFull       bool      `json:"isFull"`
	FirstTms     *float64  `json:"firstTms"`
	LastTms      *float64  `json:"lastTms"`
	CreatedAt    time.Time `json:"createdAt"`
	Total        int       `json:"total"`
}

// Store persists telemetry per subject. Appends never reorder or drop
// items; queries return copies ordered by round then time, keeping insertion
// order for ties. A round of 0 selects every round.
type Store interface {
	AppendSamples(ctx context.Context, subjectID string, samples []model.PointerSample) (BucketMeta, error)
	Samples(ctx context.Context, subjectID string, round int) ([]model.PointerSample, error)

	AppendAttempts(ctx context.Context, subjectID string, attempts []model.Attempt) (BucketMeta, error)
	Attempts(ctx context.Context, subjectID string, round int) ([]model.Attempt, error)

	AppendInteractions(ctx context.Context, subjectID string, xs []model.GlobalInteraction) (BucketMeta, error)
	Interactions(ctx context.Context, subjectID string) ([]model.GlobalInteraction, error)

	// PurgeBefore deletes every bucket created before cutoff and returns
	// how many were removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Subjects returns the number of subjects with stored data.
	Subjects(ctx context.Context) (int, error)

	Close() error
}
