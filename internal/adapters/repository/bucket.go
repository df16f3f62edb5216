package repository

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/aura/internal/domain/model"
)

// bucket is one capacity-bounded partition of a stream.
type bucket[T any] struct {
	meta  BucketMeta
	items []T
}

func newBucket[T any](number int, createdAt time.Time) *bucket[T] {
	return &bucket[T]{meta: BucketMeta{
		BucketRef:    uuid.NewString(),
		BucketNumber: number,
		CreatedAt:    createdAt,
	}}
}

// add appends item, or returns ErrBucketFull when the bucket is at capacity.
func (b *bucket[T]) add(item T, tms float64, capacity int) error {
	if len(b.items) >= capacity {
		b.meta.IsFull = true
		return ErrBucketFull
	}
	b.items = append(b.items, item)
	b.meta.Count = len(b.items)
	b.meta.IsFull = b.meta.Count >= capacity
	if b.meta.FirstTms == nil || tms < *b.meta.FirstTms {
		first := tms
		b.meta.FirstTms = &first
	}
	if b.meta.LastTms == nil || tms > *b.meta.LastTms {
		last := tms
		b.meta.LastTms = &last
	}
	return nil
}

// spill adds items to cur, opening new buckets as each one fills. It
// returns every bucket it wrote to, in order; cur is first when it took at
// least one item.
func spill[T any](cur *bucket[T], items []T, tms func(T) float64, capacity int, open func(number int) *bucket[T]) []*bucket[T] {
	var touched []*bucket[T]
	mark := func(b *bucket[T]) {
		if len(touched) == 0 || touched[len(touched)-1] != b {
			touched = append(touched, b)
		}
	}
	for _, item := range items {
		if cur == nil {
			cur = open(1)
		}
		err := cur.add(item, tms(item), capacity)
		if errors.Is(err, ErrBucketFull) {
			cur = open(cur.meta.BucketNumber + 1)
			_ = cur.add(item, tms(item), capacity)
		}
		mark(cur)
	}
	return touched
}

func sampleTms(s model.PointerSample) float64 { return s.Tms }

func attemptTms(a model.Attempt) float64 { return a.SpawnTms }

func interactionTms(g model.GlobalInteraction) float64 { return float64(g.Timestamp) }

// orderSamples filters by round (0 keeps all) and sorts by round then tms.
func orderSamples(in []model.PointerSample, round int) []model.PointerSample {
	out := make([]model.PointerSample, 0, len(in))
	for _, s := range in {
		if round == 0 || s.Round == round {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].Tms < out[j].Tms
	})
	return out
}

// orderAttempts filters by round (0 keeps all) and sorts by round then
// spawn time.
func orderAttempts(in []model.Attempt, round int) []model.Attempt {
	out := make([]model.Attempt, 0, len(in))
	for _, a := range in {
		if round == 0 || a.Round == round {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].SpawnTms < out[j].SpawnTms
	})
	return out
}

func orderInteractions(in []model.GlobalInteraction) []model.GlobalInteraction {
	out := make([]model.GlobalInteraction, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
