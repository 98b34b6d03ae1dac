package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"
)

type poolEntry struct {
	pos    int
	amount decimal.Decimal
}

// amountPool is a consume-without-replacement multiset of amounts keyed by whole cents.
// take returns the lowest-position entry within tolerance, which is exactly what a linear
// first-match scan over the remaining entries would return.
type amountPool struct {
	tolerance decimal.Decimal
	buckets   map[int64][]poolEntry
	size      int
}

var hundred = decimal.NewFromInt(100)

func newAmountPool(tolerance decimal.Decimal) *amountPool {
	return &amountPool{tolerance: tolerance, buckets: make(map[int64][]poolEntry)}
}

func bucketOf(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Floor().IntPart()
}

// add must be called with increasing pos.
func (p *amountPool) add(pos int, amount decimal.Decimal) {
	key := bucketOf(amount)
	p.buckets[key] = append(p.buckets[key], poolEntry{pos: pos, amount: amount})
	p.size++
}

func (p *amountPool) len() int { return p.size }

// take removes and returns the position of the first entry within tolerance of amount.
func (p *amountPool) take(amount decimal.Decimal) (int, bool) {
	if p.size == 0 {
		return 0, false
	}
	lo := bucketOf(amount.Sub(p.tolerance))
	hi := bucketOf(amount.Add(p.tolerance))

	bestKey, bestIdx, bestPos := int64(0), -1, 0
	consider := func(key int64, entries []poolEntry) {
		for i, e := range entries {
			if bestIdx >= 0 && e.pos >= bestPos {
				return
			}
			if e.amount.Sub(amount).Abs().LessThanOrEqual(p.tolerance) {
				bestKey, bestIdx, bestPos = key, i, e.pos
				return
			}
		}
	}

	if hi-lo+1 > int64(len(p.buckets)) {
		keys := make([]int64, 0, len(p.buckets))
		for key := range p.buckets {
			if key >= lo && key <= hi {
				keys = append(keys, key)
			}
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, key := range keys {
			consider(key, p.buckets[key])
		}
	} else {
		for key := lo; key <= hi; key++ {
			if entries, ok := p.buckets[key]; ok {
				consider(key, entries)
			}
		}
	}

	if bestIdx < 0 {
		return 0, false
	}
	entries := p.buckets[bestKey]
	entries = append(entries[:bestIdx], entries[bestIdx+1:]...)
	if len(entries) == 0 {
		delete(p.buckets, bestKey)
	} else {
		p.buckets[bestKey] = entries
	}
	p.size--
	return bestPos, true
}
