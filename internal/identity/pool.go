package identity

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"lessonload/internal/catalog"
)

// NameFunc produces the username of the index-th identity (zero based) of a tier.
type NameFunc func(cat catalog.Category, index int) (string, error)

// DefaultName is used when Initialize is given a nil NameFunc.
func DefaultName(cat catalog.Category, index int) (string, error) {
	return fmt.Sprintf("loadtest_%s_%d", cat, index), nil
}

// Pool holds every identity of a run, in dispatch order.
type Pool struct {
	Identities []*Identity
}

// Initialize builds count identities split as evenly as possible across the
// three tiers; the remainder goes to the lower tiers first. Identities are
// interleaved so any contiguous slice of the pool mixes all tiers.
func Initialize(count int, name NameFunc) (*Pool, error) {
	if count < 0 {
		return nil, fmt.Errorf("identity count must not be negative, got %d", count)
	}
	if name == nil {
		name = DefaultName
	}

	tiers := len(catalog.Tiers)
	perTier := make([]int, tiers)
	for i := range perTier {
		perTier[i] = count / tiers
		if i < count%tiers {
			perTier[i]++
		}
	}

	p := &Pool{Identities: make([]*Identity, 0, count)}
	seen := make(map[string]struct{}, count)
	now := time.Now()

	for idx := 0; len(p.Identities) < count; idx++ {
		for t, cat := range catalog.Tiers {
			if idx >= perTier[t] {
				continue
			}
			username, err := name(cat, idx)
			if err != nil {
				return nil, fmt.Errorf("naming %s identity %d: %w", cat, idx, err)
			}
			if _, dup := seen[username]; dup {
				return nil, fmt.Errorf("duplicate username %q", username)
			}
			seen[username] = struct{}{}

			p.Identities = append(p.Identities, &Identity{
				ID:        uuid.NewString(),
				Username:  username,
				Category:  cat,
				Token:     uuid.NewString(),
				StartedAt: now,
			})
		}
	}
	return p, nil
}

// Len is the pool size.
func (p *Pool) Len() int {
	return len(p.Identities)
}

// Slice returns identities [from, to) clamped to the pool bounds.
func (p *Pool) Slice(from, to int) []*Identity {
	if from < 0 {
		from = 0
	}
	if to > len(p.Identities) {
		to = len(p.Identities)
	}
	if from >= to {
		return nil
	}
	return p.Identities[from:to]
}

// Sample draws n distinct identities at random among those that have not
// failed authentication. Successive calls are independent, so an identity
// may be drawn again by a later call. It returns nil once no identity can run.
func (p *Pool) Sample(rng *rand.Rand, n int) []*Identity {
	active := make([]*Identity, 0, len(p.Identities))
	for _, id := range p.Identities {
		if !id.AuthFailed {
			active = append(active, id)
		}
	}
	n = min(n, len(active))
	if n <= 0 {
		return nil
	}
	out := make([]*Identity, n)
	for i, j := range rng.Perm(len(active))[:n] {
		out[i] = active[j]
	}
	return out
}

// CountByCategory reports how many identities each tier holds.
func (p *Pool) CountByCategory() map[catalog.Category]int {
	out := make(map[catalog.Category]int, len(catalog.Tiers))
	for _, id := range p.Identities {
		out[id.Category]++
	}
	return out
}
