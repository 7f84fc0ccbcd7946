package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
)

// MemoryIndex serves searches from an immutable snapshot published through an
// atomic pointer. Readers never lock; writers build a new snapshot and swap it.
type MemoryIndex struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex
}

type phoneEntry struct {
	reversed string
	familyID id.FamilyID
}

type termEntry struct {
	term     string
	personID id.PersonID
}

type snapshot struct {
	families map[id.FamilyID]models.FamilyResult
	// person -> owning family and every token that may prefix-match
	people map[id.PersonID]personTokens
	phones []phoneEntry // sorted by reversed
	terms  []termEntry  // sorted by term
}

type personTokens struct {
	familyID id.FamilyID
	tokens   []string
}

func NewMemoryIndex() *MemoryIndex {
	idx := &MemoryIndex{}
	idx.current.Store(buildSnapshot(nil))
	return idx
}

// Load replaces the whole index.
func (idx *MemoryIndex) Load(families []models.FamilyResult) {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	m := make(map[id.FamilyID]models.FamilyResult, len(families))
	for _, f := range families {
		m[f.Family.ID] = f
	}
	idx.current.Store(buildSnapshot(m))
}

// Upsert adds or replaces one family, rebuilding a copy of the index.
func (idx *MemoryIndex) Upsert(family models.FamilyResult) {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	old := idx.current.Load()
	m := make(map[id.FamilyID]models.FamilyResult, len(old.families)+1)
	for k, v := range old.families {
		m[k] = v
	}
	m[family.Family.ID] = family
	idx.current.Store(buildSnapshot(m))
}

// Size returns the number of indexed families.
func (idx *MemoryIndex) Size() int {
	return len(idx.current.Load().families)
}

func buildSnapshot(families map[id.FamilyID]models.FamilyResult) *snapshot {
	snap := &snapshot{
		families: make(map[id.FamilyID]models.FamilyResult, len(families)),
		people:   make(map[id.PersonID]personTokens),
	}
	for familyID, f := range families {
		snap.families[familyID] = f
		for _, p := range f.Members {
			for _, number := range p.Phones {
				if digits := models.NormalizePhone(number); digits != "" {
					snap.phones = append(snap.phones, phoneEntry{reversed: models.ReverseDigits(digits), familyID: familyID})
				}
			}
			tokens := personTokenList(p)
			snap.people[p.ID] = personTokens{familyID: familyID, tokens: tokens}
			for _, t := range tokens {
				snap.terms = append(snap.terms, termEntry{term: t, personID: p.ID})
			}
		}
	}
	sort.Slice(snap.phones, func(i, j int) bool { return snap.phones[i].reversed < snap.phones[j].reversed })
	sort.Slice(snap.terms, func(i, j int) bool { return snap.terms[i].term < snap.terms[j].term })
	return snap
}

func personTokenList(p models.Person) []string {
	var tokens []string
	for _, field := range []string{p.FirstName, p.LastName, p.NickName} {
		tokens = append(tokens, strings.Fields(models.NormalizeName(field))...)
	}
	if email := strings.ToLower(strings.TrimSpace(p.Email)); email != "" {
		tokens = append(tokens, email)
	}
	return tokens
}

// SearchPhone finds families with a number ending in digits.
func (idx *MemoryIndex) SearchPhone(_ context.Context, digits string, limit int) ([]models.FamilyResult, error) {
	snap := idx.current.Load()
	prefix := models.ReverseDigits(digits)
	start := sort.Search(len(snap.phones), func(i int) bool { return snap.phones[i].reversed >= prefix })

	matched := make(map[id.FamilyID]bool)
	for i := start; i < len(snap.phones) && strings.HasPrefix(snap.phones[i].reversed, prefix); i++ {
		matched[snap.phones[i].familyID] = true
	}
	return snap.collect(matched, limit), nil
}

// SearchName finds families with a member for whom every term prefixes one
// of their name tokens.
func (idx *MemoryIndex) SearchName(_ context.Context, terms []string, limit int) ([]models.FamilyResult, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	snap := idx.current.Load()
	first := terms[0]
	start := sort.Search(len(snap.terms), func(i int) bool { return snap.terms[i].term >= first })

	matched := make(map[id.FamilyID]bool)
	checked := make(map[id.PersonID]bool)
	for i := start; i < len(snap.terms) && strings.HasPrefix(snap.terms[i].term, first); i++ {
		personID := snap.terms[i].personID
		if checked[personID] {
			continue
		}
		checked[personID] = true
		person := snap.people[personID]
		if matchesAll(person.tokens, terms[1:]) {
			matched[person.familyID] = true
		}
	}
	return snap.collect(matched, limit), nil
}

func matchesAll(tokens, terms []string) bool {
	for _, term := range terms {
		found := false
		for _, t := range tokens {
			if strings.HasPrefix(t, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// collect orders matched families by name and copies the first limit.
func (snap *snapshot) collect(matched map[id.FamilyID]bool, limit int) []models.FamilyResult {
	if len(matched) == 0 {
		return nil
	}
	out := make([]models.FamilyResult, 0, len(matched))
	for familyID := range matched {
		out = append(out, snap.families[familyID])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family.Name != out[j].Family.Name {
			return out[i].Family.Name < out[j].Family.Name
		}
		return out[i].Family.ID.String() < out[j].Family.ID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Members = append([]models.Person(nil), out[i].Members...)
	}
	return out
}
