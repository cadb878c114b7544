package enrichment

import (
	"fmt"

	"gotrack/domain/core"
)

// Term i is carried by entities 1..i of 100. The sample holds entities
// 1, 2, 3, 4 and 100, so term i has min(i, 4) sample hits (5 for term 100).
type fixture struct {
	terms      []core.Label
	sample     *MaterializedPopulation
	population *MaterializedPopulation
}

func term(i int) core.Label {
	return core.Label(fmt.Sprintf("GO:%07d", i))
}

func gene(i int) core.Entity {
	return core.Entity(fmt.Sprintf("Gene%02d", i))
}

func labels(ls ...core.Label) core.LabelSet {
	return core.NewSet(ls...)
}

func newFixture() fixture {
	inSample := core.NewSet(gene(1), gene(2), gene(3), gene(4), gene(100))

	all := make(map[core.Label]core.EntitySet, 100)
	sampled := make(map[core.Label]core.EntitySet, 100)
	terms := make([]core.Label, 0, 100)
	for i := 1; i <= 100; i++ {
		t := term(i)
		terms = append(terms, t)
		all[t] = core.NewSet[core.Entity]()
		sampled[t] = core.NewSet[core.Entity]()
		for g := 1; g <= i; g++ {
			all[t].Add(gene(g))
			if inSample.Has(gene(g)) {
				sampled[t].Add(gene(g))
			}
		}
	}

	return fixture{
		terms:      terms,
		sample:     NewMaterializedPopulation(sampled),
		population: NewMaterializedPopulation(all),
	}
}

// overridePopulation replaces counts for selected labels
type overridePopulation struct {
	Population
	counts map[core.Label]int
}

func (p overridePopulation) Count(label core.Label) (int, bool) {
	if n, ok := p.counts[label]; ok {
		return n, true
	}
	return p.Population.Count(label)
}

// C(100,5) and the single-term tails of the fixture's first four terms
const choose100x5 = 75287520.0

var (
	pTerm1 = 0.05
	pTerm2 = 152096.0 / choose100x5
	pTerm3 = 4656.0 / choose100x5
	pTerm4 = 96.0 / choose100x5
)
