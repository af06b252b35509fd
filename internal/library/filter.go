package library

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jamo/photoframe/internal/config"
	"github.com/jamo/photoframe/internal/models"
)

// Filter selects photos by people, place and keyword.
type Filter struct {
	People        []string
	PeopleLogic   string
	RequirePeople bool
	MinPeople     int

	Places      []string
	PlacesLogic string

	Keywords []string

	OverallLogic string
}

// NewFilter builds a filter from the configured criteria.
func NewFilter(cfg *config.Config) Filter {
	return Filter{
		People:        cleanList(cfg.FilterPeopleNames),
		PeopleLogic:   cfg.PeopleFilterLogic,
		RequirePeople: cfg.FilterByPeople,
		MinPeople:     cfg.MinPeopleCount,
		Places:        cleanList(cfg.FilterByPlaces),
		PlacesLogic:   cfg.PlacesFilterLogic,
		Keywords:      cleanList(cfg.FilterByKeywords),
		OverallLogic:  cfg.OverallFilterLogic,
	}
}

// Active reports whether any criterion is set.
func (f Filter) Active() bool {
	return f.peopleActive() || len(f.Places) > 0 || len(f.Keywords) > 0
}

func (f Filter) peopleActive() bool {
	return f.RequirePeople || len(f.People) > 0
}

// Match applies the active criteria, combined with the overall logic.
// An inactive filter matches everything.
func (f Filter) Match(p models.Photo) bool {
	var results []bool
	if f.peopleActive() {
		results = append(results, f.matchPeople(p))
	}
	if len(f.Places) > 0 {
		results = append(results, f.matchPlaces(p))
	}
	if len(f.Keywords) > 0 {
		results = append(results, f.matchKeywords(p))
	}
	if len(results) == 0 {
		return true
	}
	return combine(f.OverallLogic, results)
}

func (f Filter) matchPeople(p models.Photo) bool {
	if len(p.Persons) == 0 {
		return false
	}
	if f.RequirePeople && len(p.Persons) < f.MinPeople {
		return false
	}
	if len(f.People) == 0 {
		return true
	}

	names := make([]string, 0, len(p.Persons))
	for _, person := range p.Persons {
		if name := fold(person); name != "" {
			names = append(names, name)
		}
	}
	results := make([]bool, len(f.People))
	for i, want := range f.People {
		want = fold(want)
		for _, name := range names {
			if strings.Contains(name, want) {
				results[i] = true
				break
			}
		}
	}
	return combine(f.PeopleLogic, results)
}

func (f Filter) matchPlaces(p models.Photo) bool {
	place := fold(p.Place)
	if place == "" {
		return false
	}
	results := make([]bool, len(f.Places))
	for i, want := range f.Places {
		results[i] = strings.Contains(place, fold(want))
	}
	return combine(f.PlacesLogic, results)
}

func (f Filter) matchKeywords(p models.Photo) bool {
	for _, have := range p.Keywords {
		have = fold(have)
		for _, want := range f.Keywords {
			if have == fold(want) {
				return true
			}
		}
	}
	return false
}

func combine(logic string, results []bool) bool {
	if strings.EqualFold(logic, "AND") {
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	}
	for _, r := range results {
		if r {
			return true
		}
	}
	return false
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
