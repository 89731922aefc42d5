// Package contacts merges contact-discovery results from multiple sources
// into a single deduplicated, relevance-ranked record per business.
package contacts

import (
	"sort"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/phone"
)

// SourceRecord is the contact data one discovery source produced for a
// business. Priority is the source's rank in the cascade (lower = preferred);
// Confidence is the source's own quality estimate in [0,1].
type SourceRecord struct {
	Source     string
	Priority   int
	Confidence float64
	Emails     []string
	Phones     []string
	People     []model.ContactPerson
	PageText   string // scraped page content, mined for business-type keywords
	Err        error  // a failed source contributes no data but never fails the merge

	// Source-specific profile metadata, carried through untouched.
	SocialLinks     map[string]string
	BusinessDetails string
	SiteData        string
}

// Merger combines source records according to configured scoring weights.
type Merger struct {
	cfg Config
}

// NewMerger creates a merger with the given scoring configuration.
func NewMerger(cfg Config) *Merger {
	cfg.applyDefaults()
	return &Merger{cfg: cfg}
}

// Merge combines zero or more source records into one contact record.
// Emails are lowercased and phones canonicalized before deduplication; the
// primary email/phone is the first candidate from the highest-priority
// source that yielded one. The merge always succeeds: an errored source is
// treated as empty.
func (m *Merger) Merge(sources []SourceRecord, businessTypes []string) model.CombinedContacts {
	ordered := make([]SourceRecord, 0, len(sources))
	for _, src := range sources {
		if src.Err != nil {
			continue
		}
		ordered = append(ordered, src)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := m.score(ordered[i], businessTypes), m.score(ordered[j], businessTypes)
		if si != sj {
			return si > sj
		}
		return ordered[i].Priority < ordered[j].Priority
	})

	out := model.CombinedContacts{}

	seenEmails := map[string]bool{}
	seenPhones := map[string]bool{}
	for _, src := range ordered {
		for _, e := range src.Emails {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" || seenEmails[e] {
				continue
			}
			seenEmails[e] = true
			out.AllEmails = append(out.AllEmails, e)
		}
		for _, p := range src.Phones {
			key := phone.Canonical(p)
			if key == "" || seenPhones[key] {
				continue
			}
			seenPhones[key] = true
			out.AllPhones = append(out.AllPhones, strings.TrimSpace(p))
		}
	}

	out.ContactPeople = m.mergePeople(ordered)

	// Primary selection walks sources in priority order, not score order:
	// the higher-priority source wins whenever it yielded anything, and only
	// an empty yield falls through to the next source.
	byPriority := make([]SourceRecord, len(ordered))
	copy(byPriority, ordered)
	sort.SliceStable(byPriority, func(i, j int) bool {
		return byPriority[i].Priority < byPriority[j].Priority
	})
	for _, src := range byPriority {
		if out.PrimaryEmail == "" {
			if e := firstNonEmpty(src.Emails); e != "" {
				out.PrimaryEmail = strings.ToLower(e)
			}
		}
		if out.PrimaryPhone == "" {
			out.PrimaryPhone = firstNonEmpty(src.Phones)
		}
		if out.PrimaryEmail != "" && out.PrimaryPhone != "" {
			break
		}
	}

	return out
}

// mergePeople unions named contacts across sources by case-insensitive name,
// filling role/contact fields from later sources only where earlier ones
// left them blank.
func (m *Merger) mergePeople(ordered []SourceRecord) []model.ContactPerson {
	var people []model.ContactPerson
	index := map[string]int{}

	for _, src := range ordered {
		for _, p := range src.People {
			name := strings.TrimSpace(p.Name)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			i, ok := index[key]
			if !ok {
				index[key] = len(people)
				p.Name = name
				people = append(people, p)
				continue
			}
			if people[i].Role == "" {
				people[i].Role = p.Role
			}
			if people[i].Email == "" {
				people[i].Email = p.Email
			}
			if people[i].Phone == "" {
				people[i].Phone = p.Phone
			}
			if people[i].Contact == "" {
				people[i].Contact = p.Contact
			}
		}
	}
	return people
}

func firstNonEmpty(vals []string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
