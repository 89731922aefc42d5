package contacts

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Config holds the relevance-scoring weights. The score is advisory only:
// it orders merged emails/phones/people and never leaves this package.
type Config struct {
	// DirectContactWeight rewards sources that found a named person with a
	// direct email or phone.
	DirectContactWeight float64 `yaml:"direct_contact_weight"`
	// KeywordWeight rewards business-type keyword hits in scraped page text.
	KeywordWeight float64 `yaml:"keyword_weight"`
	// ConfidenceWeight scales the source's own confidence estimate.
	ConfidenceWeight float64 `yaml:"confidence_weight"`
}

func (c *Config) applyDefaults() {
	if c.DirectContactWeight <= 0 {
		c.DirectContactWeight = 0.4
	}
	if c.KeywordWeight <= 0 {
		c.KeywordWeight = 0.2
	}
	if c.ConfidenceWeight <= 0 {
		c.ConfidenceWeight = 0.4
	}
}

// LoadConfig reads scoring weights from a YAML file. Missing file is not an
// error; defaults apply.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return cfg, eris.Wrapf(err, "contacts: read config %s", path)
	}

	var wrapper struct {
		Scoring Config `yaml:"scoring"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return cfg, eris.Wrap(err, "contacts: parse config")
	}
	cfg = wrapper.Scoring
	cfg.applyDefaults()
	return cfg, nil
}

// score computes the advisory relevance score (0-1) for one source record.
func (m *Merger) score(src SourceRecord, businessTypes []string) float64 {
	total := m.cfg.DirectContactWeight + m.cfg.KeywordWeight + m.cfg.ConfidenceWeight

	var s float64
	if hasDirectContact(src.People) {
		s += m.cfg.DirectContactWeight
	}
	s += m.cfg.KeywordWeight * keywordHitRatio(src.PageText, businessTypes)

	conf := src.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	s += m.cfg.ConfidenceWeight * conf

	return s / total
}

func hasDirectContact(people []model.ContactPerson) bool {
	for _, p := range people {
		if p.Name != "" && (p.Email != "" || p.Phone != "") {
			return true
		}
	}
	return false
}

// keywordHitRatio returns the fraction of business-type keywords present in
// the page text.
func keywordHitRatio(pageText string, businessTypes []string) float64 {
	if pageText == "" || len(businessTypes) == 0 {
		return 0
	}
	text := strings.ToLower(pageText)
	hits := 0
	for _, bt := range businessTypes {
		kw := strings.ToLower(strings.ReplaceAll(bt, "_", " "))
		if kw != "" && strings.Contains(text, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(businessTypes))
}
