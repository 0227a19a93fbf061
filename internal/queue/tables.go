package queue

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Trade is one entry in the tiered trade list.
type Trade struct {
	Name     string   `yaml:"name"`
	Tier     int      `yaml:"tier"` // 1-3, lower is higher priority
	Boost    int      `yaml:"boost"`
	Synonyms []string `yaml:"synonyms,omitempty"`
}

// City is one entry in the target city list.
type City struct {
	Name  string `yaml:"name"`
	Boost int    `yaml:"boost"`
}

// Tables holds the trade and city tables that queue generation enumerates.
type Tables struct {
	Trades []Trade `yaml:"trades"`
	Cities []City  `yaml:"cities"`
}

// defaultTables is the compiled-in UK tradesperson table set, used when no
// tables file is configured.
var defaultTables = Tables{
	Trades: []Trade{
		{Name: "plumber", Tier: 1, Boost: 5, Synonyms: []string{"plumbing services", "emergency plumber"}},
		{Name: "electrician", Tier: 1, Boost: 5, Synonyms: []string{"electrical contractor", "emergency electrician"}},
		{Name: "heating engineer", Tier: 1, Boost: 4, Synonyms: []string{"boiler engineer", "gas engineer"}},
		{Name: "roofer", Tier: 2, Boost: 3, Synonyms: []string{"roofing contractor", "roof repairs"}},
		{Name: "builder", Tier: 2, Boost: 2, Synonyms: []string{"building contractor", "general builder"}},
		{Name: "plasterer", Tier: 2, Boost: 2, Synonyms: []string{"plastering services"}},
		{Name: "carpenter", Tier: 3, Boost: 1, Synonyms: []string{"joiner", "carpentry services"}},
		{Name: "painter decorator", Tier: 3, Boost: 1, Synonyms: []string{"painting and decorating"}},
		{Name: "landscaper", Tier: 3, Boost: 0, Synonyms: []string{"landscape gardener", "garden services"}},
		{Name: "locksmith", Tier: 3, Boost: 0, Synonyms: []string{"emergency locksmith"}},
	},
	Cities: []City{
		{Name: "Leeds", Boost: 5},
		{Name: "Manchester", Boost: 5},
		{Name: "Birmingham", Boost: 4},
		{Name: "Sheffield", Boost: 4},
		{Name: "Bradford", Boost: 3},
		{Name: "Liverpool", Boost: 3},
		{Name: "Nottingham", Boost: 2},
		{Name: "Leicester", Boost: 2},
		{Name: "Newcastle", Boost: 1},
		{Name: "Bristol", Boost: 1},
		{Name: "Wakefield", Boost: 0},
		{Name: "York", Boost: 0},
	},
}

// LoadTables reads the trade/city tables from a YAML file, falling back to
// the compiled-in defaults when path is empty.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		t := defaultTables
		return &t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "queue: read tables %s", path)
	}

	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "queue: parse tables")
	}
	if len(t.Trades) == 0 || len(t.Cities) == 0 {
		return nil, eris.New("queue: tables file must define trades and cities")
	}
	return &t, nil
}

// TradeByName returns the trade entry for a name, or nil.
func (t *Tables) TradeByName(name string) *Trade {
	for i := range t.Trades {
		if t.Trades[i].Name == name {
			return &t.Trades[i]
		}
	}
	return nil
}

// CityBoost returns the boost for a city, zero when unknown.
func (t *Tables) CityBoost(name string) int {
	for _, c := range t.Cities {
		if c.Name == name {
			return c.Boost
		}
	}
	return 0
}
