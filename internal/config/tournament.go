package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dom/calcutta-auction/internal/domain"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

// TournamentFile is the on-disk description of a tournament and its field.
type TournamentFile struct {
	ID          string              `yaml:"id"`
	Name        string              `yaml:"name"`
	Structure   string              `yaml:"structure"`
	Regions     []string            `yaml:"regions"`
	Rounds      []string            `yaml:"rounds"`
	PayoutRules []domain.PayoutRule `yaml:"payout_rules"`
	Teams       []TeamEntry         `yaml:"teams"`
}

type TeamEntry struct {
	ID     string         `yaml:"id"`
	Name   string         `yaml:"name"`
	Seed   int            `yaml:"seed"`
	Region string         `yaml:"region"`
	Odds   map[string]int `yaml:"odds"`
}

// LoadTournament reads a YAML tournament file, expands ${VAR} references,
// applies defaults and validates it.
func LoadTournament(path string) (*TournamentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tournament file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var tf TournamentFile
	if err := yaml.Unmarshal([]byte(expanded), &tf); err != nil {
		return nil, fmt.Errorf("parse tournament yaml: %w", err)
	}

	tf.applyDefaults()
	if err := tf.Validate(); err != nil {
		return nil, fmt.Errorf("validate tournament: %w", err)
	}
	return &tf, nil
}

func (tf *TournamentFile) applyDefaults() {
	if tf.Structure == "" {
		tf.Structure = string(domain.StructureBracket)
	}
	if tf.Name == "" {
		tf.Name = tf.ID
	}
	for i := range tf.Teams {
		if tf.Teams[i].ID == "" {
			tf.Teams[i].ID = fmt.Sprintf("%s-%d", tf.ID, i+1)
		}
	}
}

// Validate checks that the file describes a usable tournament.
func (tf *TournamentFile) Validate() error {
	if tf.ID == "" {
		return errors.New("id is required")
	}
	if !domain.DevigStructure(tf.Structure).IsValid() {
		return fmt.Errorf("unknown structure %q", tf.Structure)
	}
	if len(tf.Rounds) == 0 {
		return errors.New("rounds must not be empty")
	}
	if len(tf.PayoutRules) > 0 {
		if err := domain.PayoutRules(tf.PayoutRules).Validate(); err != nil {
			return fmt.Errorf("payout_rules: %w", err)
		}
	}
	if len(tf.Teams) == 0 {
		return errors.New("teams must not be empty")
	}

	bracket := domain.DevigStructure(tf.Structure) == domain.StructureBracket
	seen := make(map[string]bool, len(tf.Teams))
	slots := make(map[string]string, len(tf.Teams))
	for i, team := range tf.Teams {
		if seen[team.ID] {
			return fmt.Errorf("teams[%d]: duplicate id %q", i, team.ID)
		}
		seen[team.ID] = true
		if team.Name == "" {
			return fmt.Errorf("teams[%d].name is required", i)
		}
		if team.Seed < 1 {
			return fmt.Errorf("teams[%d].seed must be >= 1, got %d", i, team.Seed)
		}
		// Two teams on one bracket line would share a slot.
		if bracket {
			slot := fmt.Sprintf("%s/%d", team.Region, team.Seed)
			if other, ok := slots[slot]; ok {
				return fmt.Errorf("teams[%d]: seed %d in region %q is already taken by %q", i, team.Seed, team.Region, other)
			}
			slots[slot] = team.ID
		}
	}
	return nil
}

// Domain converts the file into the records the store keeps.
func (tf *TournamentFile) Domain() (*domain.Tournament, []*domain.BaseTeam) {
	tournament := &domain.Tournament{
		ID:          tf.ID,
		Name:        tf.Name,
		Structure:   domain.DevigStructure(tf.Structure),
		Regions:     datatypes.JSONSlice[string](tf.Regions),
		Rounds:      datatypes.JSONSlice[string](tf.Rounds),
		PayoutRules: datatypes.JSONSlice[domain.PayoutRule](tf.PayoutRules),
	}

	teams := make([]*domain.BaseTeam, len(tf.Teams))
	for i, entry := range tf.Teams {
		odds := entry.Odds
		if odds == nil {
			odds = map[string]int{}
		}
		teams[i] = &domain.BaseTeam{
			ID:           entry.ID,
			TournamentID: tf.ID,
			Name:         entry.Name,
			Seed:         entry.Seed,
			Region:       entry.Region,
			Odds:         datatypes.NewJSONType(odds),
		}
	}
	return tournament, teams
}
