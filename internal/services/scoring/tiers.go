package scoring

import (
    "fmt"
    "strings"
)

// Tier maps every score >= MinScore (and below the previous tier) to Label.
type Tier struct {
    MinScore int    `yaml:"min" json:"min"`
    Label    string `yaml:"label" json:"label"`
}

// TierTable is evaluated top-down; the first tier whose MinScore the score
// reaches wins.
type TierTable []Tier

var (
    ThreeTier = TierTable{
        {MinScore: 80, Label: "Secure"},
        {MinScore: 50, Label: "Moderate"},
        {MinScore: 0, Label: "Critical"},
    }
    FiveTier = TierTable{
        {MinScore: 90, Label: "Secure"},
        {MinScore: 75, Label: "Low"},
        {MinScore: 50, Label: "Medium"},
        {MinScore: 25, Label: "High"},
        {MinScore: 0, Label: "Critical"},
    }
)

// TableByName resolves a named risk profile.
func TableByName(name string) (TierTable, error) {
    switch strings.ToLower(strings.TrimSpace(name)) {
    case "", "three-tier", "3":
        return ThreeTier, nil
    case "five-tier", "5":
        return FiveTier, nil
    default:
        return nil, fmt.Errorf("unknown risk profile %q", name)
    }
}

// Validate requires a non-empty, strictly descending table that bottoms out
// at zero so every score in [0,100] has a label.
func (t TierTable) Validate() error {
    if len(t) == 0 {
        return fmt.Errorf("tier table is empty")
    }
    for i, tier := range t {
        if tier.Label == "" {
            return fmt.Errorf("tier %d has no label", i)
        }
        if tier.MinScore < 0 || tier.MinScore > perfectScore {
            return fmt.Errorf("tier %q min %d out of range", tier.Label, tier.MinScore)
        }
        if i > 0 && tier.MinScore >= t[i-1].MinScore {
            return fmt.Errorf("tier %q min %d not below previous tier %q", tier.Label, tier.MinScore, t[i-1].Label)
        }
    }
    if last := t[len(t)-1]; last.MinScore != 0 {
        return fmt.Errorf("last tier %q must start at 0, got %d", last.Label, last.MinScore)
    }
    return nil
}

// Lookup returns the label for score. Scores below every tier fall into the
// last one.
func (t TierTable) Lookup(score int) string {
    if len(t) == 0 {
        return ""
    }
    for _, tier := range t {
        if score >= tier.MinScore {
            return tier.Label
        }
    }
    return t[len(t)-1].Label
}
