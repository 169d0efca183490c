package consensus

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

//go:embed profiles.yaml
var defaultProfilesYAML []byte

// profileFile mirrors profiles.yaml's shape for yaml.v3 decoding.
type profileFile struct {
	Profiles []profileEntry `yaml:"profiles"`
}

type profileEntry struct {
	Name             string     `yaml:"name"`
	ContextStrategy  string     `yaml:"context_strategy"`
	AutoAcceptMode   string     `yaml:"auto_accept_mode"`
	RetryMaxAttempts int        `yaml:"retry_max_attempts"`
	Temperatures     [4]float32 `yaml:"temperatures"`
}

// ProfileRegistry holds the named presets available to set_profile /
// get_profile / list_profiles (spec.md §6.4), loaded from YAML per
// the "preset set is data" decision.
type ProfileRegistry struct {
	profiles map[string]domain.ConsensusProfile
	order    []string
	active   string
}

// LoadProfiles parses profiles.yaml content into a ProfileRegistry,
// forcing a security-hardened Manual-mode profile to always be present
// (spec.md §9 Open Question #2: "always-appended security-hardened
// profile forced to AutoAcceptMode=Manual").
func LoadProfiles(yamlContent []byte) (*ProfileRegistry, error) {
	var pf profileFile
	if err := yaml.Unmarshal(yamlContent, &pf); err != nil {
		return nil, fmt.Errorf("parsing profiles: %w", err)
	}
	if len(pf.Profiles) == 0 {
		return nil, fmt.Errorf("profiles file defines no profiles")
	}

	reg := &ProfileRegistry{profiles: make(map[string]domain.ConsensusProfile, len(pf.Profiles))}
	for _, e := range pf.Profiles {
		p := toConsensusProfile(e)
		reg.profiles[p.Name] = p
		reg.order = append(reg.order, p.Name)
	}

	if hardened, ok := reg.profiles["security-hardened"]; ok {
		hardened.AutoAcceptMode = domain.ModeManual
		reg.profiles["security-hardened"] = hardened
	} else {
		hardened := defaultSecurityHardenedProfile()
		reg.profiles[hardened.Name] = hardened
		reg.order = append(reg.order, hardened.Name)
	}

	reg.active = reg.order[0]
	return reg, nil
}

// DefaultProfiles loads the engine's built-in profiles.yaml.
func DefaultProfiles() (*ProfileRegistry, error) {
	return LoadProfiles(defaultProfilesYAML)
}

func defaultSecurityHardenedProfile() domain.ConsensusProfile {
	return domain.ConsensusProfile{
		Name:            "security-hardened",
		ContextStrategy: domain.ContextBoth,
		AutoAcceptMode:  domain.ModeManual,
		Retry:           domain.RetryPolicy{MaxAttempts: 3},
		Temperatures: map[domain.Stage]float32{
			domain.StageGenerator: 0.2, domain.StageRefiner: 0.1,
			domain.StageValidator: 0.0, domain.StageCurator: 0.1,
		},
	}
}

func toConsensusProfile(e profileEntry) domain.ConsensusProfile {
	attempts := e.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 2
	}
	return domain.ConsensusProfile{
		Name:            e.Name,
		ContextStrategy: domain.ContextStrategy(e.ContextStrategy),
		AutoAcceptMode:  domain.AutoAcceptMode(e.AutoAcceptMode),
		Retry:           domain.RetryPolicy{MaxAttempts: attempts},
		Temperatures: map[domain.Stage]float32{
			domain.StageGenerator: e.Temperatures[0],
			domain.StageRefiner:   e.Temperatures[1],
			domain.StageValidator: e.Temperatures[2],
			domain.StageCurator:   e.Temperatures[3],
		},
	}
}

// SetActive implements set_profile(name): returns an error if the name
// is unknown, leaving the prior active profile untouched.
func (r *ProfileRegistry) SetActive(name string) error {
	if _, ok := r.profiles[name]; !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	r.active = name
	return nil
}

// Active implements get_profile().
func (r *ProfileRegistry) Active() domain.ConsensusProfile {
	return r.profiles[r.active]
}

// List implements list_profiles(), in the YAML file's declared order.
func (r *ProfileRegistry) List() []domain.ConsensusProfile {
	out := make([]domain.ConsensusProfile, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.profiles[name])
	}
	return out
}
