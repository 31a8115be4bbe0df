package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// RegulatoryProfile is a jurisdiction-specific assessment profile. It names
// the standards a deployment must evaluate and the engine version the profile
// was authored against.
type RegulatoryProfile struct {
	Name             string          `yaml:"name" json:"name"`
	Code             string          `yaml:"code" json:"code"`
	Standards        []string        `yaml:"standards" json:"standards"`
	MinEngineVersion string          `yaml:"min_engine_version,omitempty" json:"min_engine_version,omitempty"`
	Assessment       AssessmentTuning `yaml:"assessment" json:"assessment"`
	Retention        RetentionConfig `yaml:"retention" json:"retention"`
}

// AssessmentTuning holds per-profile evaluation knobs.
type AssessmentTuning struct {
	RequireTraceability bool `yaml:"require_traceability" json:"require_traceability"`
	ReportWorkers       int  `yaml:"report_workers,omitempty" json:"report_workers,omitempty"`
}

// RetentionConfig defines how long generated reports are kept.
type RetentionConfig struct {
	ReportDays   int `yaml:"report_days" json:"report_days"`
	DocumentDays int `yaml:"document_days,omitempty" json:"document_days,omitempty"`
}

// LoadProfile loads a regulatory profile YAML by jurisdiction code. It reads
// profile_<code>.yaml from the profiles directory.
func LoadProfile(profilesDir, code string) (*RegulatoryProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", code, err)
	}

	var profile RegulatoryProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", code, err)
	}

	if profile.Code == "" {
		profile.Code = code
	}
	return &profile, nil
}

// LoadAllProfiles loads every profile_*.yaml from the profiles directory.
func LoadAllProfiles(profilesDir string) (map[string]*RegulatoryProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*RegulatoryProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile RegulatoryProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if profile.Code == "" {
			// profile_us.yaml -> us
			base := filepath.Base(path)
			profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profiles[profile.Code] = &profile
	}
	return profiles, nil
}

// CheckEngineVersion reports whether engineVersion satisfies the profile's
// minimum. Profiles without a minimum accept any version.
func (p *RegulatoryProfile) CheckEngineVersion(engineVersion string) error {
	if p.MinEngineVersion == "" {
		return nil
	}
	min, err := semver.NewVersion(p.MinEngineVersion)
	if err != nil {
		return fmt.Errorf("profile %q min_engine_version: %w", p.Code, err)
	}
	current, err := semver.NewVersion(engineVersion)
	if err != nil {
		return fmt.Errorf("engine version %q: %w", engineVersion, err)
	}
	if current.LessThan(min) {
		return fmt.Errorf("profile %q requires engine >= %s, running %s", p.Code, min, current)
	}
	return nil
}

// CoversStandard reports whether the profile names the standard.
func (p *RegulatoryProfile) CoversStandard(standard string) bool {
	for _, s := range p.Standards {
		if strings.EqualFold(s, standard) {
			return true
		}
	}
	return false
}
