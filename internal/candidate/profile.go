package candidate

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxSummarySkills   = 10
	maxSummaryJobs     = 3
	maxSummaryProjects = 3
)

// Skill is a single named skill with a free-form category. Only skills in
// the "technical" category contribute to the profile summary.
type Skill struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

// Work is one entry of the candidate's work history, most recent first.
type Work struct {
	Company string `yaml:"company"`
	Role    string `yaml:"role"`
}

// Profile holds the candidate data the search engine consumes: skills, work
// history, projects and the ids of postings already applied to.
type Profile struct {
	Skills      []Skill  `yaml:"skills"`
	WorkHistory []Work   `yaml:"work_history"`
	Projects    []string `yaml:"projects"`
	Applied     []string `yaml:"applied"`
}

// Load reads and parses the YAML profile file at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	return &profile, nil
}

// Summary renders the profile to the compact text block fed to the reasoning
// and embedding models. Sections with no data are omitted entirely.
func (p *Profile) Summary() string {
	var parts []string

	var technical []string
	for _, s := range p.Skills {
		if s.Category != "technical" {
			continue
		}
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		technical = append(technical, name)
		if len(technical) == maxSummarySkills {
			break
		}
	}
	if len(technical) > 0 {
		parts = append(parts, "Technical Skills: "+strings.Join(technical, ", "))
	}

	var jobs []string
	for _, w := range p.WorkHistory {
		jobs = append(jobs, fmt.Sprintf("%s at %s", w.Role, w.Company))
		if len(jobs) == maxSummaryJobs {
			break
		}
	}
	if len(jobs) > 0 {
		parts = append(parts, "Experience: "+strings.Join(jobs, "; "))
	}

	var projects []string
	for _, name := range p.Projects {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		projects = append(projects, name)
		if len(projects) == maxSummaryProjects {
			break
		}
	}
	if len(projects) > 0 {
		parts = append(parts, "Projects: "+strings.Join(projects, ", "))
	}

	if len(parts) == 0 {
		return "No profile data available."
	}
	return strings.Join(parts, "\n")
}

// AppliedSet returns the applied posting ids as a set for membership checks.
func (p *Profile) AppliedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Applied))
	for _, id := range p.Applied {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
