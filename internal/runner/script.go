package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Session is one scripted onboarding conversation to replay.
type Session struct {
	Name      string   `yaml:"name"`
	UserID    int64    `yaml:"userId"`
	Source    string   `yaml:"source"`
	Candidate string   `yaml:"candidate"`
	Inputs    []string `yaml:"inputs"`
}

type sessionFile struct {
	Session  `yaml:",inline"`
	Sessions []Session `yaml:"sessions"`
}

// ParseSessions reads either a single session document or a document with a
// top-level sessions list. name is used for sessions that carry none.
func ParseSessions(name string, data []byte) ([]Session, error) {
	var f sessionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	sessions := f.Sessions
	if len(sessions) == 0 {
		sessions = []Session{f.Session}
	}
	for i := range sessions {
		s := &sessions[i]
		if s.Name == "" {
			s.Name = name
			if len(sessions) > 1 {
				s.Name = fmt.Sprintf("%s-%d", name, i+1)
			}
		}
		if s.UserID < 0 {
			return nil, fmt.Errorf("%s: session %q: userId must not be negative", name, s.Name)
		}
		if strings.TrimSpace(s.Candidate) == "" && len(s.Inputs) == 0 {
			return nil, fmt.Errorf("%s: session %q has neither candidate nor inputs", name, s.Name)
		}
	}
	return sessions, nil
}

// LoadSessions reads every script file and gives sessions without a userId
// one that no other session in the batch uses, so the scripted service keeps
// their conversations apart.
func LoadSessions(paths ...string) ([]Session, error) {
	var all []Session
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		sessions, err := ParseSessions(name, data)
		if err != nil {
			return nil, err
		}
		all = append(all, sessions...)
	}
	assignUserIDs(all)
	return all, nil
}

func assignUserIDs(sessions []Session) {
	var max int64
	for _, s := range sessions {
		if s.UserID > max {
			max = s.UserID
		}
	}
	for i := range sessions {
		if sessions[i].UserID == 0 {
			max++
			sessions[i].UserID = max
		}
	}
}
