package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// AgentType classifies a performer.
type AgentType string

// Agent type constants.
const (
	AgentPerson AgentType = "person"
	AgentGroup  AgentType = "group"
	AgentOther  AgentType = "other"
)

// ChorusAgentID is the conventional id for the chorus group agent.
const ChorusAgentID = "v1000"

// Agent is a performer or role referenced by lines.
type Agent struct {
	// ID is the stable identifier, conventionally "v1", "v2", ...
	// with "v1000" reserved for the chorus.
	ID string `json:"id"`

	// Name is the optional display name.
	Name string `json:"name,omitempty"`

	// Type classifies the agent; Person is the default.
	Type AgentType `json:"type"`
}

// AgentStore registers every agent a document references, preserving
// declaration order. Every line's agent resolves to an entry here by the
// end of parsing; unknown references get a synthesized Person agent.
type AgentStore struct {
	Agents []*Agent `json:"agents,omitempty"`
}

// NewAgentStore returns an empty agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{}
}

// Len returns the number of registered agents.
func (s *AgentStore) Len() int {
	return len(s.Agents)
}

// Get returns the agent with the given id, or nil.
func (s *AgentStore) Get(id string) *Agent {
	for _, a := range s.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// ByName returns the first agent with the given display name, or nil.
func (s *AgentStore) ByName(name string) *Agent {
	if name == "" {
		return nil
	}
	for _, a := range s.Agents {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Register adds an agent. If the id is already registered, the existing
// entry is updated in place with any name or type the new one carries.
func (s *AgentStore) Register(a *Agent) *Agent {
	if a.Type == "" {
		a.Type = AgentPerson
	}
	if existing := s.Get(a.ID); existing != nil {
		if a.Name != "" {
			existing.Name = a.Name
		}
		if a.Type != AgentPerson || existing.Type == "" {
			existing.Type = a.Type
		}
		return existing
	}
	s.Agents = append(s.Agents, a)
	return a
}

// GetOrSynthesize returns the agent for id, registering a default agent if
// none exists. The chorus id synthesizes a Group, every other id a Person.
func (s *AgentStore) GetOrSynthesize(id string) *Agent {
	if a := s.Get(id); a != nil {
		return a
	}
	typ := AgentPerson
	if id == ChorusAgentID {
		typ = AgentGroup
	}
	return s.Register(&Agent{ID: id, Type: typ})
}

// Allocate registers a new Person agent under the next free "v<n>" id and
// the given display name.
func (s *AgentStore) Allocate(name string) *Agent {
	return s.Register(&Agent{ID: s.nextID(), Name: name, Type: AgentPerson})
}

// nextID returns the lowest unused "v<n>" id below the chorus id.
func (s *AgentStore) nextID() string {
	max := 0
	for _, a := range s.Agents {
		n, ok := parseAgentID(a.ID)
		if ok && n < 1000 && n > max {
			max = n
		}
	}
	return fmt.Sprintf("v%d", max+1)
}

// parseAgentID extracts n from a "v<n>" id.
func parseAgentID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "v")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// IsAgentID reports whether a value has the conventional "v<n>" id shape.
func IsAgentID(v string) bool {
	_, ok := parseAgentID(v)
	return ok
}
