// Package metadata provides the canonical metadata store shared by all
// format parsers and generators. Raw key/value pairs from any source format
// are normalized onto a closed canonical key set; unrecognized keys are
// carried through as custom keys.
package metadata

import (
	"sort"
	"strings"

	"github.com/lyricore/lyricore/core/ir"
)

// Key is a canonical metadata key. The canonical values below cover the
// well-known tags; any other non-empty value is a custom key preserved
// verbatim.
type Key string

// Canonical metadata keys.
const (
	KeyTitle                 Key = "Title"
	KeyArtist                Key = "Artist"
	KeyAlbum                 Key = "Album"
	KeyLanguage              Key = "Language"
	KeyOffset                Key = "Offset"
	KeySongwriter            Key = "Songwriter"
	KeyNcmMusicID            Key = "NCMMusicId"
	KeyQqMusicID             Key = "QQMusicId"
	KeySpotifyID             Key = "SpotifyId"
	KeyAppleMusicID          Key = "AppleMusicId"
	KeyIsrc                  Key = "ISRC"
	KeyTtmlAuthorGithub      Key = "TtmlAuthorGithub"
	KeyTtmlAuthorGithubLogin Key = "TtmlAuthorGithubLogin"
)

// keyAliases maps lowercased raw tag names onto canonical keys.
var keyAliases = map[string]Key{
	"ti":                    KeyTitle,
	"title":                 KeyTitle,
	"musicname":             KeyTitle,
	"ar":                    KeyArtist,
	"artist":                KeyArtist,
	"artists":               KeyArtist,
	"al":                    KeyAlbum,
	"album":                 KeyAlbum,
	"by":                    KeyTtmlAuthorGithubLogin,
	"ttmlauthorgithublogin": KeyTtmlAuthorGithubLogin,
	"language":              KeyLanguage,
	"lang":                  KeyLanguage,
	"offset":                KeyOffset,
	"songwriter":            KeySongwriter,
	"songwriters":           KeySongwriter,
	"ncmmusicid":            KeyNcmMusicID,
	"qqmusicid":             KeyQqMusicID,
	"spotifyid":             KeySpotifyID,
	"applemusicid":          KeyAppleMusicID,
	"isrc":                  KeyIsrc,
	"ttmlauthorgithub":      KeyTtmlAuthorGithub,
}

// canonicalRanks orders keys for deterministic output. Custom keys sort
// after every canonical key.
var canonicalRanks = map[Key]int{
	KeyTitle:                 0,
	KeyArtist:                1,
	KeyAlbum:                 2,
	KeySongwriter:            3,
	KeyLanguage:              4,
	KeyOffset:                5,
	KeyNcmMusicID:            10,
	KeyQqMusicID:             11,
	KeySpotifyID:             12,
	KeyAppleMusicID:          13,
	KeyIsrc:                  14,
	KeyTtmlAuthorGithub:      20,
	KeyTtmlAuthorGithubLogin: 21,
}

// publicKeys is the set of keys included in serialized output.
var publicKeys = map[Key]bool{
	KeyTitle:                 true,
	KeyArtist:                true,
	KeyAlbum:                 true,
	KeyNcmMusicID:            true,
	KeyQqMusicID:             true,
	KeySpotifyID:             true,
	KeyAppleMusicID:          true,
	KeyIsrc:                  true,
	KeyTtmlAuthorGithub:      true,
	KeyTtmlAuthorGithubLogin: true,
}

// ParseKey normalizes a raw tag name onto a canonical key. Unrecognized
// non-empty names become custom keys carrying the original spelling.
func ParseKey(raw string) Key {
	if k, ok := keyAliases[strings.ToLower(raw)]; ok {
		return k
	}
	return Key(raw)
}

// IsCanonical reports whether the key is one of the well-known keys.
func (k Key) IsCanonical() bool {
	_, ok := canonicalRanks[k]
	return ok
}

// IsPublic reports whether the key belongs in serialized output.
func (k Key) IsPublic() bool {
	return publicKeys[k]
}

// OrderRank returns the key's sort weight. Custom keys rank last.
func (k Key) OrderRank() int {
	if rank, ok := canonicalRanks[k]; ok {
		return rank
	}
	return 1000
}

// Store holds normalized metadata. Keys are canonical; values are ordered
// lists since many tags are legally multi-valued.
type Store struct {
	data map[Key][]string
}

// NewStore returns an empty metadata store.
func NewStore() *Store {
	return &Store{data: make(map[Key][]string)}
}

// FromRaw builds a deduplicated store from a parser's raw metadata map.
func FromRaw(raw map[string][]string) *Store {
	s := NewStore()
	s.LoadFromRaw(raw)
	s.Deduplicate()
	return s
}

// Add appends a value under the canonical form of a raw tag name.
// Whitespace is trimmed; empty values are dropped.
func (s *Store) Add(rawKey, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	k := ParseKey(rawKey)
	s.data[k] = append(s.data[k], value)
}

// Set replaces all values of a tag with one value.
func (s *Store) Set(rawKey, value string) {
	s.data[ParseKey(rawKey)] = []string{strings.TrimSpace(value)}
}

// SetMultiple replaces all values of a tag.
func (s *Store) SetMultiple(rawKey string, values []string) {
	cleaned := make([]string, len(values))
	for i, v := range values {
		cleaned[i] = strings.TrimSpace(v)
	}
	s.data[ParseKey(rawKey)] = cleaned
}

// Remove deletes a tag and all its values.
func (s *Store) Remove(rawKey string) {
	delete(s.data, ParseKey(rawKey))
}

// Get returns the first value of a key, if any.
func (s *Store) Get(k Key) (string, bool) {
	values := s.data[k]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Values returns all values of a key in insertion order.
func (s *Store) Values(k Key) []string {
	return s.data[k]
}

// Keys returns every stored key sorted by rank, custom keys alphabetical
// after canonical ones.
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := keys[i].OrderRank(), keys[j].OrderRank()
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// LoadFromRaw adds every raw key/value pair, normalizing keys as it goes.
func (s *Store) LoadFromRaw(raw map[string][]string) {
	for key, values := range raw {
		for _, v := range values {
			s.Add(key, v)
		}
	}
}

// Deduplicate trims all values, drops empty ones, and sorts and
// deduplicates each key's value list. Keys left with no values are removed.
func (s *Store) Deduplicate() {
	for k, values := range s.data {
		cleaned := values[:0]
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				cleaned = append(cleaned, v)
			}
		}
		if len(cleaned) == 0 {
			delete(s.data, k)
			continue
		}
		sort.Strings(cleaned)
		cleaned = dedupSorted(cleaned)
		s.data[k] = cleaned
	}
}

func dedupSorted(values []string) []string {
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// SerializableMap returns the public subset of the store keyed by the
// canonical string names, suitable for JSON output.
func (s *Store) SerializableMap() map[string][]string {
	out := make(map[string][]string)
	for k, values := range s.data {
		if !k.IsPublic() {
			continue
		}
		out[string(k)] = append([]string(nil), values...)
	}
	return out
}

// AgentStore builds an agent registry from "agent" entries of the form
// "id" or "id=name". The chorus id, and the names 合 and 合唱, register a
// nameless Group; everything else registers a Person.
func (s *Store) AgentStore() *ir.AgentStore {
	store := ir.NewAgentStore()
	for _, def := range s.data[Key("agent")] {
		id, name, _ := strings.Cut(def, "=")
		chorus := id == ir.ChorusAgentID || name == "合" || name == "合唱"
		agent := &ir.Agent{ID: id, Type: ir.AgentPerson}
		if chorus {
			agent.Type = ir.AgentGroup
		} else {
			agent.Name = name
		}
		store.Register(agent)
	}
	return store
}
