package analyzer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/PaulChelaru/petfinder-matching-service/internal/features"
)

// DefaultBreedThreshold is the largest distance still accepted as a breed
// match, i.e. a similarity of at least 0.6.
const DefaultBreedThreshold = 0.4

//go:embed data/breeds.json
var defaultBreedsJSON []byte

type BreedEntry struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

type vocabularyFile struct {
	Breeds []BreedEntry `json:"breeds"`
}

// Vocabulary is the reference table breeds are resolved against.
type Vocabulary struct {
	entries   []BreedEntry
	keys      [][]string
	threshold float64
}

var (
	defaultVocabOnce sync.Once
	defaultVocab     *Vocabulary
	defaultVocabErr  error
)

// DefaultVocabulary returns the embedded breed table.
func DefaultVocabulary() (*Vocabulary, error) {
	defaultVocabOnce.Do(func() {
		defaultVocab, defaultVocabErr = LoadVocabulary(bytes.NewReader(defaultBreedsJSON))
	})
	return defaultVocab, defaultVocabErr
}

// LoadVocabularyFile reads a breed table from disk. An empty path selects the
// embedded table.
func LoadVocabularyFile(path string) (*Vocabulary, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultVocabulary()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open breed vocabulary: %w", err)
	}
	defer f.Close()
	return LoadVocabulary(f)
}

func LoadVocabulary(r io.Reader) (*Vocabulary, error) {
	var file vocabularyFile
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode breed vocabulary: %w", err)
	}
	if len(file.Breeds) == 0 {
		return nil, fmt.Errorf("breed vocabulary is empty")
	}

	v := &Vocabulary{threshold: DefaultBreedThreshold}
	seen := make(map[string]struct{}, len(file.Breeds))
	for i, entry := range file.Breeds {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("breeds[%d]: name is required", i)
		}
		if _, dup := seen[strings.ToLower(name)]; dup {
			return nil, fmt.Errorf("breeds[%d]: duplicate name %q", i, name)
		}
		seen[strings.ToLower(name)] = struct{}{}

		keys := []string{features.NormalizeBreed(name)}
		for _, alias := range entry.Aliases {
			if key := features.NormalizeBreed(alias); key != "" {
				keys = append(keys, key)
			}
		}
		v.entries = append(v.entries, BreedEntry{Name: name, Aliases: entry.Aliases})
		v.keys = append(v.keys, keys)
	}
	return v, nil
}

// Len reports the number of breeds.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.entries)
}

// Resolve finds the closest breed for a normalized breed string. Ties go to
// the entry listed first.
func (v *Vocabulary) Resolve(breed string) (name string, distance float64, ok bool) {
	if v == nil || breed == "" {
		return "", 1, false
	}

	bestIdx := -1
	bestDist := 1.0
	for i, keys := range v.keys {
		for _, key := range keys {
			d := matchDistance(breed, key)
			if d < bestDist {
				bestIdx, bestDist = i, d
			}
		}
	}
	if bestIdx < 0 || bestDist > v.threshold {
		return "", 1, false
	}
	return v.entries[bestIdx].Name, bestDist, true
}
