package recognize

import (
	"encoding/json"
	"fmt"
	"os"
)

// EmbeddingDim is the length of the encodings produced by the Python
// sidecar (dlib's 128-d face descriptor).
const EmbeddingDim = 128

// Identity is one enrolled person: a label plus every reference encoding
// captured for them at enrollment time.
type Identity struct {
	Name string
	Refs [][]float64
}

// Gallery is the in-memory encoding store. Identities keep their enrollment
// order, which is the tie-break order for exact-distance ties. A gallery is
// read-only during a camera session and safe to share without locking.
type Gallery struct {
	identities []Identity
	index      map[string]int
}

// NewGallery returns an empty gallery.
func NewGallery() *Gallery {
	return &Gallery{index: make(map[string]int)}
}

// galleryFile is the on-disk layout: two parallel arrays where a name
// repeats once per reference photo.
type galleryFile struct {
	Names     []string    `json:"names"`
	Encodings [][]float64 `json:"encodings"`
}

// LoadGallery reads and validates an encoding store file. Any structural
// problem is reported as corruption; callers treat that as fatal.
func LoadGallery(path string) (*Gallery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f galleryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("corrupt encoding store %s: %w", path, err)
	}
	if len(f.Names) != len(f.Encodings) {
		return nil, fmt.Errorf("corrupt encoding store %s: %d names but %d encodings", path, len(f.Names), len(f.Encodings))
	}

	g := NewGallery()
	for i, name := range f.Names {
		if name == "" {
			return nil, fmt.Errorf("corrupt encoding store %s: empty name at entry %d", path, i)
		}
		if len(f.Encodings[i]) != EmbeddingDim {
			return nil, fmt.Errorf("corrupt encoding store %s: entry %d has %d dimensions, want %d", path, i, len(f.Encodings[i]), EmbeddingDim)
		}
		g.Add(name, f.Encodings[i])
	}
	return g, nil
}

// Save writes the gallery in the parallel-array layout, one entry per
// reference encoding.
func (g *Gallery) Save(path string) error {
	f := galleryFile{Names: []string{}, Encodings: [][]float64{}}
	for _, id := range g.identities {
		for _, ref := range id.Refs {
			f.Names = append(f.Names, id.Name)
			f.Encodings = append(f.Encodings, ref)
		}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Add appends a reference encoding for name, creating the identity the
// first time the name appears.
func (g *Gallery) Add(name string, vec []float64) {
	if i, ok := g.index[name]; ok {
		g.identities[i].Refs = append(g.identities[i].Refs, vec)
		return
	}
	g.index[name] = len(g.identities)
	g.identities = append(g.identities, Identity{Name: name, Refs: [][]float64{vec}})
}

// Rename relabels an identity in place. It reports false when oldName is
// not enrolled or newName already is.
func (g *Gallery) Rename(oldName, newName string) bool {
	i, ok := g.index[oldName]
	if !ok {
		return false
	}
	if _, taken := g.index[newName]; taken {
		return false
	}
	delete(g.index, oldName)
	g.index[newName] = i
	g.identities[i].Name = newName
	return true
}

// Len is the number of enrolled identities.
func (g *Gallery) Len() int { return len(g.identities) }

// RefCount is the total number of reference encodings across all identities.
func (g *Gallery) RefCount() int {
	n := 0
	for _, id := range g.identities {
		n += len(id.Refs)
	}
	return n
}

// Identities returns the enrolled identities in enrollment order.
func (g *Gallery) Identities() []Identity { return g.identities }
