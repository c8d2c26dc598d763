package recognize

import "math"

// Match is the outcome of comparing one detection against the gallery.
// Name is empty for unknown faces. Distance is the nearest reference
// distance either way; it is a confidence proxy, not a probability, and is
// +Inf against an empty gallery.
type Match struct {
	Name     string
	Distance float64
}

// Known reports whether the detection matched an enrolled identity.
func (m Match) Known() bool { return m.Name != "" }

// Key is the tracking key for this match: the identity name, or UnknownKey.
func (m Match) Key() string {
	if m.Name == "" {
		return UnknownKey
	}
	return m.Name
}

// Match finds the enrolled identity nearest to vec. An identity with
// several references is matched by its closest one, so one bad enrollment
// photo cannot push a person over the threshold. The nearest identity is
// accepted only when its distance is within threshold. Exact ties go to the
// earliest enrolled identity.
//
// Pure and deterministic; safe to call concurrently.
func (g *Gallery) Match(vec []float64, threshold float64) Match {
	best := Match{Distance: math.Inf(1)}
	for _, id := range g.identities {
		for _, ref := range id.Refs {
			if d := EuclideanDist(vec, ref); d < best.Distance {
				best = Match{Name: id.Name, Distance: d}
			}
		}
	}
	if best.Distance > threshold {
		best.Name = ""
	}
	return best
}

// EuclideanDist is the L2 distance between two encodings, the metric dlib
// face descriptors are calibrated for. Mismatched lengths compare as
// infinitely far apart.
func EuclideanDist(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
