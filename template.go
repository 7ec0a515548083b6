package stagehand

import (
	"sort"

	"cogentcore.org/core/math32"
)

// Template is the loaded asset attached to a model node. Clips is the
// animation list the AnimationController reads at attach time.
type Template struct {
	Source   string
	Format   Format
	Clips    []*Clip
	Metadata map[string]any
}

// Clip returns the clip named name.
func (t *Template) Clip(name string) *Clip {
	for _, c := range t.Clips {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// TrackProperty names the transform channel a track drives.
type TrackProperty string

const (
	TrackPosition TrackProperty = "position"
	TrackRotation TrackProperty = "rotation"
	TrackScale    TrackProperty = "scale"
)

// Clip is a named animation: keyframe tracks over a duration in seconds.
type Clip struct {
	Name     string  `mapstructure:"name"`
	Duration float32 `mapstructure:"duration"`
	Tracks   []Track `mapstructure:"tracks"`
}

// Track animates one property of one named node. Times are ascending.
type Track struct {
	Node     string           `mapstructure:"node"`
	Property TrackProperty    `mapstructure:"property"`
	Times    []float32        `mapstructure:"times"`
	Values   []math32.Vector3 `mapstructure:"values"`
}

// Sample linearly interpolates the track at time t, clamping outside the
// keyed range.
func (tr *Track) Sample(t float32) math32.Vector3 {
	n := min(len(tr.Times), len(tr.Values))
	switch {
	case n == 0:
		return math32.Vector3{}
	case t <= tr.Times[0]:
		return tr.Values[0]
	case t >= tr.Times[n-1]:
		return tr.Values[n-1]
	}
	i := sort.Search(n, func(i int) bool { return tr.Times[i] > t })
	t0, t1 := tr.Times[i-1], tr.Times[i]
	a, b := tr.Values[i-1], tr.Values[i]
	f := (t - t0) / (t1 - t0)
	return math32.Vec3(
		math32.Lerp(a.X, b.X, f),
		math32.Lerp(a.Y, b.Y, f),
		math32.Lerp(a.Z, b.Z, f),
	)
}

// Skeleton is the bone list of a skinned mesh.
type Skeleton struct {
	Bones []*Node
}
