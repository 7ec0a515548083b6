package stagehand

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

var errCorrupt = errors.New("corrupt file")

// sharedClips is returned by every "clips*" load, the way a caching loader
// would hand out the same clip objects.
var sharedClips = []*Clip{
	{Name: "Walk", Duration: 2, Tracks: []Track{{Node: "Hips", Property: TrackPosition, Times: []float32{0}}}},
	{Name: "Jump", Duration: 1},
}

// fakeModel builds root > Body (skinned, skeleton [Hips]) + Hips, with a
// Walk clip.
func fakeModel() *Asset {
	root := NewGroup("root")
	hips := NewNode("Hips", NodeTypeBone)
	body := NewMesh("Body", &Geometry{Kind: GeometryBox}, NewMaterial(MaterialStandard))
	body.Type = NodeTypeSkinnedMesh
	body.Skeleton = &Skeleton{Bones: []*Node{hips}}
	hat := NewMesh("Hat", &Geometry{Kind: GeometryBox}, NewMaterial(MaterialBasic))
	root.AddChild(hips)
	root.AddChild(body)
	root.AddChild(hat)
	return &Asset{Root: root, Clips: []*Clip{{Name: "Walk", Duration: 1}}}
}

// fakeRig builds a skinned Rig whose skinned Cape child has its own bones.
func fakeRig() *Asset {
	rig := NewMesh("Rig", &Geometry{Kind: GeometryBox}, NewMaterial(MaterialStandard))
	rig.Type = NodeTypeSkinnedMesh
	rig.Skeleton = &Skeleton{Bones: []*Node{NewNode("Root", NodeTypeBone)}}
	cape := NewMesh("Cape", &Geometry{Kind: GeometryBox}, NewMaterial(MaterialStandard))
	cape.Type = NodeTypeSkinnedMesh
	cape.Skeleton = &Skeleton{Bones: []*Node{NewNode("Cloth", NodeTypeBone)}}
	rig.AddChild(cape)
	return &Asset{Root: rig}
}

// fakeLoaders serves "bad*" as a failure, "slow*" once gate is closed,
// "clips*" as an animation-only asset, "rig*" as fakeRig and anything else
// as fakeModel.
type fakeLoaders struct {
	gate      chan struct{}
	closeOnce sync.Once
}

func newFakeLoaders() *fakeLoaders {
	return &fakeLoaders{gate: make(chan struct{})}
}

func (f *fakeLoaders) release() {
	f.closeOnce.Do(func() { close(f.gate) })
}

func (f *fakeLoaders) factory(Fetcher) Loader {
	return LoaderFunc(func(ctx context.Context, ref string) (*Asset, error) {
		switch {
		case strings.HasPrefix(ref, "bad"):
			return nil, errCorrupt
		case strings.HasPrefix(ref, "slow"):
			select {
			case <-f.gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		case strings.HasPrefix(ref, "clips"):
			return &Asset{Clips: sharedClips}, nil
		case strings.HasPrefix(ref, "rig"):
			return fakeRig(), nil
		}
		return fakeModel(), nil
	})
}

func newLoaderWorld(t *testing.T) (*World, *fakeLoaders) {
	t.Helper()
	f := newFakeLoaders()
	t.Cleanup(f.release)
	return newTestWorld(t, WithLoader(FormatFBX, f.factory)), f
}

func model(name, src string) NodeSpec {
	return NodeSpec{Type: "model", Name: name, Src: src}
}

// --- load ---

func TestLoadStaticTree(t *testing.T) {
	w := newTestWorld(t)
	rec := &recorder{}
	intensity := 0.5
	nodes := []NodeSpec{
		{Type: "ambient_light", Intensity: &intensity},
		{Type: "group", Name: "Room", Children: []NodeSpec{
			{Type: "geometry", Name: "Floor", Geometry: "plane", Material: map[string]any{"type": "standard", "color": "#ff0000"}},
		}},
	}
	if err := w.Load(testContext(t), Path("#scene"), nodes, false, rec.callbacks()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	light := w.Query(Path("#scene.0"), nil)
	if light == nil || light.Light.Intensity != 0.5 {
		t.Fatalf("light = %v", light)
	}
	floor := w.Query(Path("#scene.Room.Floor"), nil)
	if floor == nil || floor.Material.Type != MaterialStandard || floor.Material.Color().Hex() != 0xff0000 {
		t.Fatalf("floor = %v", floor)
	}
	want := []string{"loaded 0", "material Floor", "loaded Floor", "loaded Room"}
	if strings.Join(rec.events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	w := newTestWorld(t)
	ctx := testContext(t)
	tests := []struct {
		name  string
		where Query
		nodes []NodeSpec
		want  error
	}{
		{"no nodes", Path("#scene"), nil, ErrConfiguration},
		{"bad anchor", Path("#scene.Nowhere"), []NodeSpec{{Type: "group"}}, ErrConfiguration},
		{"unknown type", Path("#scene"), []NodeSpec{{Type: "teapot"}}, ErrConfiguration},
		{"unknown geometry", Path("#scene"), []NodeSpec{{Type: "geometry", Geometry: "torus"}}, ErrConfiguration},
		{"unknown material", Path("#scene"), []NodeSpec{{Type: "geometry", Geometry: "box", Material: map[string]any{"type": "chrome"}}}, ErrConfiguration},
		{"unsupported format", Path("#scene"), []NodeSpec{model("m", "thing.obj")}, ErrUnsupportedFormat},
		{"format without loader", Path("#scene"), []NodeSpec{model("m", "thing.usdz")}, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Load(ctx, tt.where, tt.nodes, false, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadModelAsync(t *testing.T) {
	w, _ := newLoaderWorld(t)
	rec := &recorder{}
	var task *LoadTask
	cb := rec.callbacks().Merge(&Callbacks{OnNodePending: func(e PendingEvent) { task = e.Task }})

	spec := model("Hero", "hero.fbx")
	spec.Position = ptr(Vec3(1, 2, 3))
	spec.CastShadow = true
	spec.Material = map[string]any{"roughness": 0.25}
	if err := w.Load(testContext(t), Path("#scene"), []NodeSpec{spec}, false, cb); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if task == nil || task.Settled() {
		t.Fatal("model load should be pending")
	}
	if w.Query(Path("#scene.Hero"), nil) != nil {
		t.Fatal("node should not be attached before the inbox is drained")
	}

	if err := w.Settle(testContext(t)); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	hero := w.Query(Path("#scene.Hero"), nil)
	if hero == nil || task.Node() != hero || task.Err() != nil {
		t.Fatalf("hero = %v, task = %+v", hero, task)
	}
	assertVec(t, "position", hero.Position, Vec3(1, 2, 3))
	if hero.Template == nil || hero.Template.Format != FormatFBX || hero.Template.Clip("Walk") == nil {
		t.Errorf("template = %+v", hero.Template)
	}
	body := w.Query(Path("#scene.Hero.Body"), nil)
	if !body.CastShadow || body.ReceiveShadow {
		t.Error("mesh shadow flags should follow the node settings")
	}
	if v, _ := body.Material.Param("roughness"); v != 0.25 {
		t.Errorf("roughness = %v, want 0.25", v)
	}
	if rec.count("loaded Hero") != 1 {
		t.Errorf("events = %v", rec.events)
	}
}

func TestLoadAwaitAttachesBeforeReturn(t *testing.T) {
	w, _ := newLoaderWorld(t)
	spec := model("Hero", "hero.fbx")
	spec.Children = []NodeSpec{{Type: "group", Name: "Saddle"}}
	if err := w.Load(testContext(t), Path("#scene"), []NodeSpec{spec}, true, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if w.Query(Path("#scene.Hero.Saddle"), nil) == nil {
		t.Error("awaited model and its children should be attached on return")
	}
	if w.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", w.Pending())
	}
}

func TestLoadAwaitFailureAfterAllSettle(t *testing.T) {
	w, loaders := newLoaderWorld(t)
	rec := &recorder{}
	var tasks []*LoadTask
	cb := rec.callbacks().Merge(&Callbacks{
		OnNodePending: func(e PendingEvent) { tasks = append(tasks, e.Task) },
		// The slow load may only finish once the failure was observed.
		OnNodeError: func(ErrorEvent) { loaders.release() },
	})

	err := w.Load(testContext(t), Path("#scene"), []NodeSpec{
		model("Broken", "bad.fbx"),
		model("Good", "slow.fbx"),
	}, true, cb)

	var le *LoadError
	if !errors.As(err, &le) || !errors.Is(err, errCorrupt) || !errors.Is(err, ErrLoadFailure) {
		t.Fatalf("err = %v, want LoadError wrapping %v", err, errCorrupt)
	}
	if le.Source != "bad.fbx" {
		t.Errorf("Source = %q, want bad.fbx", le.Source)
	}
	for i, task := range tasks {
		if !task.Settled() {
			t.Errorf("task %d not settled when Load returned", i)
		}
	}
	if w.Query(Path("#scene.Good"), nil) == nil {
		t.Error("successful sibling should stay attached")
	}
	if w.Query(Path("#scene.Broken"), nil) != nil {
		t.Error("failed model should not be attached")
	}
	if len(rec.errs) != 1 || rec.errs[0].NodeSpec.Name != "Broken" {
		t.Errorf("errors = %+v", rec.errs)
	}
}

func TestLoadWithoutAwaitIsolatesFailure(t *testing.T) {
	w, _ := newLoaderWorld(t)
	rec := &recorder{}
	if err := w.Load(testContext(t), Path("#scene"), []NodeSpec{model("Broken", "bad.fbx"), model("Good", "good.fbx")}, false, rec.callbacks()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := w.Settle(testContext(t)); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0].Err, errCorrupt) {
		t.Errorf("errors = %+v", rec.errs)
	}
	if w.Query(Path("#scene.Good"), nil) == nil {
		t.Error("Good should be attached")
	}
}

func TestLoadAnchorUnloadedBeforeCompletion(t *testing.T) {
	w, loaders := newLoaderWorld(t)
	ctx := testContext(t)
	rec := &recorder{}
	if err := w.Load(ctx, Path("#scene"), []NodeSpec{{Type: "group", Name: "Holder"}}, false, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Load(ctx, Path("#scene.Holder"), []NodeSpec{model("Late", "slow.fbx")}, false, rec.callbacks()); err != nil {
		t.Fatal(err)
	}
	if err := w.Unload([]NodeSpec{{Where: Path("#scene.Holder")}}, nil); err != nil {
		t.Fatal(err)
	}
	loaders.release()
	if err := w.Settle(ctx); err != nil {
		t.Fatal(err)
	}
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0].Err, errAnchorUnloaded) {
		t.Errorf("errors = %+v", rec.errs)
	}
}

// --- unload ---

func TestUnloadSubtree(t *testing.T) {
	w, _ := newLoaderWorld(t)
	ctx := testContext(t)
	rec := &recorder{}
	if err := w.Load(ctx, Path("#scene"), []NodeSpec{model("Hero", "hero.fbx")}, true, nil); err != nil {
		t.Fatal(err)
	}
	hero := w.Query(Path("#scene.Hero"), nil)
	body := w.Query(Path("#scene.Hero.Body"), nil)
	if _, err := w.Registry().Attach(hero, "animation", "a", nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Registry().Attach(body, "orbit", "o", nil, nil, nil); err != nil {
		t.Fatal(err)
	}

	if err := w.Unload([]NodeSpec{{Where: Path("#scene.Hero")}}, rec.callbacks()); err != nil {
		t.Fatalf("Unload: %v", err)
	}

	for _, p := range []string{"#scene.Hero", "#scene.Hero.Body", "#scene.Hero.Hips", "#scene.Hero.Body.geometry"} {
		if w.QueryTarget(Path(p), nil) != nil {
			t.Errorf("%s still resolves", p)
		}
	}
	if !hero.IsDisposed() || !body.IsDisposed() {
		t.Error("subtree should be disposed")
	}
	if w.Registry().Len() != 0 {
		t.Errorf("registry Len = %d, want 0", w.Registry().Len())
	}
	if rec.count("removed") != 2 || rec.count("unloaded Hero") != 1 {
		t.Errorf("events = %v", rec.events)
	}
}

func TestUnloadController(t *testing.T) {
	w := newTestWorld(t)
	hero := NewObject3D("Hero")
	w.Scene().AddChild(hero)
	if _, err := w.Registry().Attach(hero, "orbit", "o", nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Unload([]NodeSpec{{Where: Path("#scene.Hero.controllers.orbit")}}, nil); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if hero.Controller("orbit") != nil || w.Registry().Len() != 0 || hero.IsDisposed() {
		t.Error("only the controller should be removed")
	}
}

func TestUnloadErrors(t *testing.T) {
	w := newTestWorld(t)
	w.Scene().AddChild(NewMesh("Box", &Geometry{Kind: GeometryBox}, NewMaterial(MaterialBasic)))
	tests := []struct {
		name  string
		nodes []NodeSpec
	}{
		{"no nodes", nil},
		{"missing", []NodeSpec{{Where: Path("#scene.Missing")}}},
		{"scene root", []NodeSpec{{Where: Path("#scene")}}},
		{"not a node", []NodeSpec{{Where: Path("#scene.Box.geometry")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.Unload(tt.nodes, nil); !errors.Is(err, ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

// --- add ---

func TestAddSplicesSubNode(t *testing.T) {
	w, _ := newLoaderWorld(t)
	ctx := testContext(t)
	if err := w.Load(ctx, Path("#scene"), []NodeSpec{model("Hero", "hero.fbx")}, true, nil); err != nil {
		t.Fatal(err)
	}
	heroBody := w.Query(Path("#scene.Hero.Body"), nil)
	rec := &recorder{}

	what := &AssetSpec{Src: "armor.fbx", Where: Path("Body"), Tag: "armor", ReceiveShadow: true, Material: map[string]any{"metalness": 1}}
	if err := w.Add(ctx, Path("#scene.Hero"), what, rec.callbacks()); err != nil {
		t.Fatalf("Add: %v", err)
	}

	armor := w.Query(Steps(PathStep("#scene.Hero"), SelectorStep(ByTag("armor"))), nil)
	if armor == nil {
		t.Fatal("armor should be attached under Hero")
	}
	if armor.Skeleton.Bones[0] != heroBody.Skeleton.Bones[0] {
		t.Error("armor should share the hero's bones")
	}
	if !armor.ReceiveShadow {
		t.Error("ReceiveShadow should be set")
	}
	if v, _ := armor.Material.Param("metalness"); v != 1 {
		t.Errorf("metalness = %v, want 1", v)
	}
	if rec.count("added Body") != 1 {
		t.Errorf("events = %v", rec.events)
	}
}

func TestAddSkeletonIgnoresOwnSubtree(t *testing.T) {
	w, _ := newLoaderWorld(t)
	if err := w.Add(testContext(t), Path("#scene"), &AssetSpec{Src: "rig.fbx"}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	rig := w.Query(Path("#scene.Rig"), nil)
	if rig == nil {
		t.Fatal("rig should be attached")
	}
	if got := rig.Skeleton.Bones[0].Name; got != "Root" {
		t.Errorf("rig bone = %q, want Root", got)
	}
}

func TestAddWholeAsset(t *testing.T) {
	w, _ := newLoaderWorld(t)
	if err := w.Add(testContext(t), Path("#scene"), &AssetSpec{Src: "prop.fbx"}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if w.Query(Path("#scene.root.Hat"), nil) == nil {
		t.Error("asset root should be attached when where is absent")
	}
}

func TestAddFailuresGoToCallback(t *testing.T) {
	w, _ := newLoaderWorld(t)
	ctx := testContext(t)
	rec := &recorder{}

	if err := w.Add(ctx, Path("#scene"), &AssetSpec{Src: "bad.fbx"}, rec.callbacks()); err != nil {
		t.Fatalf("Add of a failing asset = %v, want nil", err)
	}
	if err := w.Add(ctx, Path("#scene"), &AssetSpec{Src: "prop.fbx", Where: Path("Nothing")}, rec.callbacks()); err != nil {
		t.Fatalf("Add of a missing sub node = %v, want nil", err)
	}
	if len(rec.errs) != 2 {
		t.Fatalf("errors = %+v", rec.errs)
	}
	if !errors.Is(rec.errs[0].Err, errCorrupt) || !errors.Is(rec.errs[1].Err, ErrConfiguration) {
		t.Errorf("errors = %v / %v", rec.errs[0].Err, rec.errs[1].Err)
	}
	if w.Scene().NumChildren() != 0 {
		t.Error("nothing should be attached")
	}

	if err := w.Add(ctx, Path("#scene.Missing"), &AssetSpec{Src: "prop.fbx"}, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("bad where err = %v, want ErrConfiguration", err)
	}
	if err := w.Add(ctx, Path("#scene"), nil, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("no what err = %v, want ErrConfiguration", err)
	}
}

// --- animate ---

func TestAnimateAppendsClipCopies(t *testing.T) {
	w, _ := newLoaderWorld(t)
	ctx := testContext(t)
	if err := w.Load(ctx, Path("#scene"), []NodeSpec{model("Hero", "hero.fbx")}, true, nil); err != nil {
		t.Fatal(err)
	}
	hero := w.Query(Path("#scene.Hero"), nil)
	rec := &recorder{}

	if err := w.Animate(ctx, Path("#scene.Hero"), &AssetSpec{Src: "clips.fbx"}, rec.callbacks()); err != nil {
		t.Fatalf("Animate: %v", err)
	}
	names := make([]string, len(hero.Template.Clips))
	for i, c := range hero.Template.Clips {
		names[i] = c.Name
	}
	if strings.Join(names, ",") != "Walk,Walk_Copy,Jump" {
		t.Errorf("clips = %v", names)
	}
	if rec.count("animationAdded 3") != 1 {
		t.Errorf("events = %v", rec.events)
	}

	copyClip := hero.Template.Clip("Walk_Copy")
	if copyClip == sharedClips[0] {
		t.Fatal("appended clip should be a copy")
	}
	copyClip.Tracks[0].Node = "Spine"
	if sharedClips[0].Tracks[0].Node != "Hips" || sharedClips[0].Name != "Walk" {
		t.Error("clip tracks should be deep copies")
	}
}

func TestAnimateCreatesTemplate(t *testing.T) {
	w, _ := newLoaderWorld(t)
	bare := NewObject3D("Bare")
	w.Scene().AddChild(bare)
	if err := w.Animate(testContext(t), Path("#scene.Bare"), &AssetSpec{Src: "clips.fbx"}, nil); err != nil {
		t.Fatal(err)
	}
	if bare.Template == nil || len(bare.Template.Clips) != 2 {
		t.Errorf("template = %+v", bare.Template)
	}
}

func TestAssetClipsFallsBackToChildTemplate(t *testing.T) {
	root := NewGroup("root")
	child := NewObject3D("child")
	child.Template = &Template{Clips: []*Clip{{Name: "Dance"}}}
	root.AddChild(NewObject3D("empty"))
	root.AddChild(child)
	clips := assetClips(&Asset{Root: root})
	if len(clips) != 1 || clips[0].Name != "Dance" {
		t.Errorf("clips = %v", clips)
	}
}
