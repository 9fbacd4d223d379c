package mascot

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// Compile-time supported manifest version window (spec.md §6 "Prototype
// on-disk layout"): a dotted triple compared as major*2^42 + minor*2^21 +
// patch against this {min, current} pair.
var (
	minSupportedVersion     = encodeVersion(1, 0, 0)
	currentSupportedVersion = encodeVersion(2, 4, 0)
)

func encodeVersion(major, minor, patch uint64) uint64 {
	return major<<42 | minor<<21 | patch
}

func parseVersion(s string) (uint64, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, fmt.Errorf("version %q is not a dotted triple", s)
	}
	var nums [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 21)
		if err != nil {
			return 0, fmt.Errorf("version %q segment %q: %w", s, p, err)
		}
		nums[i] = n
	}
	return encodeVersion(nums[0], nums[1], nums[2]), nil
}

// manifestFile mirrors manifest.json (spec.md §6): name, version,
// display_name, and the relative paths to the package's other files.
type manifestFile struct {
	Name          string           `json:"name"`
	DisplayName   string           `json:"display_name"`
	Version       string           `json:"version"`
	AssetsDir     string           `json:"assets_dir"`
	ProgramsFile  string           `json:"programs_file"`
	ActionsFile   string           `json:"actions_file"`
	BehavioursFile string          `json:"behaviours_file"`
	Sprites       []spriteManifest `json:"sprites"`
}

type spriteManifest struct {
	File   string  `json:"file"`
	Region *rectJSON `json:"region,omitempty"`
}

type rectJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type programEntry struct {
	ID       uint16 `json:"id"`
	// Bytecode is base64-encoded in programs.json (encoding/json's default
	// for []byte), 2 bytes per instruction.
	Bytecode     []byte   `json:"bytecode"`
	Locals       []uint8  `json:"locals"`
	Globals      []string `json:"globals"`
	Functions    []string `json:"functions"`
	EvaluateOnce bool     `json:"evaluate_once"`
}

type contentItemJSON struct {
	Animation  *animationJSON `json:"animation,omitempty"`
	ActionRef  string         `json:"action_ref,omitempty"`
	TargetLook bool           `json:"target_look,omitempty"`
	Condition  *uint16        `json:"condition,omitempty"`
}

type animationJSON struct {
	Name  string     `json:"name"`
	Poses []poseJSON `json:"poses"`
}

type poseJSON struct {
	SpriteIndex int         `json:"sprite_index"`
	AnchorX     float64     `json:"anchor_x"`
	AnchorY     float64     `json:"anchor_y"`
	VelocityX   float64     `json:"velocity_x"`
	VelocityY   float64     `json:"velocity_y"`
	Duration    int         `json:"duration"`
	Hotspots    []hotspotJSON `json:"hotspots,omitempty"`
}

type hotspotJSON struct {
	Shape     string  `json:"shape"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	W         float64 `json:"w"`
	H         float64 `json:"h"`
	Behaviour string  `json:"behaviour"`
}

type actionJSON struct {
	Name             string            `json:"name"`
	Kind             string            `json:"kind"`
	Embedded         string            `json:"embedded,omitempty"`
	Content          []contentItemJSON `json:"content,omitempty"`
	Condition        *uint16           `json:"condition,omitempty"`
	SeekerBehaviour  string            `json:"seeker_behaviour,omitempty"`
	TargetBehaviour  string            `json:"target_behaviour,omitempty"`
	TargetLook       bool              `json:"target_look,omitempty"`
	SelectBehaviours []string          `json:"select_behaviours,omitempty"`
	BornBehaviour    string            `json:"born_behaviour,omitempty"`
	AffordanceTag    string            `json:"affordance_tag,omitempty"`
	TransformTarget  string            `json:"transform_target,omitempty"`
	BornMascot       string            `json:"born_mascot,omitempty"`
	Loop             bool              `json:"loop,omitempty"`
	RequiredBorder   string            `json:"required_border,omitempty"`
	LocalOverrides   map[string]uint16 `json:"local_overrides,omitempty"`
	DurationLimit    *uint16           `json:"duration_limit,omitempty"`
	VelocityParam    *uint16           `json:"velocity_param,omitempty"`
	BornX            *uint16           `json:"born_x,omitempty"`
	BornY            *uint16           `json:"born_y,omitempty"`
}

type nextBehaviourJSON struct {
	Behaviour string  `json:"behaviour"`
	Frequency float64 `json:"frequency"`
	Condition *uint16 `json:"condition,omitempty"`
}

type behaviourJSON struct {
	Name          string              `json:"name"`
	Hidden        bool                `json:"hidden,omitempty"`
	IsCondition   bool                `json:"is_condition,omitempty"`
	LinkedAction  string              `json:"linked_action,omitempty"`
	Condition     *uint16             `json:"condition,omitempty"`
	AddBehaviours bool                `json:"add_behaviours,omitempty"`
	Next          []nextBehaviourJSON `json:"next,omitempty"`
	Frequency     float64             `json:"frequency,omitempty"`
}

type behavioursFile struct {
	Behaviours     []behaviourJSON     `json:"behaviours"`
	RootPool       []nextBehaviourJSON `json:"root_pool"`
	FallBehaviour  string              `json:"fall_behaviour,omitempty"`
	DragBehaviour  string              `json:"drag_behaviour,omitempty"`
	ThrownBehaviour string             `json:"thrown_behaviour,omitempty"`
	DismissAction  string              `json:"dismiss_action,omitempty"`
}

var embeddedKindByName = map[string]EmbeddedKind{
	"look":         EmbeddedLook,
	"fall":         EmbeddedFall,
	"jump":         EmbeddedJump,
	"drag":         EmbeddedDrag,
	"drag_resist":  EmbeddedDragResist,
	"clone":        EmbeddedClone,
	"scan_move":    EmbeddedScanMove,
	"scan_jump":    EmbeddedScanJump,
	"interact":     EmbeddedInteract,
	"dispose":      EmbeddedDispose,
	"transform":    EmbeddedTransform,
	"walk_with_ie": EmbeddedWalkWithIE,
	"throw_window": EmbeddedThrowWindow,
	"stay":         EmbeddedStay,
	"walk":         EmbeddedWalk,
}

var actionKindByName = map[string]ActionKind{
	"stay":     ActionStay,
	"move":     ActionMove,
	"animate":  ActionAnimate,
	"embedded": ActionEmbedded,
	"sequence": ActionSequence,
	"select":   ActionSelect,
}

var borderByName = map[string]BorderType{
	"none":    BorderNone,
	"floor":   BorderFloor,
	"ceiling": BorderCeiling,
	"wall":    BorderWall,
	"any":     BorderAny,
}

var hotspotShapeByName = map[string]HotspotShapeKind{
	"rect":    HotspotRect,
	"ellipse": HotspotEllipse,
}

// LoadPackage reads a prototype's on-disk directory (spec.md §6 "Prototype
// on-disk layout") and compiles it into a ready-to-publish Prototype. It
// does not itself register the result with a Store; callers call
// Store.Add or Store.Reload.
func LoadPackage(dir string) (*Prototype, error) {
	manifestPath := filepath.Join(dir, "manifest.json")
	manifestBytes, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &LoadError{Reason: ErrManifestMissing.Reason, Path: dir}
	}
	var manifest manifestFile
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, &LoadError{Reason: ErrManifestInvalid.Reason, Path: dir}
	}

	version, err := parseVersion(manifest.Version)
	if err != nil {
		return nil, &LoadError{Reason: ErrManifestInvalid.Reason, Path: dir}
	}
	if version < minSupportedVersion {
		return nil, &LoadError{Reason: ErrVersionTooOld.Reason, Path: dir}
	}
	if version > currentSupportedVersion {
		return nil, &LoadError{Reason: ErrVersionTooNew.Reason, Path: dir}
	}

	programs, contentHash, err := loadPrograms(filepath.Join(dir, defaultOr(manifest.ProgramsFile, "programs.json")))
	if err != nil {
		return nil, err
	}

	atlas, spriteHash, err := loadAtlas(dir, manifest)
	if err != nil {
		return nil, err
	}

	actions, actionHash, err := loadActions(filepath.Join(dir, defaultOr(manifest.ActionsFile, "actions.json")), programs)
	if err != nil {
		return nil, err
	}

	behaviours, rootPool, fallB, dragB, thrownB, dismissA, behaviourHash, err :=
		loadBehaviours(filepath.Join(dir, defaultOr(manifest.BehavioursFile, "behaviours.json")), programs, actions)
	if err != nil {
		return nil, err
	}

	var exprs []*Expression
	for _, e := range programs {
		exprs = append(exprs, e)
	}

	p := &Prototype{
		Name:            manifest.Name,
		DisplayName:     manifest.DisplayName,
		Path:            dir,
		ContentHash:     contentHash ^ spriteHash ^ actionHash ^ behaviourHash,
		Actions:         actions,
		Behaviours:      behaviours,
		Expressions:     exprs,
		RootPool:        rootPool,
		AtlasData:       atlas,
		FallBehaviour:   fallB,
		DragBehaviour:   dragB,
		ThrownBehaviour: thrownB,
		DismissAction:   dismissA,
		Affordances:     NewAffordanceRegistry(),
	}
	return p, nil
}

func defaultOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// loadPrograms compiles programs.json's bytecode entries into Expressions,
// resolving each program's named globals/functions against the fixed host
// tables (vm_hostfuncs.go) once, at load time.
func loadPrograms(path string) (map[uint16]*Expression, uint64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, &LoadError{Reason: ErrProgramsMissing.Reason, Path: path}
	}
	var entries []programEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, &LoadError{Reason: ErrProgramsInvalid.Reason, Path: path}
	}
	out := make(map[uint16]*Expression, len(entries))
	var hash uint64
	for _, e := range entries {
		if len(e.Bytecode) > vmMaxBytecodeBytes || len(e.Bytecode)%2 != 0 {
			return nil, 0, &LoadError{Reason: ErrProgramsInvalid.Reason, Path: path}
		}
		globals := make([]GlobalGetter, 0, len(e.Globals))
		for _, name := range e.Globals {
			g, ok := globalRegistry[name]
			if !ok {
				return nil, 0, &LoadError{Reason: ErrProgramsInvalid.Reason, Path: path}
			}
			globals = append(globals, g)
		}
		funcs := make([]HostFunc, 0, len(e.Functions))
		for _, name := range e.Functions {
			f, ok := functionRegistry[name]
			if !ok {
				return nil, 0, &LoadError{Reason: ErrProgramsInvalid.Reason, Path: path}
			}
			funcs = append(funcs, f)
		}
		out[e.ID] = &Expression{
			ID:           e.ID,
			Bytecode:     e.Bytecode,
			LocalSlots:   e.Locals,
			Globals:      globals,
			Functions:    funcs,
			EvaluateOnce: e.EvaluateOnce,
		}
		hash = hash*31 + uint64(e.ID) + uint64(len(e.Bytecode))
	}
	return out, hash, nil
}

func resolveExpr(programs map[uint16]*Expression, id *uint16) *Expression {
	if id == nil {
		return nil
	}
	return programs[*id]
}

// loadActions compiles actions.json into a flat []*Action and a content
// hash, in two passes so forward references between actions (an
// ActionSequence naming a later sibling) resolve correctly.
func loadActions(path string, programs map[uint16]*Expression) ([]*Action, uint64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, &LoadError{Reason: ErrActionsMissing.Reason, Path: path}
	}
	var entries []actionJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, &LoadError{Reason: ErrActionsInvalid.Reason, Path: path}
	}

	byName := make(map[string]*Action, len(entries))
	actions := make([]*Action, 0, len(entries))
	for _, e := range entries {
		kind, ok := actionKindByName[e.Kind]
		if !ok {
			return nil, 0, &LoadError{Reason: ErrActionsInvalid.Reason, Path: path}
		}
		a := &Action{
			Name:             e.Name,
			Kind:             kind,
			SeekerBehaviour:  e.SeekerBehaviour,
			TargetBehaviour:  e.TargetBehaviour,
			TargetLook:       e.TargetLook,
			SelectBehaviours: e.SelectBehaviours,
			BornBehaviour:    e.BornBehaviour,
			AffordanceTag:    e.AffordanceTag,
			TransformTarget:  e.TransformTarget,
			BornMascot:       e.BornMascot,
			Loop:             e.Loop,
			Condition:        resolveExpr(programs, e.Condition),
			DurationLimit:    resolveExpr(programs, e.DurationLimit),
			VelocityParam:    resolveExpr(programs, e.VelocityParam),
			BornX:            resolveExpr(programs, e.BornX),
			BornY:            resolveExpr(programs, e.BornY),
		}
		if kind == ActionEmbedded {
			ek, ok := embeddedKindByName[e.Embedded]
			if !ok {
				return nil, 0, &LoadError{Reason: ErrActionsInvalid.Reason, Path: path}
			}
			a.Embedded = ek
		}
		if e.RequiredBorder != "" {
			bt, ok := borderByName[e.RequiredBorder]
			if !ok {
				return nil, 0, &LoadError{Reason: ErrActionsInvalid.Reason, Path: path}
			}
			a.RequiredBorder = bt
		}
		for slotStr, exprID := range e.LocalOverrides {
			slot, err := strconv.Atoi(slotStr)
			if err != nil || slot < 0 || slot >= maxLocalVariables {
				return nil, 0, &LoadError{Reason: ErrActionsInvalid.Reason, Path: path}
			}
			id := exprID
			a.LocalOverrides[slot] = resolveExpr(programs, &id)
		}
		byName[e.Name] = a
		actions = append(actions, a)
	}

	var hash uint64
	for i, e := range entries {
		a := actions[i]
		for _, ci := range e.Content {
			item := ContentItem{Condition: resolveExpr(programs, ci.Condition)}
			if ci.Animation != nil {
				item.Animation = buildAnimation(ci.Animation)
			}
			if ci.ActionRef != "" {
				target, ok := byName[ci.ActionRef]
				if !ok {
					return nil, 0, &LoadError{Reason: ErrActionsInvalid.Reason, Path: path}
				}
				item.ActionRef = &ActionRef{Action: target, TargetLook: ci.TargetLook}
			}
			a.Content = append(a.Content, item)
		}
		hash = hash*31 + uint64(len(e.Content))
	}
	return actions, hash, nil
}

func buildAnimation(aj *animationJSON) *Animation {
	anim := &Animation{Name: aj.Name}
	for _, pj := range aj.Poses {
		pose := Pose{
			SpriteIndex: pj.SpriteIndex,
			AnchorX:     pj.AnchorX,
			AnchorY:     pj.AnchorY,
			VelocityX:   pj.VelocityX,
			VelocityY:   pj.VelocityY,
			Duration:    pj.Duration,
		}
		for _, hj := range pj.Hotspots {
			shape := hotspotShapeByName[hj.Shape]
			pose.Hotspots = append(pose.Hotspots, Hotspot{
				Shape: shape, X: hj.X, Y: hj.Y, W: hj.W, H: hj.H, Behaviour: hj.Behaviour,
			})
		}
		anim.Poses = append(anim.Poses, pose)
	}
	return anim
}

// loadBehaviours compiles behaviours.json, resolving action/behaviour name
// references in a second pass once every named Behaviour exists.
func loadBehaviours(path string, programs map[uint16]*Expression, actions []*Action) (
	[]*Behaviour, []NextBehaviourRef, *Behaviour, *Behaviour, *Behaviour, *Action, uint64, error) {

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, nil, nil, nil, 0, &LoadError{Reason: ErrBehavioursMissing.Reason, Path: path}
	}
	var file behavioursFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, nil, nil, nil, nil, nil, 0, &LoadError{Reason: ErrBehavioursInvalid.Reason, Path: path}
	}

	actionsByName := make(map[string]*Action, len(actions))
	for _, a := range actions {
		actionsByName[a.Name] = a
	}

	byName := make(map[string]*Behaviour, len(file.Behaviours))
	behaviours := make([]*Behaviour, 0, len(file.Behaviours))
	for _, e := range file.Behaviours {
		b := &Behaviour{
			Name:          e.Name,
			Hidden:        e.Hidden,
			IsCondition:   e.IsCondition,
			Condition:     resolveExpr(programs, e.Condition),
			AddBehaviours: e.AddBehaviours,
			Frequency:     e.Frequency,
		}
		if e.LinkedAction != "" {
			action, ok := actionsByName[e.LinkedAction]
			if !ok {
				return nil, nil, nil, nil, nil, nil, 0, &LoadError{Reason: ErrBehavioursInvalid.Reason, Path: path}
			}
			b.LinkedAction = action
		}
		byName[e.Name] = b
		behaviours = append(behaviours, b)
	}

	resolveNext := func(refs []nextBehaviourJSON) ([]NextBehaviourRef, error) {
		out := make([]NextBehaviourRef, 0, len(refs))
		for _, r := range refs {
			target, ok := byName[r.Behaviour]
			if !ok {
				return nil, fmt.Errorf("unknown behaviour %q", r.Behaviour)
			}
			out = append(out, NextBehaviourRef{
				Behaviour: target,
				Frequency: r.Frequency,
				Condition: resolveExpr(programs, r.Condition),
			})
		}
		return out, nil
	}

	var hash uint64
	for i, e := range file.Behaviours {
		next, err := resolveNext(e.Next)
		if err != nil {
			return nil, nil, nil, nil, nil, nil, 0, &LoadError{Reason: ErrBehavioursInvalid.Reason, Path: path}
		}
		behaviours[i].Next = next
		hash = hash*31 + uint64(len(e.Next))
	}

	rootPool, err := resolveNext(file.RootPool)
	if err != nil {
		return nil, nil, nil, nil, nil, nil, 0, &LoadError{Reason: ErrBehavioursInvalid.Reason, Path: path}
	}

	var fallB, dragB, thrownB *Behaviour
	if file.FallBehaviour != "" {
		fallB = byName[file.FallBehaviour]
	}
	if file.DragBehaviour != "" {
		dragB = byName[file.DragBehaviour]
	}
	if file.ThrownBehaviour != "" {
		thrownB = byName[file.ThrownBehaviour]
	}
	var dismissA *Action
	if file.DismissAction != "" {
		dismissA = actionsByName[file.DismissAction]
	}

	return behaviours, rootPool, fallB, dragB, thrownB, dismissA, hash, nil
}

// loadAtlas decodes the package's sprite PNGs and builds the mirrored
// left/right SpritePair set an Agent's Pose.SpriteIndex indexes into.
// Mirroring happens once here rather than per-draw, following the
// original's pre-flip convention for looking_direction (original_source's
// mascot rendering selects a pre-mirrored image rather than flipping a
// transform at draw time).
func loadAtlas(dir string, manifest manifestFile) (*Atlas, uint64, error) {
	assetsDir := filepath.Join(dir, defaultOr(manifest.AssetsDir, "assets"))
	atlas := &Atlas{Sprites: make([]SpritePair, 0, len(manifest.Sprites))}
	var hash uint64
	for _, sm := range manifest.Sprites {
		imgPath := filepath.Join(assetsDir, sm.File)
		f, err := os.Open(imgPath)
		if err != nil {
			return nil, 0, &LoadError{Reason: ErrAssetsFailed.Reason, Path: imgPath}
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, 0, &LoadError{Reason: ErrAssetsFailed.Reason, Path: imgPath}
		}
		left := ebiten.NewImageFromImage(img)
		right := flipHorizontal(left)

		region := spriteRegion(sm.Region, left.Bounds().Dx(), left.Bounds().Dy())
		atlas.Sprites = append(atlas.Sprites, SpritePair{Left: left, Right: right, Region: region})
		hash = hash*31 + uint64(len(sm.File))
	}
	return atlas, hash, nil
}

func spriteRegion(r *rectJSON, w, h int) Rect {
	if r == nil {
		return Rect{X: 0, Y: 0, Width: float64(w), Height: float64(h)}
	}
	return Rect{X: r.X, Y: r.Y, Width: r.W, Height: r.H}
}

func flipHorizontal(src *ebiten.Image) *ebiten.Image {
	b := src.Bounds()
	dst := ebiten.NewImage(b.Dx(), b.Dy())
	var opts ebiten.DrawImageOptions
	opts.GeoM.Scale(-1, 1)
	opts.GeoM.Translate(float64(b.Dx()), 0)
	dst.DrawImage(src, &opts)
	return dst
}
