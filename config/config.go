// Package config parses and hot-reloads the daemon's line-oriented
// key=value configuration file (spec.md §6 "Configuration file format").
// The grammar is simple enough (no nesting, no quoting rules beyond a
// trailing comment marker) that no general-purpose format library fits it
// better than bufio.Scanner; see /root/module/DESIGN.md for the full
// justification. File-watching is layered on top with fsnotify, the
// Go-native equivalent of the original's manual reload call
// (original_source/src/config.c).
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// IEThrowPolicy selects how a thrown window's trajectory is constrained
// (spec.md §6 configuration surface ie_throw_policy enum).
type IEThrowPolicy int32

const (
	IEThrowPolicyNone IEThrowPolicy = iota
	IEThrowPolicyStop
	IEThrowPolicyBounce
	IEThrowPolicyLoop
	IEThrowPolicyClose
	IEThrowPolicyMinimize
	IEThrowPolicyKeepOffscreen
)

// OverlayLayer selects the compositor layer-shell layer an overlay surface
// requests (mirrors original_source/src/layer_surface.h LAYER_TYPE_*).
type OverlayLayer int32

const (
	OverlayLayerBackground OverlayLayer = iota
	OverlayLayerBottom
	OverlayLayerTop
	OverlayLayerOverlay
)

// RuntimeConfig is the full set of daemon-wide tunables (spec.md §6
// "Configuration keys" table, restored in full from
// original_source/src/config.c's `struct config`).
type RuntimeConfig struct {
	Breeding                bool
	Dragging                bool
	IEInteractions          bool
	IEThrowing              bool
	CursorData              bool
	AllowDismissAnimations  bool
	PerMascotInteractions   bool
	TabletsEnabled          bool
	AllowThrowingMultihead  bool
	AllowDraggingMultihead  bool
	UnifiedOutputs          bool

	MascotLimit            uint32
	IEThrowPolicy          IEThrowPolicy
	OverlayLayer           OverlayLayer
	InterpolationFramerate int32

	MascotOpacity float64
	MascotScale   float64

	PointerLeftButton   int32
	PointerRightButton  int32
	PointerMiddleButton int32

	OnToolPen      int32
	OnToolEraser   int32
	OnToolBrush    int32
	OnToolPencil   int32
	OnToolAirbrush int32
	OnToolFinger   int32
	OnToolLens     int32
	OnToolMouse    int32
	OnToolButton1  int32
	OnToolButton2  int32
	OnToolButton3  int32

	PrototypesLocation string
	PluginsLocation    string
	SocketLocation     string
}

// Default returns the built-in defaults (original_source/src/config.c's
// zero-value struct plus its config_get_* fallback constants).
func Default() *RuntimeConfig {
	return &RuntimeConfig{
		Breeding:               true,
		Dragging:               true,
		IEInteractions:         true,
		IEThrowing:             false,
		CursorData:             true,
		AllowDismissAnimations: true,
		PerMascotInteractions:  true,
		TabletsEnabled:         true,
		AllowDraggingMultihead: true,
		AllowThrowingMultihead: false,
		MascotLimit:            512,
		IEThrowPolicy:          IEThrowPolicyLoop,
		OverlayLayer:           OverlayLayerOverlay,
		InterpolationFramerate: 0,
		MascotOpacity:          1.0,
		MascotScale:            1.0,
		PointerLeftButton:      1,
		PointerRightButton:     2,
		PointerMiddleButton:    3,
		PrototypesLocation:     "~/.local/share/mascotd/prototypes",
		PluginsLocation:        "~/.local/share/mascotd/plugins",
		SocketLocation:         "~/.local/share/mascotd/mascotd.sock",
	}
}

var keySetters = map[string]func(*RuntimeConfig, string) error{
	"breeding":                   setBool(func(c *RuntimeConfig) *bool { return &c.Breeding }),
	"dragging":                   setBool(func(c *RuntimeConfig) *bool { return &c.Dragging }),
	"ie_interactions":            setBool(func(c *RuntimeConfig) *bool { return &c.IEInteractions }),
	"ie_throwing":                setBool(func(c *RuntimeConfig) *bool { return &c.IEThrowing }),
	"cursor_data":                setBool(func(c *RuntimeConfig) *bool { return &c.CursorData }),
	"allow_dismiss_animations":   setBool(func(c *RuntimeConfig) *bool { return &c.AllowDismissAnimations }),
	"per_mascot_interactions":    setBool(func(c *RuntimeConfig) *bool { return &c.PerMascotInteractions }),
	"tablets_enabled":            setBool(func(c *RuntimeConfig) *bool { return &c.TabletsEnabled }),
	"allow_throwing_multihead":   setBool(func(c *RuntimeConfig) *bool { return &c.AllowThrowingMultihead }),
	"allow_dragging_multihead":   setBool(func(c *RuntimeConfig) *bool { return &c.AllowDraggingMultihead }),
	"unified_outputs":            setBool(func(c *RuntimeConfig) *bool { return &c.UnifiedOutputs }),
	"mascot_limit":               setUint32(func(c *RuntimeConfig) *uint32 { return &c.MascotLimit }),
	"ie_throw_policy":            setInt32(func(c *RuntimeConfig) *int32 { return (*int32)(&c.IEThrowPolicy) }, 0, 6),
	"overlay_layer":              setInt32(func(c *RuntimeConfig) *int32 { return (*int32)(&c.OverlayLayer) }, 0, 3),
	"interpolation_framerate":    setInt32(func(c *RuntimeConfig) *int32 { return &c.InterpolationFramerate }, 0, 1000),
	"mascot_opacity":             setFloat(func(c *RuntimeConfig) *float64 { return &c.MascotOpacity }, 0, 1),
	"mascot_scale":                setFloat(func(c *RuntimeConfig) *float64 { return &c.MascotScale }, 0.25, 2.0),
	"pointer_left_button":        setInt32(func(c *RuntimeConfig) *int32 { return &c.PointerLeftButton }, 0, 255),
	"pointer_right_button":       setInt32(func(c *RuntimeConfig) *int32 { return &c.PointerRightButton }, 0, 255),
	"pointer_middle_button":      setInt32(func(c *RuntimeConfig) *int32 { return &c.PointerMiddleButton }, 0, 255),
	"on_tool_pen":                setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolPen }, 0, 255),
	"on_tool_eraser":             setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolEraser }, 0, 255),
	"on_tool_brush":              setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolBrush }, 0, 255),
	"on_tool_pencil":             setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolPencil }, 0, 255),
	"on_tool_airbrush":           setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolAirbrush }, 0, 255),
	"on_tool_finger":             setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolFinger }, 0, 255),
	"on_tool_lens":               setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolLens }, 0, 255),
	"on_tool_mouse":              setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolMouse }, 0, 255),
	"on_tool_button1":            setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolButton1 }, 0, 255),
	"on_tool_button2":            setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolButton2 }, 0, 255),
	"on_tool_button3":            setInt32(func(c *RuntimeConfig) *int32 { return &c.OnToolButton3 }, 0, 255),
	"prototypes_location":       setString(func(c *RuntimeConfig) *string { return &c.PrototypesLocation }),
	"plugins_location":          setString(func(c *RuntimeConfig) *string { return &c.PluginsLocation }),
	"socket_location":           setString(func(c *RuntimeConfig) *string { return &c.SocketLocation }),
}

func setBool(field func(*RuntimeConfig) *bool) func(*RuntimeConfig, string) error {
	return func(c *RuntimeConfig, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("not a bool: %q", v)
		}
		*field(c) = b
		return nil
	}
}

func setString(field func(*RuntimeConfig) *string) func(*RuntimeConfig, string) error {
	return func(c *RuntimeConfig, v string) error {
		*field(c) = strings.TrimSpace(v)
		return nil
	}
}

func setUint32(field func(*RuntimeConfig) *uint32) func(*RuntimeConfig, string) error {
	return func(c *RuntimeConfig, v string) error {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("not a uint32: %q", v)
		}
		*field(c) = uint32(n)
		return nil
	}
}

func setInt32(field func(*RuntimeConfig) *int32, min, max int32) func(*RuntimeConfig, string) error {
	return func(c *RuntimeConfig, v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("not an int32: %q", v)
		}
		clamped := int32(n)
		if clamped < min {
			clamped = min
		}
		if clamped > max {
			clamped = max
		}
		*field(c) = clamped
		return nil
	}
}

func setFloat(field func(*RuntimeConfig) *float64, min, max float64) func(*RuntimeConfig, string) error {
	return func(c *RuntimeConfig, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("not a float: %q", v)
		}
		if f < min {
			f = min
		}
		if f > max {
			f = max
		}
		*field(c) = f
		return nil
	}
}

// ParseError names the line and key that failed to parse (spec.md §6 load
// error taxonomy).
type ParseError struct {
	Line int
	Key  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config line %d (key %q): %v", e.Line, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads key=value pairs from r, starting from Default() and applying
// recognized keys on top of it. Blank lines and lines starting with '#'
// are ignored. Unknown keys are skipped with a logged warning rather than
// failing the whole file, matching config.c's tolerant key lookup.
func Parse(r *bufio.Scanner) (*RuntimeConfig, error) {
	cfg := Default()
	lineNo := 0
	for r.Scan() {
		lineNo++
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return nil, &ParseError{Line: lineNo, Err: fmt.Errorf("missing '='")}
		}
		key := strings.TrimSpace(line[:eq])
		value := line[eq+1:]
		if hash := strings.IndexByte(value, '#'); hash >= 0 {
			value = value[:hash]
		}
		setter, ok := keySetters[key]
		if !ok {
			logrus.WithField("key", key).Warn("unrecognized config key")
			continue
		}
		if err := setter(cfg, value); err != nil {
			return nil, &ParseError{Line: lineNo, Key: key, Err: err}
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*RuntimeConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(bufio.NewScanner(f))
}

// Watcher watches a config file for changes and delivers freshly parsed
// RuntimeConfigs on Changes, debounced by fsnotify's own coalescing of
// rapid write events. This is the Go-native rendition of config.c's
// reload entry point.
type Watcher struct {
	mu      sync.Mutex
	path    string
	current *RuntimeConfig
	watcher *fsnotify.Watcher
	Changes chan *RuntimeConfig
	errs    chan error
}

// NewWatcher loads path once and starts watching it for writes.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		path:    path,
		current: cfg,
		watcher: fw,
		Changes: make(chan *RuntimeConfig, 1),
		errs:    make(chan error, 1),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logrus.WithError(err).Warn("config reload failed, keeping previous config")
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
			select {
			case w.Changes <- cfg:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("config watcher error")
		}
	}
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() *RuntimeConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
