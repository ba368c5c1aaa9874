package loader

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoGeometry is returned when a file holds no mesh with position data.
	ErrNoGeometry = errors.New("loader: no geometry")

	// ErrUnsupportedFormat is returned for file extensions no backend reads.
	ErrUnsupportedFormat = errors.New("loader: unsupported format")
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	cache   map[string]*ImportedScene
	backend loaderBackend
	logger  *log.Entry

	mobility common.Mobility
	flags    primitive.Flags
	channels uint8
	drawMin  float32
	drawMax  float32
}

// Loader imports model files into primitives a scene can register. Imported geometry is
// cached by path; every call creates fresh proxies.
type Loader interface {
	// Load imports a .gltf or .glb file and returns one proxy per placed mesh.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - []primitive.Proxy: the proxies, in node order
	//   - error: ErrUnsupportedFormat, ErrNoGeometry or a wrapped read error
	Load(path string) ([]primitive.Proxy, error)

	// LoadReader imports a self-contained glTF document from a stream and caches it by name.
	//
	// Parameters:
	//   - name: the cache key for the document
	//   - r: the reader providing the document
	//
	// Returns:
	//   - []primitive.Proxy: the proxies, in node order
	//   - error: ErrNoGeometry or a wrapped decode error
	LoadReader(name string, r io.Reader) ([]primitive.Proxy, error)

	// Get retrieves cached geometry by path or name.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - *ImportedScene: the cached geometry
	//   - bool: whether it was cached
	Get(name string) (*ImportedScene, bool)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the options applied.
//
// Parameters:
//   - options: functional options applied to the loader and the proxies it creates
//
// Returns:
//   - Loader: the loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		cache:    make(map[string]*ImportedScene),
		backend:  newGLTFLoaderBackend(),
		logger:   log.WithField("component", "loader"),
		mobility: common.MobilityStatic,
		flags:    primitive.DefaultFlags,
		channels: 1,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// LoadGLTF imports a .gltf or .glb file with a one-off loader.
//
// Parameters:
//   - path: the file path
//   - options: functional options applied to the proxies
//
// Returns:
//   - []primitive.Proxy: one proxy per placed mesh
//   - error: error if loading fails
func LoadGLTF(path string, options ...LoaderBuilderOption) ([]primitive.Proxy, error) {
	return NewLoader(options...).Load(path)
}

func (l *loader) Load(path string) ([]primitive.Proxy, error) {
	if sc, ok := l.Get(path); ok {
		return l.instantiate(sc), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}

	sc, err := l.backend.Import(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	l.store(path, sc)
	return l.instantiate(sc), nil
}

func (l *loader) LoadReader(name string, r io.Reader) ([]primitive.Proxy, error) {
	if sc, ok := l.Get(name); ok {
		return l.instantiate(sc), nil
	}
	sc, err := l.backend.ImportReader(name, r)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	l.store(name, sc)
	return l.instantiate(sc), nil
}

func (l *loader) Get(name string) (*ImportedScene, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sc, ok := l.cache[name]
	return sc, ok
}

func (l *loader) store(name string, sc *ImportedScene) {
	l.mu.Lock()
	l.cache[name] = sc
	l.mu.Unlock()
	l.logger.WithFields(log.Fields{"name": name, "meshes": len(sc.Meshes)}).Debug("model imported")
}

// instantiate creates fresh proxies for cached geometry.
func (l *loader) instantiate(sc *ImportedScene) []primitive.Proxy {
	out := make([]primitive.Proxy, 0, len(sc.Meshes))
	for _, m := range sc.Meshes {
		out = append(out, primitive.NewPrimitive(
			primitive.WithName(m.Name),
			primitive.WithBox(m.LocalBounds.Origin, m.LocalBounds.Extent),
			primitive.WithLocalToWorld(m.LocalToWorld),
			primitive.WithDrawBatches(m.Batches...),
			primitive.WithMobility(l.mobility),
			primitive.WithFlags(l.flags),
			primitive.WithLightingChannels(l.channels),
			primitive.WithDrawDistance(l.drawMin, l.drawMax),
		))
	}
	return out
}
