package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/go-gl/mathgl/mgl32"
)

// ImportedMesh is one placed mesh of an imported scene.
type ImportedMesh struct {
	Name string
	// LocalBounds encloses the positions of every draw batch in mesh space.
	LocalBounds common.Box
	// LocalToWorld is the composed transform of the node the mesh hangs off.
	LocalToWorld mgl32.Mat4
	// Batches holds one draw batch per mesh primitive.
	Batches []primitive.DrawBatch
}

// ImportedScene is the geometry of one file, independent of any scene it is added to.
type ImportedScene struct {
	Name   string
	Meshes []ImportedMesh
}

// loaderBackend reads one file format. Concrete implementations (e.g., gltfLoaderBackend)
// handle format-specific details.
type loaderBackend interface {
	// Import reads the file at path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *ImportedScene: the imported geometry
	//   - error: error if loading fails
	Import(path string) (*ImportedScene, error)

	// ImportReader reads a self-contained document from a stream.
	//
	// Parameters:
	//   - name: the name given to the imported scene
	//   - r: the reader providing the document
	//
	// Returns:
	//   - *ImportedScene: the imported geometry
	//   - error: error if loading fails
	ImportReader(name string, r io.Reader) (*ImportedScene, error)
}
