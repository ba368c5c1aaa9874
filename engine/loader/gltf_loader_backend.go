package loader

import (
	"cmp"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// gltfLoaderBackend imports .gltf and .glb documents through qmuntal/gltf.
type gltfLoaderBackend struct{}

var _ loaderBackend = &gltfLoaderBackend{}

func newGLTFLoaderBackend() loaderBackend {
	return &gltfLoaderBackend{}
}

func (b *gltfLoaderBackend) Import(path string) (*ImportedScene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	return importDocument(doc, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

func (b *gltfLoaderBackend) ImportReader(name string, r io.Reader) (*ImportedScene, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf: %w", err)
	}
	return importDocument(doc, name)
}

// importDocument walks the node hierarchy of the document's scene and places one mesh per
// node that references a mesh with position data.
func importDocument(doc *gltf.Document, name string) (*ImportedScene, error) {
	out := &ImportedScene{Name: name}

	var roots []int
	switch {
	case doc.Scene != nil && *doc.Scene < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		// Without scenes every node that is nobody's child is a root.
		child := make(map[int]bool)
		for _, n := range doc.Nodes {
			for _, c := range n.Children {
				child[c] = true
			}
		}
		for i := range doc.Nodes {
			if !child[i] {
				roots = append(roots, i)
			}
		}
	}

	visited := make(map[int]bool, len(doc.Nodes))
	var walk func(idx int, parent mgl32.Mat4) error
	walk = func(idx int, parent mgl32.Mat4) error {
		if idx < 0 || idx >= len(doc.Nodes) {
			return fmt.Errorf("node %d out of range", idx)
		}
		if visited[idx] {
			return fmt.Errorf("node %d reached twice", idx)
		}
		visited[idx] = true

		n := doc.Nodes[idx]
		world := parent.Mul4(nodeTransform(n))
		if n.Mesh != nil {
			mesh, ok, err := importMesh(doc, *n.Mesh)
			if err != nil {
				return fmt.Errorf("node %d: %w", idx, err)
			}
			if ok {
				mesh.Name = cmp.Or(n.Name, mesh.Name, fmt.Sprintf("%s_node%d", name, idx))
				mesh.LocalToWorld = world
				out.Meshes = append(out.Meshes, mesh)
			}
		}
		for _, c := range n.Children {
			if err := walk(c, world); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := walk(r, mgl32.Ident4()); err != nil {
			return nil, err
		}
	}

	if len(out.Meshes) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoGeometry)
	}
	return out, nil
}

// importMesh reads the local bounds of every triangle primitive of a mesh.
// ok is false when no primitive carries positions.
func importMesh(doc *gltf.Document, meshIndex int) (ImportedMesh, bool, error) {
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return ImportedMesh{}, false, fmt.Errorf("mesh %d out of range", meshIndex)
	}
	m := doc.Meshes[meshIndex]
	mesh := ImportedMesh{Name: m.Name}

	var lo, hi mgl32.Vec3
	for i, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != gltf.PrimitiveTriangleStrip && prim.Mode != gltf.PrimitiveTriangleFan {
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		pmin, pmax, err := positionBounds(doc, posIdx)
		if err != nil {
			return ImportedMesh{}, false, fmt.Errorf("mesh %q primitive %d: %w", m.Name, i, err)
		}
		if len(mesh.Batches) == 0 {
			lo, hi = pmin, pmax
		} else {
			lo, hi = common.MinVec3(lo, pmin), common.MaxVec3(hi, pmax)
		}

		translucent := false
		if prim.Material != nil && *prim.Material < len(doc.Materials) {
			translucent = doc.Materials[*prim.Material].AlphaMode == gltf.AlphaBlend
		}
		mesh.Batches = append(mesh.Batches, primitive.DrawBatch{
			CastShadow:     true,
			ReceiveShadow:  true,
			UseForMaterial: true,
			UseAsOccluder:  !translucent,
			Translucent:    translucent,
		})
	}
	if len(mesh.Batches) == 0 {
		return ImportedMesh{}, false, nil
	}
	mesh.LocalBounds = common.NewBoxFromMinMax(lo, hi)
	return mesh, true, nil
}

// positionBounds returns the min and max of a POSITION accessor. The accessor's declared
// min/max are used when present; otherwise the positions are read.
func positionBounds(doc *gltf.Document, accessorIdx int) (mgl32.Vec3, mgl32.Vec3, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return mgl32.Vec3{}, mgl32.Vec3{}, fmt.Errorf("accessor %d out of range", accessorIdx)
	}
	acr := doc.Accessors[accessorIdx]
	if acr.Type != gltf.AccessorVec3 {
		return mgl32.Vec3{}, mgl32.Vec3{}, fmt.Errorf("expected VEC3 positions, got %v", acr.Type)
	}
	if len(acr.Min) == 3 && len(acr.Max) == 3 {
		return mgl32.Vec3{float32(acr.Min[0]), float32(acr.Min[1]), float32(acr.Min[2])},
			mgl32.Vec3{float32(acr.Max[0]), float32(acr.Max[1]), float32(acr.Max[2])}, nil
	}

	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return mgl32.Vec3{}, mgl32.Vec3{}, fmt.Errorf("read positions: %w", err)
	}
	if len(positions) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}, fmt.Errorf("accessor %d: %w", accessorIdx, ErrNoGeometry)
	}
	lo, hi := mgl32.Vec3(positions[0]), mgl32.Vec3(positions[0])
	for _, p := range positions[1:] {
		lo = common.MinVec3(lo, p)
		hi = common.MaxVec3(hi, p)
	}
	return lo, hi, nil
}

// nodeTransform returns the node's matrix, or its composed translation, rotation and scale
// when no matrix is set.
func nodeTransform(n *gltf.Node) mgl32.Mat4 {
	var m mgl32.Mat4
	for i, v := range n.MatrixOrDefault() {
		m[i] = float32(v)
	}
	if m != mgl32.Ident4() {
		return m
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	rot := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(rot.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}
