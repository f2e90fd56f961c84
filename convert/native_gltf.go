package convert

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crisslavik/xStage/scene"
	"github.com/crisslavik/xStage/types"
)

// nativeGLTF is the in-process glTF/GLB format plugin. It reads the JSON
// scene graph, decodes position/index accessors from embedded or sibling
// binary buffers, and lifts PBR material bags for the extractor.
type nativeGLTF struct{}

func newNativeGLTF() *nativeGLTF { return &nativeGLTF{} }

func (m *nativeGLTF) ID() string             { return "native:gltf" }
func (m *nativeGLTF) Kind() types.MethodKind { return types.MethodNative }

func (m *nativeGLTF) Supports(format types.SourceFormat) bool {
	return format == types.FormatGLTF || format == types.FormatGLB
}

// Minimal glTF 2.0 document structure, limited to what the plugin reads.
type gltfDoc struct {
	Scenes []struct {
		Nodes []int `json:"nodes"`
	} `json:"scenes"`
	Scene int `json:"scene"`
	Nodes []struct {
		Name     string `json:"name"`
		Mesh     *int   `json:"mesh"`
		Children []int  `json:"children"`
	} `json:"nodes"`
	Meshes []struct {
		Name       string `json:"name"`
		Primitives []struct {
			Attributes map[string]int `json:"attributes"`
			Indices    *int           `json:"indices"`
			Material   *int           `json:"material"`
		} `json:"primitives"`
	} `json:"meshes"`
	Materials []map[string]any `json:"materials"`
	Textures  []struct {
		Source *int `json:"source"`
	} `json:"textures"`
	Images []struct {
		URI string `json:"uri"`
	} `json:"images"`
	Accessors []struct {
		BufferView    *int      `json:"bufferView"`
		ByteOffset    int       `json:"byteOffset"`
		ComponentType int       `json:"componentType"`
		Count         int       `json:"count"`
		Type          string    `json:"type"`
		Min           []float64 `json:"min"`
		Max           []float64 `json:"max"`
	} `json:"accessors"`
	BufferViews []struct {
		Buffer     int `json:"buffer"`
		ByteOffset int `json:"byteOffset"`
		ByteLength int `json:"byteLength"`
		ByteStride int `json:"byteStride"`
	} `json:"bufferViews"`
	Buffers []struct {
		URI        string `json:"uri"`
		ByteLength int    `json:"byteLength"`
	} `json:"buffers"`
	Animations []struct {
		Samplers []struct {
			Input int `json:"input"`
		} `json:"samplers"`
	} `json:"animations"`
}

const (
	gltfComponentUShort = 5123
	gltfComponentUInt   = 5125
	gltfComponentFloat  = 5126
)

func (m *nativeGLTF) Convert(ctx context.Context, job *types.ConversionJob, tmpPath string) (*GeometryOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc gltfDoc
	var binChunk []byte
	data, err := os.ReadFile(job.SourcePath)
	if err != nil {
		return nil, types.NewError(types.ErrToolError, "read source").WithCause(err)
	}

	if job.Format == types.FormatGLB {
		jsonChunk, bin, err := splitGLB(data)
		if err != nil {
			return nil, types.NewError(types.ErrToolError, "parse glb container").WithCause(err)
		}
		data, binChunk = jsonChunk, bin
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, types.NewError(types.ErrToolError, "parse gltf json").WithCause(err)
	}

	loader := &gltfBufferLoader{doc: &doc, binChunk: binChunk, baseDir: filepath.Dir(job.SourcePath)}

	out := scene.NewDocument()
	out.ApplyJobOptions(job.Options)
	out.SourceComment = "converted from " + filepath.Base(job.SourcePath)

	info := SourceInfo{}
	sceneIdx := doc.Scene
	if sceneIdx < 0 || sceneIdx >= len(doc.Scenes) {
		sceneIdx = 0
	}
	if len(doc.Scenes) > 0 {
		visited := make(map[int]bool)
		for _, nodeIdx := range doc.Scenes[sceneIdx].Nodes {
			child, err := m.buildNode(&doc, loader, nodeIdx, &info, visited)
			if err != nil {
				return nil, err
			}
			if child != nil {
				out.Root.Children = append(out.Root.Children, child)
			}
		}
	}
	info.NodeCount = out.NodeCount()
	info.MeshCount = out.MeshCount()
	info.SampleTimes = m.sampleTimes(&doc)

	return &GeometryOutput{
		Doc:          out,
		Info:         info,
		RawMaterials: m.materialBags(&doc),
	}, nil
}

func (m *nativeGLTF) buildNode(doc *gltfDoc, loader *gltfBufferLoader, idx int, info *SourceInfo, visited map[int]bool) (*scene.Node, error) {
	if idx < 0 || idx >= len(doc.Nodes) {
		return nil, nil
	}
	// glTF node graphs are disjoint trees; a node reached twice is a cycle
	// or a shared subtree, both malformed.
	if visited[idx] {
		return nil, types.NewError(types.ErrToolError,
			fmt.Sprintf("node %d referenced more than once in scene graph", idx))
	}
	visited[idx] = true
	src := doc.Nodes[idx]
	name := src.Name
	if name == "" {
		name = fmt.Sprintf("Node_%d", idx)
	}
	node := &scene.Node{Name: name}

	if src.Mesh != nil && *src.Mesh >= 0 && *src.Mesh < len(doc.Meshes) {
		mesh, err := m.buildMesh(doc, loader, *src.Mesh)
		if err != nil {
			return nil, err
		}
		node.Mesh = mesh
	}
	for _, childIdx := range src.Children {
		child, err := m.buildNode(doc, loader, childIdx, info, visited)
		if err != nil {
			return nil, err
		}
		if child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node, nil
}

func (m *nativeGLTF) buildMesh(doc *gltfDoc, loader *gltfBufferLoader, idx int) (*scene.Mesh, error) {
	src := doc.Meshes[idx]
	mesh := &scene.Mesh{}

	for _, prim := range src.Primitives {
		posIdx, ok := prim.Attributes["POSITION"]
		if !ok {
			continue
		}
		points, err := loader.readVec3(posIdx)
		if err != nil {
			return nil, types.NewError(types.ErrToolError, "decode POSITION accessor").WithCause(err)
		}
		base := len(mesh.Points)
		mesh.Points = append(mesh.Points, points...)

		var indices []int
		if prim.Indices != nil {
			indices, err = loader.readIndices(*prim.Indices)
			if err != nil {
				return nil, types.NewError(types.ErrToolError, "decode index accessor").WithCause(err)
			}
		} else {
			indices = make([]int, len(points))
			for i := range indices {
				indices[i] = i
			}
		}
		for i := 0; i+2 < len(indices); i += 3 {
			mesh.FaceCounts = append(mesh.FaceCounts, 3)
			mesh.FaceIndices = append(mesh.FaceIndices,
				base+indices[i], base+indices[i+1], base+indices[i+2])
		}
		if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(doc.Materials) {
			mesh.MaterialName = gltfMaterialName(doc, *prim.Material)
		}
	}
	return mesh, nil
}

// sampleTimes derives distinct animation sample boundaries from the input
// accessors' declared min/max.
func (m *nativeGLTF) sampleTimes(doc *gltfDoc) []float64 {
	seen := map[float64]bool{}
	for _, anim := range doc.Animations {
		for _, sampler := range anim.Samplers {
			if sampler.Input < 0 || sampler.Input >= len(doc.Accessors) {
				continue
			}
			acc := doc.Accessors[sampler.Input]
			if len(acc.Min) > 0 {
				seen[acc.Min[0]] = true
			}
			if len(acc.Max) > 0 {
				seen[acc.Max[0]] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	times := make([]float64, 0, len(seen))
	for t := range seen {
		times = append(times, t)
	}
	sort.Float64s(times)
	return times
}

// materialBags lifts each glTF material into a schema-specific field bag,
// resolving texture indexes to image URIs.
func (m *nativeGLTF) materialBags(doc *gltfDoc) []RawMaterial {
	bags := make([]RawMaterial, 0, len(doc.Materials))
	for i, raw := range doc.Materials {
		bag := make(map[string]any, len(raw))
		for k, v := range raw {
			bag[k] = v
		}
		if pbr, ok := bag["pbrMetallicRoughness"].(map[string]any); ok {
			resolveTextureRef(doc, pbr, "baseColorTexture")
			resolveTextureRef(doc, pbr, "metallicRoughnessTexture")
		}
		resolveTextureRef(doc, bag, "normalTexture")
		resolveTextureRef(doc, bag, "emissiveTexture")
		resolveTextureRef(doc, bag, "occlusionTexture")
		bags = append(bags, RawMaterial{Name: gltfMaterialName(doc, i), Fields: bag})
	}
	return bags
}

// resolveTextureRef rewrites a {"index": n} texture reference into the
// referenced image URI, in place.
func resolveTextureRef(doc *gltfDoc, bag map[string]any, key string) {
	ref, ok := bag[key].(map[string]any)
	if !ok {
		return
	}
	idxF, ok := ref["index"].(float64)
	if !ok {
		return
	}
	idx := int(idxF)
	if idx < 0 || idx >= len(doc.Textures) {
		return
	}
	src := doc.Textures[idx].Source
	if src == nil || *src < 0 || *src >= len(doc.Images) {
		return
	}
	if uri := doc.Images[*src].URI; uri != "" && !strings.HasPrefix(uri, "data:") {
		bag[key] = uri
	}
}

func gltfMaterialName(doc *gltfDoc, idx int) string {
	if name, ok := doc.Materials[idx]["name"].(string); ok && name != "" {
		return name
	}
	return fmt.Sprintf("Material_%d", idx)
}

// gltfBufferLoader resolves accessors against embedded data URIs, the GLB
// binary chunk, or sibling .bin files.
type gltfBufferLoader struct {
	doc      *gltfDoc
	binChunk []byte
	baseDir  string
	cache    map[int][]byte
}

func (l *gltfBufferLoader) buffer(idx int) ([]byte, error) {
	if l.cache == nil {
		l.cache = map[int][]byte{}
	}
	if data, ok := l.cache[idx]; ok {
		return data, nil
	}
	if idx < 0 || idx >= len(l.doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", idx)
	}
	uri := l.doc.Buffers[idx].URI

	var data []byte
	var err error
	switch {
	case uri == "":
		data = l.binChunk
	case strings.HasPrefix(uri, "data:"):
		comma := strings.IndexByte(uri, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data uri in buffer %d", idx)
		}
		data, err = base64.StdEncoding.DecodeString(uri[comma+1:])
	default:
		data, err = os.ReadFile(filepath.Join(l.baseDir, filepath.FromSlash(uri)))
	}
	if err != nil {
		return nil, err
	}
	l.cache[idx] = data
	return data, nil
}

func (l *gltfBufferLoader) accessorBytes(idx int) ([]byte, int, error) {
	if idx < 0 || idx >= len(l.doc.Accessors) {
		return nil, 0, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := l.doc.Accessors[idx]
	if acc.BufferView == nil {
		return nil, 0, fmt.Errorf("accessor %d has no buffer view", idx)
	}
	if *acc.BufferView < 0 || *acc.BufferView >= len(l.doc.BufferViews) {
		return nil, 0, fmt.Errorf("accessor %d buffer view out of range", idx)
	}
	view := l.doc.BufferViews[*acc.BufferView]
	data, err := l.buffer(view.Buffer)
	if err != nil {
		return nil, 0, err
	}
	start := view.ByteOffset + acc.ByteOffset
	end := view.ByteOffset + view.ByteLength
	if acc.ByteOffset < 0 || view.ByteOffset < 0 || view.ByteLength < 0 ||
		start > end || end > len(data) {
		return nil, 0, fmt.Errorf("accessor %d exceeds buffer bounds", idx)
	}
	return data[start:end], acc.Count, nil
}

func (l *gltfBufferLoader) readVec3(idx int) ([][3]float64, error) {
	data, count, err := l.accessorBytes(idx)
	if err != nil {
		return nil, err
	}
	acc := l.doc.Accessors[idx]
	if acc.ComponentType != gltfComponentFloat || acc.Type != "VEC3" {
		return nil, fmt.Errorf("accessor %d is not float VEC3", idx)
	}
	if len(data) < count*12 {
		return nil, fmt.Errorf("accessor %d truncated", idx)
	}
	out := make([][3]float64, count)
	for i := 0; i < count; i++ {
		for c := 0; c < 3; c++ {
			bits := binary.LittleEndian.Uint32(data[i*12+c*4:])
			out[i][c] = float64(math.Float32frombits(bits))
		}
	}
	return out, nil
}

func (l *gltfBufferLoader) readIndices(idx int) ([]int, error) {
	data, count, err := l.accessorBytes(idx)
	if err != nil {
		return nil, err
	}
	acc := l.doc.Accessors[idx]
	out := make([]int, count)
	switch acc.ComponentType {
	case gltfComponentUShort:
		if len(data) < count*2 {
			return nil, fmt.Errorf("index accessor %d truncated", idx)
		}
		for i := 0; i < count; i++ {
			out[i] = int(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case gltfComponentUInt:
		if len(data) < count*4 {
			return nil, fmt.Errorf("index accessor %d truncated", idx)
		}
		for i := 0; i < count; i++ {
			out[i] = int(binary.LittleEndian.Uint32(data[i*4:]))
		}
	default:
		return nil, fmt.Errorf("index accessor %d has component type %d", idx, acc.ComponentType)
	}
	return out, nil
}

// splitGLB separates the JSON and binary chunks of a GLB container.
func splitGLB(data []byte) (jsonChunk, binChunk []byte, err error) {
	if len(data) < 12 || string(data[0:4]) != "glTF" {
		return nil, nil, fmt.Errorf("not a glb container")
	}
	total := int(binary.LittleEndian.Uint32(data[8:]))
	if total > len(data) {
		total = len(data)
	}
	offset := 12
	for offset+8 <= total {
		length := int(binary.LittleEndian.Uint32(data[offset:]))
		kind := string(data[offset+4 : offset+8])
		start := offset + 8
		if start+length > total {
			return nil, nil, fmt.Errorf("glb chunk exceeds container")
		}
		switch kind {
		case "JSON":
			jsonChunk = data[start : start+length]
		case "BIN\x00":
			binChunk = data[start : start+length]
		}
		offset = start + length
	}
	if jsonChunk == nil {
		return nil, nil, fmt.Errorf("glb container has no JSON chunk")
	}
	return jsonChunk, binChunk, nil
}
