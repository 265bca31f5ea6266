package assets

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirv(words ...uint32) []byte {
	b := make([]byte, 4*(len(words)+1))
	binary.LittleEndian.PutUint32(b, metadata.SpirvMagic)
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[4*(i+1):], w)
	}
	return b
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 1, color.NRGBA{B: 255, A: 255})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newTestManager(t *testing.T) (*AssetManager, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shaders", "builtin.vert.spv"), spirv(1, 2))
	writeFile(t, filepath.Join(root, "shaders", "builtin.frag.spv"), spirv(3))
	writeFile(t, filepath.Join(root, "shaders", "builtin.vert"), []byte("#version 450"))
	writePNG(t, filepath.Join(root, "textures", "checker.png"))

	am, err := NewAssetManager(root, false)
	require.NoError(t, err)
	require.NoError(t, am.Initialize())
	t.Cleanup(func() { _ = am.Shutdown() })
	return am, root
}

func TestIndexSkipsUnknownFiles(t *testing.T) {
	am, _ := newTestManager(t)
	assert.Equal(t, 3, am.Count())

	info, ok := am.Lookup("shaders/builtin.vert.spv")
	require.True(t, ok)
	assert.Equal(t, metadata.ResourceTypeShader, info.Type)
	_, ok = am.Lookup("shaders/builtin.vert")
	assert.False(t, ok)
}

func TestLoadShader(t *testing.T) {
	am, _ := newTestManager(t)
	vert, frag, err := am.LoadShader("builtin")
	require.NoError(t, err)
	assert.Len(t, vert, 12)
	assert.Len(t, frag, 8)

	_, _, err = am.LoadShader("missing")
	assert.ErrorIs(t, err, core.ErrShaderLoad)
}

func TestLoadShaderRejectsBadCode(t *testing.T) {
	am, root := newTestManager(t)
	writeFile(t, filepath.Join(root, "shaders", "broken.vert.spv"), []byte{1, 2, 3, 4})
	writeFile(t, filepath.Join(root, "shaders", "broken.frag.spv"), spirv())
	require.NoError(t, am.watchRecursive(root))

	_, _, err := am.LoadShader("broken")
	assert.ErrorIs(t, err, core.ErrShaderLoad)
}

func TestLoadTexture(t *testing.T) {
	am, _ := newTestManager(t)
	tex, err := am.LoadTexture("checker")
	require.NoError(t, err)
	assert.Equal(t, "checker", tex.Name)
	assert.Equal(t, uint32(2), tex.Width)
	assert.Equal(t, uint32(2), tex.Height)
	require.Len(t, tex.Pixels, 16)
	assert.Equal(t, []uint8{255, 0, 0, 255}, tex.Pixels[0:4])
	assert.Equal(t, []uint8{0, 0, 255, 255}, tex.Pixels[12:16])

	_, err = am.LoadTexture("nope")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestLoadTexturesInParallel(t *testing.T) {
	am, root := newTestManager(t)
	writePNG(t, filepath.Join(root, "textures", "other.png"))
	am.handleFileEvent(filepath.Join(root, "textures", "other.png"))

	textures, err := am.LoadTextures("other", "checker")
	require.NoError(t, err)
	require.Len(t, textures, 2)
	assert.Equal(t, "other", textures[0].Name)
	assert.Equal(t, "checker", textures[1].Name)

	_, err = am.LoadTextures("checker", "nope")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestShaderName(t *testing.T) {
	name, ok := ShaderName("shaders/builtin.frag.spv")
	assert.True(t, ok)
	assert.Equal(t, "builtin", name)
	_, ok = ShaderName("textures/checker.png")
	assert.False(t, ok)
}

func TestWriteEventPostsAssetChanged(t *testing.T) {
	require.True(t, core.EventInitialize())
	defer core.EventShutdown()

	am, root := newTestManager(t)

	var paths []string
	listener := &struct{}{}
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, listener, func(code core.SystemEventCode, sender, l interface{}, data core.EventContext) bool {
		paths = append(paths, data.Data.C[0])
		assert.Equal(t, uint32(metadata.ResourceTypeShader), data.Data.U32[0])
		return true
	})

	name := filepath.Join(root, "shaders", "builtin.frag.spv")
	am.handleWatchEvent(fsnotify.Event{Name: name, Op: fsnotify.Write})
	// A second write right after the first is the same save.
	am.handleWatchEvent(fsnotify.Event{Name: name, Op: fsnotify.Write})
	am.handleWatchEvent(fsnotify.Event{Name: filepath.Join(root, "notes.txt"), Op: fsnotify.Write})

	assert.Equal(t, 1, core.EventDispatch())
	assert.Equal(t, []string{"shaders/builtin.frag.spv"}, paths)

	am.handleWatchEvent(fsnotify.Event{Name: name, Op: fsnotify.Remove})
	_, ok := am.Lookup("shaders/builtin.frag.spv")
	assert.False(t, ok)
}
