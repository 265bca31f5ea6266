package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/anima/engine/assets/loaders"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

const (
	shaderDir        = "shaders"
	textureDir       = "textures"
	vertexSuffix     = ".vert.spv"
	fragmentSuffix   = ".frag.spv"
	reloadQuietDelay = 50 * time.Millisecond
)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// AssetManager indexes the files under an assets directory and, with hot
// reload on, posts EVENT_CODE_ASSET_CHANGED whenever one is written.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	jobs     *JobSystem
	isClosed bool
	// Last write seen per path, editors emit several per save.
	lastWrite map[string]time.Time
}

func NewAssetManager(root string, hotReload bool) (*AssetManager, error) {
	am := &AssetManager{
		root:      root,
		assets:    make(map[string]AssetInfo),
		loaders:   make(map[metadata.ResourceType]Loader),
		done:      make(chan struct{}),
		lastWrite: make(map[string]time.Time),
	}
	jobs, err := NewJobSystem(runtime.NumCPU(), 0)
	if err != nil {
		return nil, err
	}
	am.jobs = jobs
	if hotReload {
		fsWatch, err := fsnotify.NewWatcher()
		if err != nil {
			_ = jobs.Shutdown()
			return nil, err
		}
		am.fsnotify = fsWatch
	}
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.TextureLoader{})
	return am, nil
}

func (am *AssetManager) Initialize() error {
	if err := am.watchRecursive(am.root); err != nil {
		return err
	}
	if am.fsnotify != nil {
		am.wg.Add(1)
		go am.start()
	}
	core.LogInfo("Asset manager indexed %d assets under %s.", am.Count(), am.root)
	return nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	_ = am.jobs.Shutdown()
	if am.fsnotify != nil {
		return am.fsnotify.Close()
	}
	return nil
}

// SetTextureFlip makes the image loader store rows bottom-up.
func (am *AssetManager) SetTextureFlip(flip bool) {
	am.registerLoader(metadata.ResourceTypeImage, &loaders.TextureLoader{FlipY: flip})
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Lookup returns the index entry of a path relative to the root.
func (am *AssetManager) Lookup(rel string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	a, ok := am.assets[filepath.ToSlash(rel)]
	return a, ok
}

// LoadAsset loads an indexed asset with the loader of its type.
func (am *AssetManager) LoadAsset(rel string) (*metadata.Resource, error) {
	rel = filepath.ToSlash(rel)
	am.mutex.Lock()
	asset, exists := am.assets[rel]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[rel] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("asset not found: %s", rel)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(filepath.Join(am.root, filepath.FromSlash(rel)))
}

// LoadShader reads both SPIR-V stages of a shader, `shaders/<name>.vert.spv`
// and `shaders/<name>.frag.spv`.
func (am *AssetManager) LoadShader(name string) (vertex, fragment []byte, err error) {
	v, err := am.LoadAsset(shaderDir + "/" + name + vertexSuffix)
	if err != nil {
		return nil, nil, fmt.Errorf("shader '%s' vertex stage: %v: %w", name, err, core.ErrShaderLoad)
	}
	f, err := am.LoadAsset(shaderDir + "/" + name + fragmentSuffix)
	if err != nil {
		return nil, nil, fmt.Errorf("shader '%s' fragment stage: %v: %w", name, err, core.ErrShaderLoad)
	}
	return v.Data.([]byte), f.Data.([]byte), nil
}

// LoadTexture decodes the first image under textures/ whose base name is name.
func (am *AssetManager) LoadTexture(name string) (metadata.TextureData, error) {
	am.mutex.RLock()
	var path string
	for rel, a := range am.assets {
		if a.Type != metadata.ResourceTypeImage || !strings.HasPrefix(rel, textureDir+"/") {
			continue
		}
		base := filepath.Base(rel)
		if strings.TrimSuffix(base, filepath.Ext(base)) == name {
			path = rel
			break
		}
	}
	am.mutex.RUnlock()
	if path == "" {
		return metadata.TextureData{}, fmt.Errorf("texture '%s' not found: %w", name, core.ErrInvalidArgument)
	}
	res, err := am.LoadAsset(path)
	if err != nil {
		return metadata.TextureData{}, err
	}
	return res.Data.(metadata.TextureData), nil
}

// LoadTextures decodes several textures in parallel on the job system. The
// result keeps the order of names; the first failure is returned.
func (am *AssetManager) LoadTextures(names ...string) ([]metadata.TextureData, error) {
	out := make([]metadata.TextureData, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		i, name := i, name
		wg.Add(1)
		err := am.jobs.Submit(JobTask{
			OnStart: func() error {
				data, err := am.LoadTexture(name)
				out[i], errs[i] = data, err
				return err
			},
			OnComplete: func(error) { wg.Done() },
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ShaderName returns the shader a stage file belongs to.
func ShaderName(path string) (string, bool) {
	base := filepath.Base(path)
	for _, suffix := range []string{vertexSuffix, fragmentSuffix} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix), true
		}
	}
	return "", false
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleWatchEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleWatchEvent(e fsnotify.Event) {
	s, err := os.Stat(e.Name)
	if err == nil && s.IsDir() {
		if e.Has(fsnotify.Create) {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("failed to watch %s: %s", e.Name, err)
			}
		}
		return
	}

	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		am.removeAsset(e.Name)
		return
	}
	if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
		return
	}

	info, ok := am.handleFileEvent(e.Name)
	if !ok {
		return
	}
	now := time.Now()
	am.mutex.Lock()
	last := am.lastWrite[info.Path]
	am.lastWrite[info.Path] = now
	am.mutex.Unlock()
	if now.Sub(last) < reloadQuietDelay {
		return
	}

	ctx := core.EventContext{}
	ctx.Data.C[0] = info.Path
	ctx.Data.U32[0] = uint32(info.Type)
	if err := core.EventPost(core.EVENT_CODE_ASSET_CHANGED, am, ctx); err != nil {
		core.LogWarn("dropped asset change of %s: %s", info.Path, err)
	}
}

// watchRecursive indexes every file under path and, with hot reload on,
// watches every directory.
func (am *AssetManager) watchRecursive(path string) error {
	am.mutex.RLock()
	closed := am.isClosed
	am.mutex.RUnlock()
	if closed {
		return errors.New("asset manager already closed")
	}
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.fsnotify == nil {
				return nil
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (AssetInfo, bool) {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return AssetInfo{}, false
	}
	rel, err := filepath.Rel(am.root, path)
	if err != nil {
		return AssetInfo{}, false
	}
	info := AssetInfo{
		Path: filepath.ToSlash(rel),
		Type: assetType,
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	if prev, ok := am.assets[info.Path]; ok {
		info.LastLoaded = prev.LastLoaded
	}
	am.assets[info.Path] = info
	return info, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	rel, err := filepath.Rel(am.root, path)
	if err != nil {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, filepath.ToSlash(rel))
	delete(am.lastWrite, filepath.ToSlash(rel))
}

func determineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return metadata.ResourceTypeImage
	default:
		return metadata.ResourceTypeNone
	}
}
