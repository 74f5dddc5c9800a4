package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/vesta/engine/assets/loaders"
	"github.com/spaghettifunk/vesta/engine/core"
	"golang.org/x/exp/slices"
)

type AssetInfo struct {
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
}

/**
 * @brief Indexes every file under the asset root and owns the loaders.
 * With hot reload enabled a watcher goroutine records changed files; Poll,
 * called from the frame loop, reloads them and runs the reload handlers on
 * the caller's goroutine.
 */
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader
	reload  map[loaders.ResourceType][]ReloadFunc
	pending map[string]struct{}

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager(root string) *AssetManager {
	am := &AssetManager{
		root:    filepath.Clean(root),
		assets:  make(map[string]AssetInfo),
		loaders: make(map[loaders.ResourceType]Loader),
		reload:  make(map[loaders.ResourceType][]ReloadFunc),
		pending: make(map[string]struct{}),
	}
	am.registerLoader(loaders.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(loaders.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(loaders.ResourceTypeMaterial, &loaders.MaterialLoader{})
	am.registerLoader(loaders.ResourceTypeModel, &loaders.ModelLoader{})
	am.registerLoader(loaders.ResourceTypeBinary, &loaders.BinaryLoader{})
	return am
}

// Initialize indexes the asset root and, when watch is set, starts the
// file watcher.
func (am *AssetManager) Initialize(watch bool) error {
	if _, err := os.Stat(am.root); err != nil {
		return fmt.Errorf("asset root %s: %v: %w", am.root, err, core.ErrExternalResource)
	}
	if !watch {
		return am.index(am.root)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %v: %w", err, core.ErrExternalResource)
	}
	am.fsnotify = w
	am.done = make(chan struct{})
	am.stopped = make(chan struct{})
	if err := am.watchRecursive(am.root); err != nil {
		w.Close()
		am.fsnotify = nil
		return err
	}
	go am.start()
	core.LogInfo("Watching %s for asset changes.", am.root)
	return nil
}

func (am *AssetManager) Root() string {
	return am.root
}

// Path resolves a name relative to the asset root.
func (am *AssetManager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(am.root, name)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// OnReload registers fn for changed files of the given type.
func (am *AssetManager) OnReload(assetType loaders.ResourceType, fn ReloadFunc) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.reload[assetType] = append(am.reload[assetType], fn)
}

// Assets lists the indexed paths of one type, sorted.
func (am *AssetManager) Assets(assetType loaders.ResourceType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var out []string
	for path, info := range am.assets {
		if info.Type == assetType {
			out = append(out, path)
		}
	}
	slices.Sort(out)
	return out
}

// LoadAsset loads name, relative to the asset root, with the loader of its
// type. params is handed to the loader untouched.
func (am *AssetManager) LoadAsset(name string, params any) (*loaders.Resource, error) {
	path := am.Path(name)
	am.mutex.Lock()
	asset, exists := am.assets[path]
	if !exists {
		// Files created after indexing are picked up lazily.
		if _, err := os.Stat(path); err == nil {
			asset = AssetInfo{Path: path, Type: loaders.TypeOf(path)}
			exists = asset.Type != loaders.ResourceTypeNone
		}
	}
	if !exists {
		am.mutex.Unlock()
		return nil, fmt.Errorf("asset not found: %s: %w", path, core.ErrExternalResource)
	}
	asset.LastLoaded = time.Now()
	am.assets[path] = asset
	am.mutex.Unlock()

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type %s: %w", asset.Type, core.ErrNotSupported)
	}
	return loader.Load(path, asset.Type, params)
}

func (am *AssetManager) UnloadAsset(asset *loaders.Resource) error {
	loader, ok := am.loaders[asset.Type]
	if !ok {
		return nil
	}
	return loader.Unload(asset)
}

// Poll reloads every file changed since the last call and runs its reload
// handlers. It returns how many files were reloaded.
func (am *AssetManager) Poll() (int, error) {
	am.mutex.Lock()
	paths := make([]string, 0, len(am.pending))
	for path := range am.pending {
		paths = append(paths, path)
	}
	clear(am.pending)
	am.mutex.Unlock()
	slices.Sort(paths)

	var errs []error
	n := 0
	for _, path := range paths {
		am.mutex.RLock()
		info, ok := am.assets[path]
		handlers := append([]ReloadFunc(nil), am.reload[info.Type]...)
		am.mutex.RUnlock()
		if !ok || len(handlers) == 0 {
			continue
		}
		res, err := am.LoadAsset(path, nil)
		if err != nil {
			core.LogWarn("Reloading %s failed: %v", path, err)
			errs = append(errs, err)
			continue
		}
		for _, fn := range handlers {
			if err := fn(res); err != nil {
				errs = append(errs, fmt.Errorf("reload handler for %s: %w", path, err))
			}
		}
		core.LogInfo("Reloaded %s asset %s.", info.Type, path)
		n++
	}
	return n, errors.Join(errs...)
}

func (am *AssetManager) Shutdown() {
	if am.fsnotify == nil || am.isClosed {
		return
	}
	am.isClosed = true
	close(am.done)
	<-am.stopped
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("Cannot watch %s: %v", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if am.handleFileEvent(e.Name) {
					am.queue(e.Name)
				}
			}
			// Can't stat a deleted path, so always try to drop it from the
			// watch list as well.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				_ = am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("Asset watcher: %v", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// index records every file under path without watching anything.
func (am *AssetManager) index(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			am.handleFileEvent(walkPath)
		}
		return nil
	})
}

// watchRecursive adds all directories under the given one to the watch
// list and indexes their files.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// handleFileEvent indexes a created or modified file and reports whether
// some loader handles it.
func (am *AssetManager) handleFileEvent(path string) bool {
	assetType := loaders.TypeOf(path)
	if assetType == loaders.ResourceTypeNone {
		return false
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := am.assets[path]
	info.Path = path
	info.Type = assetType
	am.assets[path] = info
	return true
}

func (am *AssetManager) queue(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.pending[path] = struct{}{}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, path)
	delete(am.pending, path)
}
