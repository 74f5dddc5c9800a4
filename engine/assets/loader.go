package assets

import "github.com/spaghettifunk/vesta/engine/assets/loaders"

type Loader interface {
	// params carries loader specific options, e.g. *loaders.ImageParams.
	Load(path string, assetType loaders.ResourceType, params any) (*loaders.Resource, error)
	Unload(*loaders.Resource) error
}

// ReloadFunc receives a freshly loaded asset after its file changed on disk.
type ReloadFunc func(res *loaders.Resource) error
