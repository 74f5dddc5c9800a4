//go:build mage

package main

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// Sources and their .spv output share the folder the engine loads from.
const shaderDir = "assets/shaders"

var shaderStages = map[string]bool{
	".vert": true, ".frag": true, ".comp": true,
	".tesc": true, ".tese": true, ".geom": true,
}

type Build mg.Namespace

// Compiles every GLSL stage below assets/shaders into <stage file>.spv.
func (Build) Shaders() error {
	return buildShaders()
}

// Compiles the shaders and builds the testbed binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/vesta", "."), withStream()); err != nil {
		return err
	}
	return nil
}

func buildShaders() error {
	return filepath.WalkDir(shaderDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !shaderStages[filepath.Ext(path)] {
			return nil
		}
		if _, err := executeCmd(glslc(), withArgs(path, "-o", path+".spv"), withStream()); err != nil {
			return fmt.Errorf("shader %s: %w", path, err)
		}
		return nil
	})
}
