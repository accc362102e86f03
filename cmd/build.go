/*
 *     Copyright 2024 The CNAI Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/urumanifest/manifestgen/internal/cache"
	"github.com/urumanifest/manifestgen/internal/pb"
	"github.com/urumanifest/manifestgen/internal/pytool"
	"github.com/urumanifest/manifestgen/pkg/assets"
	"github.com/urumanifest/manifestgen/pkg/cipher"
	"github.com/urumanifest/manifestgen/pkg/config"
	"github.com/urumanifest/manifestgen/pkg/manifestdb"
	"github.com/urumanifest/manifestgen/pkg/objstore"
	"github.com/urumanifest/manifestgen/pkg/pipeline"
	"github.com/urumanifest/manifestgen/pkg/pybridge"
	"github.com/urumanifest/manifestgen/pkg/pypack"
	"github.com/urumanifest/manifestgen/pkg/resolve"
	"github.com/urumanifest/manifestgen/pkg/sdl"
)

var buildConfig = config.NewBuild()

// buildCmd drives one end-to-end manifest build.
var buildCmd = &cobra.Command{
	Use:                "build [flags]",
	Short:              "Gather, resolve and publish the content manifests for one server tree",
	Args:               cobra.NoArgs,
	DisableAutoGenTag:  true,
	SilenceUsage:       true,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := buildConfig.Validate(); err != nil {
			return err
		}

		return runBuild(context.Background())
	},
}

// init initializes the build command.
func init() {
	flags := buildCmd.Flags()
	flags.IntVarP(&buildConfig.Concurrency, "concurrency", "c", buildConfig.Concurrency, "specify the number of concurrent build operations")
	flags.StringVar(&buildConfig.Server.Type, "server-type", buildConfig.Server.Type, "manifest DB schema: plain or binary")
	flags.StringVar(&buildConfig.Server.DroidKey, "droid-key", buildConfig.Server.DroidKey, "32 hex digit droid encryption key")
	flags.BoolVar(&buildConfig.Server.SecureManifest, "secure-manifest", buildConfig.Server.SecureManifest, "also list secure-list (.pak/.sdl) files in the SecurePreloader manifest")
	flags.StringVar(&buildConfig.Server.AgeDirectory, "age-dir", buildConfig.Server.AgeDirectory, "directory the server-asset-copy stage writes decrypted .age files into")
	flags.StringVar(&buildConfig.Server.SDLDirectory, "sdl-dir", buildConfig.Server.SDLDirectory, "directory the server-asset-copy stage writes decrypted .sdl files into")
	flags.StringVar(&buildConfig.Python.Path, "python", buildConfig.Python.Path, "path to the python3 interpreter used to byte-compile scripts")
	flags.BoolVar(&buildConfig.Python.Reuse, "reuse-python-pak", buildConfig.Python.Reuse, "recycle a previously published Python.pak instead of recompiling")
	flags.StringVar(&buildConfig.Output.Manifests, "output-manifests", buildConfig.Output.Manifests, "destination for published manifest files")
	flags.StringVar(&buildConfig.Output.Lists, "output-lists", buildConfig.Output.Lists, "destination for published secure lists")
	flags.StringVar(&buildConfig.Source.DataPath, "data-path", buildConfig.Source.DataPath, "prebuilt data tree root")
	flags.StringVar(&buildConfig.Source.ScriptsPath, "scripts-path", buildConfig.Source.ScriptsPath, "prebuilt scripts tree root")
	flags.StringVar(&buildConfig.Source.GatherPath, "gather-path", buildConfig.Source.GatherPath, "gathered-asset tree root")
	flags.StringVar(&buildConfig.Stage, "stage", buildConfig.Stage, "stage name (stored only; no build step reads it)")
	flags.BoolVar(&buildConfig.Regenerate, "regenerate", false, "force full recompression/recopy of unchanged entries")

	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Errorf("bind build flags to viper: %w", err))
	}
}

// prebuiltCategories maps the fixed client-directory vocabulary onto
// buildConfig's two prebuilt source roots.
func prebuiltCategories(cfg *config.Build) []assets.PrebuiltCategory {
	join := func(root, sub string) string {
		if root == "" {
			return ""
		}
		return root + string(os.PathSeparator) + sub
	}

	return []assets.PrebuiltCategory{
		{Category: assets.CategoryData, DataDir: cfg.Source.DataPath},
		{Category: assets.CategoryPython, ScriptsDir: join(cfg.Source.ScriptsPath, "Python")},
		{Category: assets.CategorySDL, ScriptsDir: join(cfg.Source.ScriptsPath, "SDL")},
		{Category: assets.CategoryExternal, ScriptsDir: join(cfg.Source.ScriptsPath, "dat")},
		{Category: assets.CategoryInternal, ScriptsDir: join(cfg.Source.ScriptsPath, "dat")},
	}
}

func runBuild(ctx context.Context) error {
	lock, err := cache.AcquireRunLock(buildConfig.Output.Manifests)
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	defer lock.Unlock()

	key, err := cipher.KeyFromHex(buildConfig.Server.DroidKey)
	if err != nil {
		return fmt.Errorf("parsing droid key: %w", err)
	}

	pyExe := buildConfig.Python.Path
	if pyExe == "" {
		pyExe = "python3"
	}
	toolScript, err := pytool.Extract()
	if err != nil {
		return fmt.Errorf("extracting python tool script: %w", err)
	}
	defer os.Remove(toolScript)
	bridge := pybridge.New(pyExe, toolScript)

	logrus.Info("build: loading prebuilt asset tree")
	prebuilt, err := assets.LoadPrebuilt(ctx, prebuiltCategories(buildConfig), bridge)
	if err != nil {
		return fmt.Errorf("loading prebuilt assets: %w", err)
	}

	logrus.Info("build: gathering dynamic asset tree")
	gathered, err := assets.LoadGathers([]string{buildConfig.Source.GatherPath}, "asset_gather.json")
	if err != nil {
		return fmt.Errorf("gathering assets: %w", err)
	}

	idx, err := assets.Merge(prebuilt, gathered)
	if err != nil {
		return fmt.Errorf("merging asset trees: %w", err)
	}
	logrus.Infof("build: indexed %d assets", idx.Len())

	manager := sdl.NewManager()
	resolver := resolve.New(buildConfig.Concurrency, &key)
	staged, err := resolver.Run(ctx, idx, manager)
	if err != nil {
		return fmt.Errorf("resolving dependencies: %w", err)
	}

	backend, err := manifestdb.NewBackend(buildConfig.Server.Type, key)
	if err != nil {
		return fmt.Errorf("selecting manifest backend: %w", err)
	}

	cached, err := backend.Load(buildConfig.Output.Manifests)
	if err != nil {
		return fmt.Errorf("loading published manifest state: %w", err)
	}

	listStore, err := objstore.Open(ctx, buildConfig.Output.Lists)
	if err != nil {
		return fmt.Errorf("opening list store: %w", err)
	}

	pakDir, err := os.MkdirTemp("", "manifestgen-pypack-*")
	if err != nil {
		return fmt.Errorf("creating python pack scratch dir: %w", err)
	}
	defer os.RemoveAll(pakDir)

	pypackOpts := pypack.Options{
		PythonRoot:  buildConfig.Source.ScriptsPath + string(os.PathSeparator) + "Python",
		OutputDir:   pakDir,
		Key:         key,
		Concurrency: buildConfig.Concurrency,
		Reuse:       buildConfig.Python.Reuse,
	}
	if err := pypack.Build(ctx, idx, staged, cached, bridge, listStore, pypackOpts); err != nil {
		return fmt.Errorf("building python pack: %w", err)
	}

	fileCache, err := cache.New(rootConfig.StorageDir)
	if err != nil {
		return fmt.Errorf("opening file cache: %w", err)
	}

	bars := pb.NewProgressBar(os.Stderr)
	defer bars.Stop()

	orchestrator, err := pipeline.New(ctx, buildConfig, idx, staged, cached, backend, key, fileCache, bars)
	if err != nil {
		return fmt.Errorf("preparing pipeline: %w", err)
	}

	report, err := orchestrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	fmt.Printf("Added:   %d\n", len(report.Added))
	fmt.Printf("Changed: %d\n", len(report.Changed))
	fmt.Printf("Deleted: %d\n", len(report.Deleted))
	return nil
}
