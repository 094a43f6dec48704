// SPDX-License-Identifier: Apache-2.0
/*
Copyright (C) 2026 The MiStomp Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BowmanRA/mistomp/pkg/ladspa"
)

// DefaultExtension is the file extension of LADSPA modules.
const DefaultExtension = ".so"

// ModuleReport describes the plugins found in a module.
type ModuleReport struct {
	Path        string
	Descriptors []*ladspa.Descriptor
	// Err is non-nil if the module could not be loaded or enumerated
	// completely. Descriptors decoded before the failure are kept.
	Err error
}

// Modules returns the paths of the files in dir ending with ext, sorted by
// name.
func Modules(dir, ext string) ([]string, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading plugin directory: %w", err)
	}
	var res []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		res = append(res, filepath.Join(dir, e.Name()))
	}
	return res, nil
}

// Scan opens every module in dir with the given extension, enumerates its
// plugins and closes it. Failures are recorded in the report of the module
// and do not stop the scan.
func Scan(dir, ext string) ([]ModuleReport, error) {
	paths, err := Modules(dir, ext)
	if err != nil {
		return nil, err
	}
	res := make([]ModuleReport, 0, len(paths))
	for _, p := range paths {
		res = append(res, scanModule(p))
	}
	return res, nil
}

func scanModule(path string) ModuleReport {
	r := ModuleReport{Path: path}
	lib, err := Open(path)
	if err != nil {
		r.Err = err
		return r
	}
	r.Descriptors, r.Err = lib.Descriptors()
	r.Err = errors.Join(r.Err, lib.Close())
	return r
}

// FindInDirs searches the modules of each directory in order and returns
// the first plugin selected by match, along with its open library. All the
// other libraries are closed. Directories that do not exist are skipped.
func FindInDirs(dirs []string, ext string, match Match) (*Library, *ladspa.Descriptor, error) {
	var errs []error
	for _, dir := range dirs {
		paths, err := Modules(dir, ext)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		for _, p := range paths {
			lib, err := Open(p)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			d, err := lib.Find(match)
			if err == nil {
				return lib, d, nil
			}
			if errors.Is(err, ladspa.ErrMalformedDescriptor) {
				errs = append(errs, err)
			}
			errs = append(errs, lib.Close())
		}
	}
	return nil, nil, errors.Join(fmt.Errorf("%w in %s", ErrPluginNotFound, strings.Join(dirs, string(filepath.ListSeparator))), errors.Join(errs...))
}
