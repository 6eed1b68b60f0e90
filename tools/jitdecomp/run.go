// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gx-org/jit/build/importer"
	"github.com/gx-org/jit/decomp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (a *app) newRunCommand() *cobra.Command {
	var (
		funcName string
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Decompose a function and print its graph",
		Long: `Compile FILE, rewrite the function selected by --func with the
registered decompositions and print the resulting graph.

With --watch, the rewrite runs again every time FILE changes until the
command is interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, reg, err := a.setup(cmd)
			if err != nil {
				return err
			}
			path := args[0]
			out := cmd.OutOrStdout()
			if !watch {
				return decompose(out, reg, path, funcName)
			}
			return watchFile(cmd.Context(), logger, path, func() {
				if err := decompose(out, reg, path, funcName); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
				}
			})
		},
	}
	cmd.Flags().StringVar(&funcName, "func", "", "name of the function to decompose (optional if FILE defines a single function)")
	cmd.Flags().BoolVar(&watch, "watch", false, "run again when FILE changes")
	return cmd
}

// compileFunction compiles the file at path and returns the function funcName.
func compileFunction(reg *decomp.Registry, path, funcName string) (*importer.Function, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	cu := importer.NewCompilationUnit(reg.Operators())
	if err := cu.Define(path, src); err != nil {
		return nil, err
	}
	if funcName == "" {
		funcs := cu.Functions()
		if len(funcs) != 1 {
			return nil, errors.Errorf("%s defines %d functions: use --func to select one", path, len(funcs))
		}
		return funcs[0], nil
	}
	fn, ok := cu.Function(funcName)
	if !ok {
		return nil, errors.Errorf("function %s not found in %s", funcName, path)
	}
	return fn, nil
}

func decompose(w io.Writer, reg *decomp.Registry, path, funcName string) error {
	fn, err := compileFunction(reg, path, funcName)
	if err != nil {
		return err
	}
	if err := reg.RunDecompositions(fn.Graph); err != nil {
		return errors.Wrapf(err, "cannot decompose %s", fn.Name)
	}
	_, err = fmt.Fprint(w, fn.Graph)
	return err
}

// watchFile calls onChange once and then every time the file at path changes.
func watchFile(ctx context.Context, logger *slog.Logger, path string, onChange func()) error {
	w, err := newFileWatcher(path)
	if err != nil {
		return err
	}
	defer w.Close()
	onChange()
	logger.Info("watching for changes", "path", path)
	return w.run(ctx, logger, onChange)
}
