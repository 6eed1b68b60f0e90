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

package stmt

import (
	"fmt"
	"maps"

	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/tensorexpr/expr"
)

// GPUIndex is a dimension of the GPU grid (block index) or of a GPU block (thread index).
type GPUIndex int

// GPU index dimensions.
const (
	IdxUnset GPUIndex = iota - 1
	IdxX
	IdxY
	IdxZ
	IdxW
	IdxMax = IdxW
)

var (
	blockIndexNames  = [...]string{"blockIdx.x", "blockIdx.y", "blockIdx.z", "blockIdx.w"}
	threadIndexNames = [...]string{"threadIdx.x", "threadIdx.y", "threadIdx.z", "threadIdx.w"}
)

// LoopOptions annotates a loop with its mapping onto the GPU.
// A loop is mapped on at most one of a block index or a thread index.
//
// The zero value has no mapping.
type LoopOptions struct {
	// GPU indices are stored shifted by one so that the zero value is unset.
	gpuBlockIndex  int8
	gpuThreadIndex int8

	bufferMap map[string]*expr.Buf
}

// NewLoopOptions returns options without any GPU mapping.
func NewLoopOptions() LoopOptions {
	return LoopOptions{}
}

func (o LoopOptions) clone() LoopOptions {
	o.bufferMap = maps.Clone(o.bufferMap)
	return o
}

func toStored(idx GPUIndex) int8 { return int8(idx + 1) }

func fromStored(idx int8) GPUIndex { return GPUIndex(idx) - 1 }

func checkIndex(idx GPUIndex, what string) error {
	if idx < IdxUnset || idx > IdxMax {
		return fmterr.MalformedInput(fmt.Sprintf("invalid GPU %s index", what), idx)
	}
	return nil
}

// IsGPUBlockIndex returns true if the loop is mapped onto a GPU block index.
func (o *LoopOptions) IsGPUBlockIndex() bool {
	return o.GPUBlockIndex() != IdxUnset
}

// GPUBlockIndex returns the GPU block index of the loop or IdxUnset.
func (o *LoopOptions) GPUBlockIndex() GPUIndex {
	return fromStored(o.gpuBlockIndex)
}

// GPUBlockIndexString returns the name of the GPU block index, e.g. blockIdx.x.
func (o *LoopOptions) GPUBlockIndexString() (string, error) {
	if !o.IsGPUBlockIndex() {
		return "", fmterr.MalformedInput("has no GPU block index", nil)
	}
	return blockIndexNames[o.GPUBlockIndex()], nil
}

// SetGPUBlockIndex maps the loop onto a GPU block index.
// Setting IdxUnset removes the mapping.
// Setting the index that is already set is a no-op.
func (o *LoopOptions) SetGPUBlockIndex(idx GPUIndex) error {
	if err := checkIndex(idx, "block"); err != nil {
		return err
	}
	if idx == IdxUnset {
		o.gpuBlockIndex = toStored(IdxUnset)
		return nil
	}
	if o.IsGPUThreadIndex() {
		return fmterr.MalformedInput("cannot set both gpu block and thread index", idx)
	}
	if o.IsGPUBlockIndex() && o.GPUBlockIndex() != idx {
		return fmterr.MalformedInput("cannot set a previously set block index", idx)
	}
	o.gpuBlockIndex = toStored(idx)
	return nil
}

// IsGPUThreadIndex returns true if the loop is mapped onto a GPU thread index.
func (o *LoopOptions) IsGPUThreadIndex() bool {
	return o.GPUThreadIndex() != IdxUnset
}

// GPUThreadIndex returns the GPU thread index of the loop or IdxUnset.
func (o *LoopOptions) GPUThreadIndex() GPUIndex {
	return fromStored(o.gpuThreadIndex)
}

// GPUThreadIndexString returns the name of the GPU thread index, e.g. threadIdx.x.
func (o *LoopOptions) GPUThreadIndexString() (string, error) {
	if !o.IsGPUThreadIndex() {
		return "", fmterr.MalformedInput("has no GPU thread index", nil)
	}
	return threadIndexNames[o.GPUThreadIndex()], nil
}

// SetGPUThreadIndex maps the loop onto a GPU thread index.
// Setting IdxUnset removes the mapping.
// Setting the index that is already set is a no-op.
func (o *LoopOptions) SetGPUThreadIndex(idx GPUIndex) error {
	if err := checkIndex(idx, "thread"); err != nil {
		return err
	}
	if idx == IdxUnset {
		o.gpuThreadIndex = toStored(IdxUnset)
		return nil
	}
	if o.IsGPUBlockIndex() {
		return fmterr.MalformedInput("cannot set both gpu thread and block index", idx)
	}
	if o.IsGPUThreadIndex() && o.GPUThreadIndex() != idx {
		return fmterr.MalformedInput("cannot set a previously set thread index", idx)
	}
	o.gpuThreadIndex = toStored(idx)
	return nil
}

// IsDefault returns true if the loop is not mapped onto the GPU.
func (o *LoopOptions) IsDefault() bool {
	return !o.IsGPUBlockIndex() && !o.IsGPUThreadIndex()
}

// SetBufferMapping sets the mapping from input names to buffers.
func (o *LoopOptions) SetBufferMapping(m map[string]*expr.Buf) {
	o.bufferMap = maps.Clone(m)
}

// BufferMapping returns a copy of the mapping from input names to buffers.
func (o *LoopOptions) BufferMapping() map[string]*expr.Buf {
	return maps.Clone(o.bufferMap)
}

// String returns the name of the GPU index or an empty string.
func (o *LoopOptions) String() string {
	if s, err := o.GPUBlockIndexString(); err == nil {
		return s
	}
	if s, err := o.GPUThreadIndexString(); err == nil {
		return s
	}
	return ""
}
