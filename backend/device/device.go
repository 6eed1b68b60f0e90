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

// Package device identifies the device on which a function runs.
package device

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Type of a device.
type Type int8

// Device types.
const (
	CPU Type = iota
	CUDA
	Lazy
	TPU
)

var typeNames = []string{
	CPU:  "cpu",
	CUDA: "cuda",
	Lazy: "lazy",
	TPU:  "tpu",
}

func (t Type) String() string {
	if int(t) < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// NoOrdinal is the ordinal of a device without index.
const NoOrdinal = -1

// Device is a device type with an optional ordinal.
type Device struct {
	Type    Type
	Ordinal int
}

// Default returns the device used when none has been specified.
func Default() Device {
	return Device{Type: CPU, Ordinal: NoOrdinal}
}

// HasIndex returns true if the device has an ordinal.
func (d Device) HasIndex() bool {
	return d.Ordinal >= 0
}

// String returns the type of the device followed by its ordinal, if any.
// For example: cpu, lazy0.
func (d Device) String() string {
	s := d.Type.String()
	if d.HasIndex() {
		s += strconv.Itoa(d.Ordinal)
	}
	return s
}

// Compare orders devices by type then by ordinal.
func (d Device) Compare(other Device) int {
	if d.Type != other.Type {
		if d.Type < other.Type {
			return -1
		}
		return +1
	}
	switch {
	case d.Ordinal < other.Ordinal:
		return -1
	case d.Ordinal > other.Ordinal:
		return +1
	}
	return 0
}

// Parse a device from its string representation.
func Parse(s string) (Device, error) {
	for t, name := range typeNames {
		rest, ok := strings.CutPrefix(s, name)
		if !ok {
			continue
		}
		dev := Device{Type: Type(t), Ordinal: NoOrdinal}
		if rest == "" {
			return dev, nil
		}
		ordinal, err := strconv.Atoi(rest)
		if err != nil || ordinal < 0 {
			return Device{}, errors.Errorf("invalid device ordinal in %q", s)
		}
		dev.Ordinal = ordinal
		return dev, nil
	}
	return Device{}, errors.Errorf("unknown device %q", s)
}
