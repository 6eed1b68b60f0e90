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

package device_test

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/jit/backend/device"
)

func TestString(t *testing.T) {
	tests := []struct {
		dev  device.Device
		want string
	}{
		{dev: device.Default(), want: "cpu"},
		{dev: device.Device{Type: device.Lazy, Ordinal: 0}, want: "lazy0"},
		{dev: device.Device{Type: device.CUDA, Ordinal: 3}, want: "cuda3"},
	}
	for _, test := range tests {
		if got := test.dev.String(); got != test.want {
			t.Errorf("got %q but want %q", got, test.want)
		}
		parsed, err := device.Parse(test.want)
		if err != nil {
			t.Errorf("cannot parse %q: %v", test.want, err)
			continue
		}
		if parsed != test.dev {
			t.Errorf("Parse(%q) = %v but want %v", test.want, parsed, test.dev)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"gpu0", "lazy-1", "cpux", ""} {
		if _, err := device.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected an error", s)
		}
	}
}

func TestCompare(t *testing.T) {
	devs := []device.Device{
		{Type: device.Lazy, Ordinal: 1},
		{Type: device.CPU, Ordinal: device.NoOrdinal},
		{Type: device.Lazy, Ordinal: 0},
		{Type: device.CPU, Ordinal: 0},
	}
	slices.SortFunc(devs, device.Device.Compare)
	var got []string
	for _, dev := range devs {
		got = append(got, dev.String())
	}
	if diff := cmp.Diff([]string{"cpu", "cpu0", "lazy0", "lazy1"}, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}
