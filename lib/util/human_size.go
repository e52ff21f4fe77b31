/**
 * Copyright 2024 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// HumanSize is a size in bytes which could be set as "20GB" or "512MB"
type HumanSize uint64

const (
	B  HumanSize = 1
	KB           = B << 10
	MB           = KB << 10
	GB           = MB << 10
	TB           = GB << 10
	PB           = TB << 10
	EB           = PB << 10
)

// Ordered from the largest, String picks the first unit dividing the value
var humanSizeUnits = []struct {
	name string
	mult HumanSize
}{
	{"EB", EB}, {"PB", PB}, {"TB", TB}, {"GB", GB}, {"MB", MB}, {"KB", KB}, {"B", B},
}

// NewHumanSize parses the text into HumanSize
func NewHumanSize(input string) (HumanSize, error) {
	var hs HumanSize
	err := hs.UnmarshalText([]byte(input))
	return hs, err
}

// MarshalText stores the size with the largest whole unit
func (hs HumanSize) MarshalText() ([]byte, error) {
	return []byte(hs.String()), nil
}

// UnmarshalText parses number with optional unit suffix ("B", "KB", "MB"...), plain number is bytes
func (hs *HumanSize) UnmarshalText(data []byte) error {
	input := strings.TrimSpace(string(data))

	num, mult := input, B
	for _, u := range humanSizeUnits {
		if strings.HasSuffix(input, u.name) {
			num, mult = strings.TrimSuffix(input, u.name), u.mult
			break
		}
	}
	if num == "" || num[len(num)-1] < '0' || num[len(num)-1] > '9' {
		return fmt.Errorf("Unable to parse provided human size unit: %s", input)
	}

	val, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return fmt.Errorf("Unable to parse provided human size value: %s", input)
	}
	if val > math.MaxUint64/uint64(mult) {
		return fmt.Errorf("Unable to store provided human size value in bytes: max uint64 < %s", input)
	}

	*hs = HumanSize(val) * mult
	return nil
}

// Bytes returns the size in bytes
func (hs HumanSize) Bytes() uint64 {
	return uint64(hs)
}

// Gigabytes returns the size in whole GB, rounded up, since disks are allocated in GB
func (hs HumanSize) Gigabytes() int64 {
	gb := uint64(hs / GB)
	if hs%GB != 0 {
		gb++
	}
	return int64(gb)
}

// HumanSizeFromGB creates HumanSize from the number of GB
func HumanSizeFromGB(gb int64) HumanSize {
	if gb <= 0 {
		return 0
	}
	return HumanSize(gb) * GB
}

func (hs HumanSize) String() string {
	if hs == 0 {
		return "0B"
	}
	for _, u := range humanSizeUnits {
		if hs%u.mult == 0 {
			return fmt.Sprintf("%d%s", hs/u.mult, u.name)
		}
	}
	return fmt.Sprintf("%dB", uint64(hs))
}
