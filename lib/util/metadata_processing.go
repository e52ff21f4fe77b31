/**
 * Copyright 2021-2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

// Author: Sergei Parshev (@sparshev)

package util

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/alessio/shellescape"
)

// Supported formats of SerializeMetadata
const (
	MetadataFormatJSON = "json"
	MetadataFormatEnv  = "env"
	MetadataFormatPS1  = "ps1"
)

// SerializeMetadata converts the nested map to the format usable by VM bootstrap scripts
// The keys of env & ps1 formats are flattened with "_" and sorted to keep the output stable
func SerializeMetadata(format, prefix string, data map[string]any) (out []byte, err error) {
	switch format {
	case MetadataFormatJSON, "":
		return json.Marshal(data)
	case MetadataFormatEnv:
		for _, kv := range sortedShellPairs(prefix, data) {
			out = append(out, kv[0]+"="+shellescape.Quote(kv[1])+"\n"...)
		}
	case MetadataFormatPS1:
		for _, kv := range sortedShellPairs(prefix, data) {
			// Shell quote is not applicable here, so using the powershell one
			out = append(out, "$"+kv[0]+"='"+strings.ReplaceAll(kv[1], "'", "''")+"'\n"...)
		}
	default:
		return out, fmt.Errorf("Unsupported `format`: %s", format)
	}

	return out, nil
}

func sortedShellPairs(prefix string, data map[string]any) (pairs [][2]string) {
	for key, val := range DotSerialize(prefix, data) {
		name := cleanShellKey(strings.ReplaceAll(shellescape.StripUnsafe(key), ".", "_"))
		if name == "" {
			continue
		}
		pairs = append(pairs, [2]string{name, val})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs
}

func cleanShellKey(in string) string {
	s := []byte(in)
	j := 0
	for _, b := range s {
		if j == 0 && ('0' <= b && b <= '9') {
			// Skip leading numeric symbols
			continue
		}
		if ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9') || b == '_' {
			s[j] = b
			j++
		}
	}
	return string(s[:j])
}
