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

// Package crypt contains the random generators and ssh keys helpers
package crypt

import (
	"crypto/rand"
	"math/big"

	"github.com/adobe/aquarium-gce/lib/log"
)

const (
	RandStringCharsetB58 = "abcdefghijkmnopqrstuvwxyz" +
		"ABCDEFGHJKLMNPQRSTUVWXYZ123456789" // Base58
	RandStringCharsetAZ = "abcdefghijklmnopqrstuvwxyz" // Only a-z

	// Cloud resource names allow only lowercase letters and digits (and dashes)
	RandStringCharsetName = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// RandBytes creates random bytes of specified size
func RandBytes(size int) (data []byte) {
	data = make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		log.WithFunc("crypt", "RandBytes").Error("Unable to generate random bytes", "err", err)
	}
	return
}

// RandString by default uses base58
func RandString(size int) string {
	return RandStringCharset(size, RandStringCharsetB58)
}

// RandStringCharset creates random string of specified size from the charset symbols
func RandStringCharset(size int, charset string) string {
	data := make([]byte, size)
	charsetLen := big.NewInt(int64(len(charset)))
	for i := range data {
		pos, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			log.WithFunc("crypt", "RandStringCharset").Error("Failed to generate random string", "err", err)
			continue
		}
		data[i] = charset[pos.Int64()]
	}
	return string(data)
}
