/**
 * Copyright 2024-2025 Adobe. All rights reserved.
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

package crypt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// GenerateSSHKey creates a private key in pem format
func GenerateSSHKey() ([]byte, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: privateKeyBytes,
	})

	return privateKeyPEM, nil
}

// GetSSHPubKeyFromPem returns the public key in authorized_keys format
func GetSSHPubKeyFromPem(privPem []byte) ([]byte, error) {
	// Decode the PEM block
	block, _ := pem.Decode(privPem)
	if block == nil {
		return nil, fmt.Errorf("Crypt: Unable to parse PEM block")
	}

	// Parse the private key
	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	publicKey, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	return ssh.MarshalAuthorizedKey(publicKey), nil
}

// SSHKeysMetadataEntry formats the public key as "user:key user" line for the instance metadata
func SSHKeysMetadataEntry(user string, authorizedKey []byte) (string, error) {
	if user == "" {
		return "", fmt.Errorf("Crypt: SSH user is not set")
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey(authorizedKey)
	if err != nil {
		return "", fmt.Errorf("Crypt: Unable to parse public key: %w", err)
	}
	key := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	return user + ":" + key + " " + user, nil
}
