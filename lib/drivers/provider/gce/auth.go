/**
 * Copyright 2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

package gce

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"

	"github.com/adobe/aquarium-gce/lib/log"
)

const jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// Scopes requested for the service account token
var defaultScopes = []string{
	"https://www.googleapis.com/auth/compute",
	"https://www.googleapis.com/auth/devstorage.read_only",
	"https://www.googleapis.com/auth/cloud-platform.read-only",
}

// jwtTokenSource exchanges the signed assertion to the access token
type jwtTokenSource struct {
	email    string
	keyID    string
	tokenURI string
	scopes   []string
	key      *rsa.PrivateKey
	client   *http.Client
	now      func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`

	// RFC 6749 error response fields
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorURI         string `json:"error_uri"`
}

// newTokenSource creates the reusable token source for the account
// -> client - used to reach the token endpoint, should not be authorized itself
func newTokenSource(acc Account, client *http.Client) (oauth2.TokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(acc.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("GCE: Unable to parse service account private key: %w", err)
	}
	src := &jwtTokenSource{
		email:    acc.ClientEmail,
		keyID:    acc.PrivateKeyID,
		tokenURI: acc.TokenURI,
		scopes:   defaultScopes,
		key:      key,
		client:   client,
		now:      time.Now,
	}
	return oauth2.ReuseTokenSource(nil, src), nil
}

// Token signs the new assertion and requests the access token for it
func (s *jwtTokenSource) Token() (*oauth2.Token, error) {
	logger := log.WithFunc("gce", "Token").With("client_email", s.email)

	now := s.now()
	claims := jwt.MapClaims{
		"iss":   s.email,
		"scope": strings.Join(s.scopes, " "),
		"aud":   s.tokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}
	assertion, err := token.SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("GCE: Unable to sign token assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {jwtBearerGrantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.tokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("GCE: Unable to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GCE: Unable to request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("GCE: Unable to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rerr := &oauth2.RetrieveError{Response: resp, Body: body}
		var tr tokenResponse
		if json.Unmarshal(body, &tr) == nil {
			rerr.ErrorCode = tr.Error
			rerr.ErrorDescription = tr.ErrorDescription
			rerr.ErrorURI = tr.ErrorURI
		}
		logger.Debug("Token request rejected", "status", resp.StatusCode, "error_code", rerr.ErrorCode)
		return nil, rerr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("GCE: Unable to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("GCE: Token response contains no access token")
	}
	if tr.TokenType == "" {
		tr.TokenType = "Bearer"
	}

	logger.Debug("Received access token", "expires_in", tr.ExpiresIn)
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		Expiry:      now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
