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

package provider

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func Test_kind_from_status(t *testing.T) {
	for status, want := range map[int]ErrorKind{
		400: KindBadArgument,
		401: KindAuthentication,
		403: KindAuthentication,
		404: KindNotFound,
		408: KindCommunication,
		500: KindCommunication,
		503: KindCommunication,
		599: KindCommunication,
		409: KindGeneral,
		429: KindGeneral,
		302: KindGeneral,
	} {
		t.Run(fmt.Sprintf("Testing `%d`", status), func(t *testing.T) {
			if got := KindFromStatus(status); got != want {
				t.Fatalf("KindFromStatus(%d) = %s; want: %s", status, got, want)
			}
		})
	}
}

func Test_error_inspection(t *testing.T) {
	timeout := NewTimeout("Operation op-1 is not done in 1s")
	wrapped := fmt.Errorf("launch failed: %w", timeout)

	if !IsTimeout(wrapped) {
		t.Fatal("IsTimeout should see through wrapping")
	}
	if !IsKind(wrapped, KindCommunication) {
		t.Fatal("Timeout should be a communication error")
	}
	if IsNotFound(wrapped) {
		t.Fatal("Timeout is not a not found error")
	}
	if KindOf(errors.New("foreign")) != KindGeneral {
		t.Fatal("Foreign errors should be general")
	}

	// 5xx is communication but not a timeout
	if IsTimeout(&Error{Kind: KindCommunication, HTTPStatus: 503}) {
		t.Fatal("503 is not a timeout")
	}

	cause := errors.New("dial tcp: refused")
	perr := WrapError(KindCommunication, "", cause)
	if !errors.Is(perr, cause) {
		t.Fatal("Error should unwrap to the cause")
	}
	if !strings.Contains(perr.Error(), "dial tcp: refused") {
		t.Fatalf("Error without message should use the cause text, got: %s", perr)
	}

	remote := &Error{Kind: KindRemoteOperation, HTTPStatus: 403, ProviderCode: "QUOTA_EXCEEDED", Message: "quota exceeded"}
	if remote.Error() != "RemoteOperation: quota exceeded (QUOTA_EXCEEDED, http 403)" {
		t.Fatalf("Unexpected error text: %s", remote)
	}

	if !IsKind(ErrNotSupported("Pause"), KindOperationNotSupported) {
		t.Fatal("ErrNotSupported kind mismatch")
	}
}
