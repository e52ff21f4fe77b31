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
	"net/http"
)

// ErrorKind is the category of the failure callers can act on
type ErrorKind string

const (
	KindGeneral               ErrorKind = "General"
	KindBadArgument           ErrorKind = "BadArgument"
	KindAuthentication        ErrorKind = "Authentication"
	KindNotFound              ErrorKind = "NotFound"
	KindCommunication         ErrorKind = "Communication" // Network failures, timeouts & provider side 5xx
	KindRemoteOperation       ErrorKind = "RemoteOperation"
	KindOperationNotSupported ErrorKind = "OperationNotSupported"
)

// Error is returned by every driver operation
type Error struct {
	Kind         ErrorKind
	HTTPStatus   int    // 0 if not applicable
	ProviderCode string // Provider reason, like "notFound" or "QUOTA_EXCEEDED"
	Message      string
	Err          error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.ProviderCode != "" && e.HTTPStatus != 0:
		return fmt.Sprintf("%s: %s (%s, http %d)", e.Kind, msg, e.ProviderCode, e.HTTPStatus)
	case e.ProviderCode != "":
		return fmt.Sprintf("%s: %s (%s)", e.Kind, msg, e.ProviderCode)
	case e.HTTPStatus != 0:
		return fmt.Sprintf("%s: %s (http %d)", e.Kind, msg, e.HTTPStatus)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates the error of the kind
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError creates the error of the kind with the cause
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// NewTimeout is the error returned when the client-side wait expired
func NewTimeout(msg string) *Error {
	return &Error{Kind: KindCommunication, HTTPStatus: http.StatusRequestTimeout, Message: msg}
}

// ErrNotSupported is returned for the operations the provider can't do
func ErrNotSupported(op string) *Error {
	return &Error{Kind: KindOperationNotSupported, Message: fmt.Sprintf("Operation %q is not supported", op)}
}

// KindFromStatus maps http status to the error kind
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusBadRequest:
		return KindBadArgument
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestTimeout, status >= 500 && status < 600:
		return KindCommunication
	}
	return KindGeneral
}

// KindOf returns the kind of the error, General for the foreign errors
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindGeneral
}

// IsKind checks the error chain contains the provider error of the kind
func IsKind(err error, kind ErrorKind) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == kind
}

// IsNotFound checks the resource is missing
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsTimeout checks the error was caused by the expired wait
func IsTimeout(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindCommunication && perr.HTTPStatus == http.StatusRequestTimeout
}
