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
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/monitoring"
)

// mapError converts the api client failure into the provider error
// Returns nil for nil and keeps the provider errors as is
func mapError(ctx context.Context, msg string, err error) error {
	if err == nil {
		return nil
	}

	var perr *provider.Error
	if errors.As(err, &perr) {
		return err
	}

	var out *provider.Error

	var gerr *googleapi.Error
	var rerr *oauth2.RetrieveError
	var uerr *url.Error
	var nerr net.Error
	switch {
	case errors.As(err, &gerr):
		out = &provider.Error{
			Kind:       provider.KindFromStatus(gerr.Code),
			HTTPStatus: gerr.Code,
			Message:    gerr.Message,
			Err:        err,
		}
		if len(gerr.Errors) > 0 {
			out.ProviderCode = gerr.Errors[0].Reason
			if out.Message == "" {
				out.Message = gerr.Errors[0].Message
			}
		}
		if out.Message == "" {
			out.Message = http.StatusText(gerr.Code)
		}
		out.Message = joinMessage(msg, out.Message)
	case errors.As(err, &rerr):
		out = provider.WrapError(provider.KindAuthentication, msg, err)
		if rerr.Response != nil {
			out.HTTPStatus = rerr.Response.StatusCode
		}
		out.ProviderCode = rerr.ErrorCode
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		out = provider.WrapError(provider.KindCommunication, msg, err)
	case errors.As(err, &uerr), errors.As(err, &nerr):
		out = provider.WrapError(provider.KindCommunication, msg, err)
	default:
		out = provider.WrapError(provider.KindGeneral, msg, err)
	}
	if gerr == nil {
		out.Message = joinMessage(msg, err.Error())
	}

	monitoring.Default().RecordAPIError(ctx, string(out.Kind), out.HTTPStatus)
	return out
}

// isTransient tells the poller the operation fetch could be retried
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var perr *provider.Error
	if errors.As(err, &perr) {
		return false
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	// Transport level failure, the request or response was cut on the way
	var uerr *url.Error
	var nerr net.Error
	if errors.As(err, &uerr) || errors.As(err, &nerr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// notFound returns true if the api responded with 404, used by Get to return nil
func notFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func joinMessage(msg, cause string) string {
	if msg == "" {
		return cause
	}
	return msg + ": " + cause
}
