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
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/compute/v1"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
)

const storagePublicURL = "https://storage.googleapis.com/"

type imageService struct {
	d *Driver
}

func (s *imageService) Get(ctx context.Context, id string) (*provider.MachineImage, error) {
	if err := globalName("image", id); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	img, err := svc.Images.Get(s.d.cfg.ProjectID, id).Context(ctx).Do()
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get image %q", id), err)
	}
	return imageFromCompute(img), nil
}

// List returns the images of the project, public images are not included
func (s *imageService) List(ctx context.Context, filter provider.FilterOptions) ([]*provider.MachineImage, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	var out []*provider.MachineImage
	err = svc.Images.List(s.d.cfg.ProjectID).Pages(ctx, func(page *compute.ImageList) error {
		for _, img := range page.Items {
			if filter.Matches(img.Name, img.Labels) {
				out = append(out, imageFromCompute(img))
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError(ctx, "Unable to list images", err)
	}
	return out, nil
}

// Create captures the image from the disk or imports it from the storage object
func (s *imageService) Create(ctx context.Context, opts provider.ImageCreateOptions) (*provider.MachineImage, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	logger := log.WithFunc("gce", "CreateImage").With("provider.name", s.d.name, "image", opts.Name)

	img := &compute.Image{
		Name:        opts.Name,
		Family:      opts.Family,
		Description: opts.Description,
		Labels:      s.d.labels(opts.Labels),
	}
	call := svc.Images.Insert(s.d.cfg.ProjectID, img)
	if opts.VolumeID != "" {
		zone, disk, err := s.d.parseZonalID(opts.VolumeID)
		if err != nil {
			return nil, err
		}
		img.SourceDisk = s.d.diskURL(zone, disk)
		// Capture is allowed from the disk of the running instance
		call = call.ForceCreate(true)
		logger.Info("Capturing image from disk", "disk", opts.VolumeID)
	} else {
		source, err := s.verifyStorageObject(ctx, opts.StorageURL)
		if err != nil {
			return nil, err
		}
		img.RawDisk = &compute.ImageRawDisk{Source: source}
		logger.Info("Importing image from storage", "source", source)
	}

	op, err := call.RequestId(newRequestID()).Context(ctx).Do()
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to create image %q", opts.Name), err)
	}
	if _, err = s.poller(svc).Await(ctx, op, GlobalScope()); err != nil {
		logger.Error("Unable to create image", "err", err)
		return nil, err
	}
	s.d.record(ctx, "image", "create")

	out, err := s.Get(ctx, opts.Name)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, provider.NewError(provider.KindGeneral, fmt.Sprintf("Image %q is not found after creation", opts.Name))
	}
	return out, nil
}

func (s *imageService) Delete(ctx context.Context, id string) error {
	if err := globalName("image", id); err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}
	op, err := svc.Images.Delete(s.d.cfg.ProjectID, id).RequestId(newRequestID()).Context(ctx).Do()
	if err != nil {
		return mapError(ctx, fmt.Sprintf("Unable to delete image %q", id), err)
	}
	if _, err = s.poller(svc).Await(ctx, op, GlobalScope()); err != nil {
		return err
	}
	s.d.record(ctx, "image", "delete")
	return nil
}

// poller of the image operations, they take minutes so polled less often
func (s *imageService) poller(svc *compute.Service) *Poller {
	return s.d.poller(svc).WithInterval(time.Duration(s.d.cfg.ImagePollInterval))
}

// verifyStorageObject checks the object exists and returns the url the compute api accepts
func (s *imageService) verifyStorageObject(ctx context.Context, storageURL string) (string, error) {
	bucket, object, err := parseStorageURL(storageURL)
	if err != nil {
		return "", err
	}
	st, err := s.d.storageService(ctx)
	if err != nil {
		return "", err
	}
	obj, err := st.Objects.Get(bucket, object).Context(ctx).Do()
	if err != nil {
		return "", mapError(ctx, fmt.Sprintf("Unable to verify storage object %q", storageURL), err)
	}
	log.WithFunc("gce", "verifyStorageObject").Debug("Storage object found",
		"bucket", bucket, "object", object, "size", obj.Size, "content_type", obj.ContentType)
	return storagePublicURL + bucket + "/" + object, nil
}

// parseStorageURL accepts "gs://bucket/object" and the public storage url forms
func parseStorageURL(u string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(u, "gs://")
	if !ok {
		rest, ok = strings.CutPrefix(u, storagePublicURL)
	}
	if ok {
		bucket, object, ok = strings.Cut(rest, "/")
	}
	if !ok || bucket == "" || object == "" {
		return "", "", provider.NewError(provider.KindBadArgument, fmt.Sprintf("Invalid storage url %q, expected gs://<bucket>/<object>", u))
	}
	return bucket, object, nil
}

func imageFromCompute(img *compute.Image) *provider.MachineImage {
	out := &provider.MachineImage{
		ID:          img.Name,
		Name:        img.Name,
		Family:      img.Family,
		Description: img.Description,
		SizeGB:      img.DiskSizeGb,
		State:       resourceState(img.Status),
		Labels:      img.Labels,
		Created:     parseTimestamp(img.CreationTimestamp),
	}
	if img.SourceDisk != "" {
		out.VolumeID = zonalIDFromURL(img.SourceDisk)
	}
	return out
}
