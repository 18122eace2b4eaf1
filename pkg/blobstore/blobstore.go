// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package blobstore stores job inputs and outputs in Azure Blob Storage.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"kubejobsub/pkg/errs"
	"kubejobsub/pkg/logging"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/pkg/errors"
)

// clockSkew backdates SAS start times so freshly issued URLs work on nodes
// whose clocks run slightly behind.
const clockSkew = 5 * time.Minute

// Store is a storage account accessed with its shared key.
type Store struct {
	client *azblob.Client
	cred   *azblob.SharedKeyCredential
	now    func() time.Time
}

// ServiceURL returns the public blob endpoint of account.
func ServiceURL(account string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/", account)
}

// New connects to the public endpoint of accountName.
func New(accountName, accountKey string) (*Store, error) {
	return NewWithServiceURL(ServiceURL(accountName), accountName, accountKey)
}

// NewWithServiceURL connects to an explicit endpoint, such as an emulator.
func NewWithServiceURL(serviceURL, accountName, accountKey string) (*Store, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindAuthentication, "invalid key for storage account %s", accountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfiguration, "invalid blob service URL %s", serviceURL)
	}
	return &Store{client: client, cred: cred, now: time.Now}, nil
}

func classify(err error, format string, args ...interface{}) error {
	switch {
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists, bloberror.ContainerBeingDeleted, bloberror.BlobAlreadyExists):
		return errs.Wrap(err, errs.KindConflict, format, args...)
	case bloberror.HasCode(err, bloberror.ContainerNotFound, bloberror.BlobNotFound, bloberror.ResourceNotFound):
		return errs.Wrap(err, errs.KindNotFound, format, args...)
	case bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure, bloberror.InsufficientAccountPermissions):
		return errs.Wrap(err, errs.KindAuthentication, format, args...)
	default:
		return errs.Wrap(err, errs.KindRemote, format, args...)
	}
}

// CreateContainer creates a container. An existing container is a conflict.
func (s *Store) CreateContainer(ctx context.Context, name string) error {
	logging.Debug("Creating blob container %s", name)
	if _, err := s.client.CreateContainer(ctx, name, nil); err != nil {
		return classify(err, "failed to create container %s", name)
	}
	return nil
}

// DeleteContainer deletes a container and every blob in it.
func (s *Store) DeleteContainer(ctx context.Context, name string) error {
	if _, err := s.client.DeleteContainer(ctx, name, nil); err != nil {
		return classify(err, "failed to delete container %s", name)
	}
	return nil
}

// Upload writes r to container/blob, replacing any existing blob.
func (s *Store) Upload(ctx context.Context, container, blob string, r io.Reader) error {
	if _, err := s.client.UploadStream(ctx, container, blob, r, nil); err != nil {
		return classify(err, "failed to upload %s/%s", container, blob)
	}
	return nil
}

// List returns the names of every blob in container.
func (s *Store) List(ctx context.Context, container string) ([]string, error) {
	var names []string
	pager := s.client.NewListBlobsFlatPager(container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "failed to list container %s", container)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

// Download copies container/blob into w.
func (s *Store) Download(ctx context.Context, container, blob string, w io.Writer) error {
	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return classify(err, "failed to download %s/%s", container, blob)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return errors.Wrapf(err, "failed to read %s/%s", container, blob)
	}
	return nil
}

func (s *Store) containerSAS(container string, perms sas.ContainerPermissions, expiry time.Duration) (string, error) {
	now := s.now().UTC()
	qp, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     now.Add(-clockSkew),
		ExpiryTime:    now.Add(expiry),
		Permissions:   perms.String(),
		ContainerName: container,
	}.SignWithSharedKey(s.cred)
	if err != nil {
		return "", errors.Wrapf(err, "failed to sign SAS for container %s", container)
	}
	return qp.Encode(), nil
}

// ReadURL returns a URL granting read access to container/blob for expiry.
func (s *Store) ReadURL(container, blob string, expiry time.Duration) (string, error) {
	token, err := s.containerSAS(container, sas.ContainerPermissions{Read: true}, expiry)
	if err != nil {
		return "", err
	}
	blobURL := s.client.ServiceClient().NewContainerClient(container).NewBlobClient(blob).URL()
	return blobURL + "?" + token, nil
}

// ContainerWriteURL returns a container URL that allows creating and writing
// blobs for expiry.
func (s *Store) ContainerWriteURL(container string, expiry time.Duration) (string, error) {
	token, err := s.containerSAS(container, sas.ContainerPermissions{Write: true, Create: true}, expiry)
	if err != nil {
		return "", err
	}
	return s.client.ServiceClient().NewContainerClient(container).URL() + "?" + token, nil
}
