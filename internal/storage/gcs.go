// Package storage uploads objects to Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Object identifies an uploaded object.
type Object struct {
	Bucket string
	Name   string
	URL    string // public HTTPS URL
}

// URI returns the gs:// form used by Google APIs.
func (o Object) URI() string {
	return "gs://" + o.Bucket + "/" + o.Name
}

type GCSUploader struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
}

func NewGCSUploader(ctx context.Context, bucket, publicBaseURL string) (*GCSUploader, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = "https://storage.googleapis.com"
	}
	return &GCSUploader{client: c, bucket: bucket, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (u *GCSUploader) Close() error { return u.client.Close() }

// Upload writes r to objectName. The object stays private.
func (u *GCSUploader) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (Object, error) {
	obj := u.client.Bucket(u.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("upload %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", objectName, err)
	}

	return u.object(objectName), nil
}

// UploadPublic writes r to objectName and grants public read so clients
// can load it directly.
func (u *GCSUploader) UploadPublic(ctx context.Context, objectName, contentType string, r io.Reader) (Object, error) {
	o, err := u.Upload(ctx, objectName, contentType, r)
	if err != nil {
		return Object{}, err
	}

	acl := u.client.Bucket(u.bucket).Object(objectName).ACL()
	if err := acl.Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
		return Object{}, fmt.Errorf("publish %s: %w", objectName, err)
	}
	return o, nil
}

// Delete removes objectName. Missing objects are not an error.
func (u *GCSUploader) Delete(ctx context.Context, objectName string) error {
	err := u.client.Bucket(u.bucket).Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", objectName, err)
	}
	return nil
}

func (u *GCSUploader) object(name string) Object {
	return Object{
		Bucket: u.bucket,
		Name:   name,
		URL:    u.publicBaseURL + "/" + u.bucket + "/" + name,
	}
}

// ObjectName builds a unique object name under prefix, keeping the
// extension of the original file name.
func ObjectName(prefix, original string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(original, "\\", "/"))))
	if len(ext) > 10 || strings.ContainsAny(ext, " ?#%") {
		ext = ""
	}
	name := uuid.NewString() + ext
	if prefix == "" {
		return name
	}
	return strings.Trim(prefix, "/") + "/" + name
}
