package synapse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Entity is the metadata of a Synapse entity
type Entity struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	VersionNumber    int    `json:"versionNumber"`
	DataFileHandleID string `json:"dataFileHandleId"`
	ConcreteType     string `json:"concreteType"`
}

// GetEntity fetches the metadata of id
func (c *Client) GetEntity(ctx context.Context, id string) (Entity, error) {
	if err := c.requireLogin("entity"); err != nil {
		return Entity{}, err
	}

	var entity Entity
	if _, err := c.call(ctx, "entity", http.MethodGet, "/repo/v1/entity/"+url.PathEscape(id), nil, &entity); err != nil {
		return Entity{}, err
	}
	return entity, nil
}

// cachePath returns <cacheDir>/<id>.<version>/<name>, refusing names that
// would leave the cache directory
func (c *Client) cachePath(entity Entity) (string, error) {
	name := filepath.Base(entity.Name)
	if name == "." || name == ".." || name == string(filepath.Separator) || name != entity.Name {
		return "", fmt.Errorf("invalid file name %q for %s", entity.Name, entity.ID)
	}

	dir := filepath.Join(c.cacheDir, fmt.Sprintf("%s.%d", filepath.Base(entity.ID), entity.VersionNumber))
	path := filepath.Join(dir, name)

	rel, err := filepath.Rel(c.cacheDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid file path %s", path)
	}
	return path, nil
}

// FetchLocalPath downloads the current version of file entity id into the
// cache directory and returns its path. A version already in the cache is
// not downloaded again.
func (c *Client) FetchLocalPath(ctx context.Context, id string) (string, error) {
	entity, err := c.GetEntity(ctx, id)
	if err != nil {
		return "", err
	}
	if entity.DataFileHandleID == "" {
		return "", &FetchError{Op: "download", Err: fmt.Errorf("%s is not a file", id)}
	}

	path, err := c.cachePath(entity)
	if err != nil {
		return "", &FetchError{Op: "download", Err: err}
	}

	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		c.logger.Debug("Using cached file", "id", id, "version", entity.VersionNumber, "path", path)
		return path, nil
	}

	presigned, err := c.fileURL(ctx, id)
	if err != nil {
		return "", err
	}

	if err := c.download(ctx, presigned, path); err != nil {
		return "", err
	}

	c.logger.Info("Downloaded file", "id", id, "version", entity.VersionNumber, "path", path)
	return path, nil
}

// fileURL asks for the pre-signed URL of the file instead of following the redirect
func (c *Client) fileURL(ctx context.Context, id string) (string, error) {
	resp, err := c.send(ctx, c.api, "file_url", http.MethodGet,
		c.endpoint+"/repo/v1/entity/"+url.PathEscape(id)+"/file?redirect=false", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	if err != nil {
		return "", &FetchError{Op: "file_url", StatusCode: resp.StatusCode, Err: err}
	}

	presigned := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if _, err := url.ParseRequestURI(presigned); err != nil {
		return "", &FetchError{Op: "file_url", StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid file URL: %w", err)}
	}
	return presigned, nil
}

// download streams target into path through a temporary file in the same
// directory, so a partial download never looks like a cache hit
func (c *Client) download(ctx context.Context, target, path string) (err error) {
	resp, err := c.send(ctx, c.files, "download", http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &FetchError{Op: "download", Err: fmt.Errorf("failed to create %s: %w", dir, err)}
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return &FetchError{Op: "download", Err: err}
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, copyErr := io.Copy(tmp, resp.Body); copyErr != nil {
		_ = tmp.Close()
		return &FetchError{Op: "download", StatusCode: resp.StatusCode, Err: copyErr}
	}
	if closeErr := tmp.Close(); closeErr != nil {
		return &FetchError{Op: "download", Err: closeErr}
	}
	if renameErr := os.Rename(tmp.Name(), path); renameErr != nil {
		return &FetchError{Op: "download", Err: errors.Join(errors.New("failed to move download into cache"), renameErr)}
	}
	return nil
}
