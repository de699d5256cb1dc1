package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openai/openai-go"
	"go.uber.org/zap"
)

// UploadFile uploads a local file for use by agent tools.
func (c *Client) UploadFile(ctx context.Context, path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	obj, err := c.oc.Files.New(ctx, openai.FileNewParams{
		File:    f,
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		return nil, wrapError("POST files", err)
	}

	c.logger.Debug("Uploaded file", zap.String("id", obj.ID), zap.String("path", path))
	return &File{
		ID:       obj.ID,
		Filename: filepath.Base(path),
		Bytes:    obj.Bytes,
		Purpose:  string(obj.Purpose),
	}, nil
}

// DeleteFile deletes an uploaded file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.delete(ctx, join("files", fileID)); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileID, err)
	}
	return nil
}

// CreateVectorStore creates a vector store over the given files and waits
// until the service has finished indexing them.
func (c *Client) CreateVectorStore(ctx context.Context, params CreateVectorStoreParams, pollInterval time.Duration) (*VectorStore, error) {
	var vs VectorStore
	if err := c.post(ctx, "vector_stores", params, &vs); err != nil {
		return nil, fmt.Errorf("failed to create vector store %q: %w", params.Name, err)
	}

	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for vs.Status == VectorStoreInProgress {
		select {
		case <-ctx.Done():
			return &vs, ctx.Err()
		case <-ticker.C:
		}

		var next VectorStore
		if err := c.get(ctx, join("vector_stores", vs.ID), &next); err != nil {
			return &vs, fmt.Errorf("failed to poll vector store %s: %w", vs.ID, err)
		}
		vs = next
	}

	if vs.Status == VectorStoreExpired {
		return &vs, fmt.Errorf("vector store %s expired before indexing finished", vs.ID)
	}
	if vs.FileCounts.Failed > 0 {
		c.logger.Warn("Some files failed to index",
			zap.String("vector_store_id", vs.ID),
			zap.Int("failed", vs.FileCounts.Failed))
	}
	c.logger.Debug("Created vector store", zap.String("id", vs.ID), zap.String("name", vs.Name))
	return &vs, nil
}

// DeleteVectorStore deletes a vector store. Its files are left in place.
func (c *Client) DeleteVectorStore(ctx context.Context, vectorStoreID string) error {
	if err := c.delete(ctx, join("vector_stores", vectorStoreID)); err != nil {
		return fmt.Errorf("failed to delete vector store %s: %w", vectorStoreID, err)
	}
	return nil
}
