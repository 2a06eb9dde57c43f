package ragcore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autoversio/ragcore/metrics"
	"github.com/autoversio/ragcore/schema"
)

// IngestDocument chunks, embeds and indexes one document. The commit is
// all-or-nothing: a document reaches `embedded` only after every chunk is
// in the index, and any failure flips it to `failed` with nothing
// committed. The returned Document carries the final status.
func (c *Client) IngestDocument(ctx context.Context, workspaceID, filename, text string) (schema.Document, error) {
	doc := schema.Document{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Filename:    filename,
		Text:        text,
		Status:      schema.StatusUnembedded,
		CreatedAt:   time.Now().UTC(),
	}
	c.track(doc)

	chunks, err := c.splitter.Split(doc.ID, filename, text)
	if err != nil {
		return c.fail(doc, fmt.Errorf("%w: %v", schema.ErrConversionFailure, err))
	}
	if len(chunks) == 0 {
		return c.fail(doc, fmt.Errorf("%w: document produced no chunks", schema.ErrConversionFailure))
	}

	doc.Status = schema.StatusEmbedding
	c.track(doc)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	dense, sparse, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return c.fail(doc, err)
	}
	for i := range chunks {
		chunks[i].Dense = dense[i]
		chunks[i].Sparse = sparse[i]
	}

	if err := c.index.EnsureWorkspace(ctx, workspaceID, len(dense[0])); err != nil {
		return c.fail(doc, err)
	}
	if err := c.index.Upsert(ctx, workspaceID, chunks); err != nil {
		return c.fail(doc, err)
	}

	doc.Status = schema.StatusEmbedded
	c.track(doc)
	c.results.Invalidate(workspaceID + ":")
	metrics.ObserveIngest("embedded", len(chunks))
	c.log.Info("document ingested",
		zap.String("workspace", workspaceID),
		zap.String("document", doc.ID),
		zap.Int("chunks", len(chunks)))
	return doc, nil
}

// DeleteDocument removes the document's chunks from the index and stops
// tracking it. Other documents in the workspace are untouched.
func (c *Client) DeleteDocument(ctx context.Context, workspaceID, documentID string) error {
	if err := c.index.DeleteDocument(ctx, workspaceID, documentID); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.docs, documentID)
	c.mu.Unlock()
	c.results.Invalidate(workspaceID + ":")
	return nil
}

// DropWorkspace deletes the workspace collection and every tracked
// document in it.
func (c *Client) DropWorkspace(ctx context.Context, workspaceID string) error {
	if err := c.index.DropWorkspace(ctx, workspaceID); err != nil {
		return err
	}
	c.mu.Lock()
	for id, d := range c.docs {
		if d.WorkspaceID == workspaceID {
			delete(c.docs, id)
		}
	}
	c.mu.Unlock()
	c.results.Invalidate(workspaceID + ":")
	return nil
}

func (c *Client) track(doc schema.Document) {
	c.mu.Lock()
	c.docs[doc.ID] = doc
	c.mu.Unlock()
}

func (c *Client) fail(doc schema.Document, err error) (schema.Document, error) {
	doc.Status = schema.StatusFailed
	c.track(doc)
	metrics.ObserveIngest("failed", 0)
	c.log.Warn("document ingest failed",
		zap.String("workspace", doc.WorkspaceID),
		zap.String("document", doc.ID),
		zap.Error(err))
	return doc, err
}
