package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"presupuesto/internal/core"
)

// ReceiptTask resolves the receipt attached to a transaction. It runs off
// the writer goroutine; the transaction is appended once it returns.
type ReceiptTask func(ctx context.Context) (*core.Receipt, error)

// ReceiptFromReader returns a task that hashes r into a content reference.
// Only the reference is kept; the bytes are discarded.
func ReceiptFromReader(name, contentType string, r io.Reader) ReceiptTask {
	return func(ctx context.Context) (*core.Receipt, error) {
		h := sha256.New()
		n, err := io.Copy(h, readerWithContext{ctx: ctx, r: r})
		if err != nil {
			return nil, fmt.Errorf("read receipt %q: %w", name, err)
		}
		return &core.Receipt{
			Ref:         "sha256:" + hex.EncodeToString(h.Sum(nil)),
			Name:        name,
			ContentType: contentType,
			Size:        n,
		}, nil
	}
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (rc readerWithContext) Read(p []byte) (int, error) {
	if err := rc.ctx.Err(); err != nil {
		return 0, err
	}
	return rc.r.Read(p)
}
