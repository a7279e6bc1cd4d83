package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "tillcore/internal/core/context"
	"tillcore/internal/core/id"
	"tillcore/internal/domain"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the size above which changes are stored compressed.
const DefaultCompressThreshold = 10 * 1024

// AuditEntry is one archived state change.
type AuditEntry struct {
	ID                id.ID              `db:"id"`
	EntityType        string             `db:"entity_type"`
	EntityID          id.ID              `db:"entity_id"`
	Ref               *string            `db:"ref"`
	Action            domain.AuditAction `db:"action"`
	UserID            string             `db:"user_id"`
	RequestID         string             `db:"request_id"`
	Changes           json.RawMessage    `db:"changes"`
	ChangesCompressed []byte             `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo    `db:"compression_algo"`
	CreatedAt         time.Time          `db:"created_at"`
}

// AuditService archives records before they are removed.
type AuditService struct {
	txManager *TxManager
	codec     *auditCodec
}

var _ domain.AuditLogger = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	codec, err := newAuditCodec(DefaultCompressThreshold)
	if err != nil {
		return nil, err
	}
	return &AuditService{txManager: txManager, codec: codec}, nil
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.UserID == "" {
		entry.UserID = appctx.GetUserID(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = appctx.GetRequestID(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo = s.codec.pack(entry.Changes)

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, ref, action, user_id, request_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Ref, entry.Action,
		entry.UserID, entry.RequestID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)
	if err != nil {
		return Classify(fmt.Errorf("insert audit entry: %w", err))
	}
	return nil
}

// LogChange implements domain.AuditLogger. A string "hold_id" in changes
// becomes the searchable reference of the entry.
func (s *AuditService) LogChange(
	ctx context.Context,
	entityType string,
	entityID id.ID,
	action domain.AuditAction,
	changes map[string]any,
) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	entry := AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changesJSON,
	}
	if ref, ok := changes["hold_id"].(string); ok && ref != "" {
		entry.Ref = &ref
	}
	return s.Log(ctx, entry)
}

// History returns archived entries of entityType with the given reference,
// newest first, with changes decompressed.
func (s *AuditService) History(ctx context.Context, entityType, ref string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []AuditEntry
	err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &entries, `
		SELECT id, entity_type, entity_id, ref, action, user_id, request_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND ref = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, ref, limit)
	if err != nil {
		return nil, Classify(fmt.Errorf("query audit history: %w", err))
	}

	for i := range entries {
		if err := s.codec.unpack(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// auditCodec compresses large change sets with zstd.
type auditCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

func newAuditCodec(threshold int) (*auditCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &auditCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

func (c *auditCodec) pack(changes json.RawMessage) (json.RawMessage, []byte, CompressionAlgo) {
	if len(changes) <= c.threshold {
		return changes, nil, CompressionNone
	}
	return nil, c.encoder.EncodeAll(changes, nil), CompressionZstd
}

func (c *auditCodec) unpack(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	decompressed, err := c.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = decompressed
	e.ChangesCompressed = nil
	return nil
}
