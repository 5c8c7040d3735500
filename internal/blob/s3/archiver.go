package s3blob

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/alanyoungcy/spikebot/internal/domain"
)

// JournalSource is the slice of the trade journal the archiver needs:
// listing closed trades older than a cutoff and deleting them once the
// export is safely in object storage.
type JournalSource interface {
	ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ClosedTrade, error)
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TradeArchive implements domain.Archiver by exporting closed trades older
// than a cutoff to an S3-compatible bucket as gzipped NDJSON, then deleting
// the exported rows. Rows are deleted only after a HeadObject check confirms
// the uploaded object is retrievable.
type TradeArchive struct {
	journal JournalSource
	writer  domain.BlobWriter
	reader  domain.BlobReader
	prefix  string
	logger  *slog.Logger
}

// NewTradeArchive creates a TradeArchive that stores exports under the given
// key prefix.
func NewTradeArchive(journal JournalSource, writer domain.BlobWriter, reader domain.BlobReader, prefix string, logger *slog.Logger) *TradeArchive {
	return &TradeArchive{
		journal: journal,
		writer:  writer,
		reader:  reader,
		prefix:  prefix,
		logger:  logger.With(slog.String("component", "trade_archive")),
	}
}

// archivedTrade is the NDJSON record format. Field names match the journal's
// column names so archived rows read the same as live ones.
type archivedTrade struct {
	ID         string    `json:"id"`
	AssetID    string    `json:"asset_id"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	ExitPrice  float64   `json:"exit_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitReason string    `json:"exit_reason"`
	PnLPct     float64   `json:"pnl_pct"`
	PnLCash    float64   `json:"pnl_cash"`
}

// ArchiveClosedTrades exports every closed trade with an exit time strictly
// before the cutoff and deletes the exported rows from the journal. Exit
// times are assigned at close, so no new row can enter the cutoff window
// between the list and the delete. Returns the number of exported trades.
func (a *TradeArchive) ArchiveClosedTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.journal.ListClosedBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list closed trades: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalGzipNDJSON(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: encode archive: %w", err)
	}

	key := a.archiveKey(time.Now().UTC())
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/gzip"); err != nil {
		return 0, fmt.Errorf("s3blob: upload archive %s: %w", key, err)
	}

	// Verify the object landed before destroying the source rows.
	ok, err := a.reader.Exists(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("s3blob: verify archive %s: %w", key, err)
	}
	if !ok {
		return 0, fmt.Errorf("s3blob: verify archive %s: object missing after upload", key)
	}

	deleted, err := a.journal.DeleteClosedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: delete archived rows: %w", err)
	}

	a.logger.InfoContext(ctx, "closed trades archived",
		slog.String("path", key),
		slog.Int("exported", len(trades)),
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", before),
	)

	return int64(len(trades)), nil
}

// archiveKey builds the object key for an export, named by the run time so
// successive runs never overwrite each other.
//
//	archive/closed_trades/2026-08-22T07-30-00Z.ndjson.gz
func (a *TradeArchive) archiveKey(now time.Time) string {
	name := now.Format("2006-01-02T15-04-05Z") + ".ndjson.gz"
	return path.Join(a.prefix, "closed_trades", name)
}

// marshalGzipNDJSON serialises trades as newline-delimited JSON and
// compresses the result with gzip.
func marshalGzipNDJSON(trades []domain.ClosedTrade) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	enc := json.NewEncoder(gz)
	enc.SetEscapeHTML(false)

	for i, t := range trades {
		rec := archivedTrade{
			ID:         t.ID,
			AssetID:    t.Asset,
			EntryPrice: t.EntryPrice,
			EntryTime:  t.EntryTime,
			ExitPrice:  t.ExitPrice,
			ExitTime:   t.ExitTime,
			ExitReason: string(t.Reason),
			PnLPct:     t.PnLPct,
			PnLCash:    t.PnLCash,
		}
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}

	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}
