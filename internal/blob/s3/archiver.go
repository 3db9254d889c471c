package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// multipartThreshold is the payload size above which uploads switch to the
// multipart manager.
const multipartThreshold = 8 * 1024 * 1024

// ReportArchiver writes every completed report to object storage as
// <prefix>/reports/YYYY/MM/DD/<id>.json and .md. It implements
// domain.ReportSink.
type ReportArchiver struct {
	writer domain.BlobWriter
	prefix string
}

// NewReportArchiver creates an archiver over writer. prefix may be empty.
func NewReportArchiver(writer domain.BlobWriter, prefix string) *ReportArchiver {
	return &ReportArchiver{writer: writer, prefix: strings.Trim(prefix, "/")}
}

// Name identifies the sink in logs.
func (a *ReportArchiver) Name() string { return "report_archive" }

// Publish uploads the JSON report and its markdown rendering.
func (a *ReportArchiver) Publish(ctx context.Context, r domain.Report) error {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal report %s: %w", r.ID, err)
	}

	base := a.ObjectKey(r)
	if err := a.upload(ctx, base+".json", body, "application/json"); err != nil {
		return err
	}
	return a.upload(ctx, base+".md", []byte(r.Markdown), "text/markdown; charset=utf-8")
}

// ObjectKey returns the key of r without extension.
func (a *ReportArchiver) ObjectKey(r domain.Report) string {
	ts := r.CreatedAt.UTC()
	key := path.Join("reports", ts.Format("2006"), ts.Format("01"), ts.Format("02"), r.ID)
	if a.prefix == "" {
		return key
	}
	return a.prefix + "/" + key
}

func (a *ReportArchiver) upload(ctx context.Context, key string, data []byte, contentType string) error {
	if len(data) > multipartThreshold {
		return a.writer.PutMultipart(ctx, key, bytes.NewReader(data), minPartSize)
	}
	return a.writer.Put(ctx, key, bytes.NewReader(data), contentType)
}
