package ollama

import (
	"context"
	"fmt"

	"github.com/ybolotov/deep-research/internal/core/ports"
)

// Writer produces the final report from the assembled context.
type Writer struct {
	client *Client
}

func NewWriter(client *Client) *Writer {
	return &Writer{client: client}
}

func (w *Writer) WriteReport(ctx context.Context, in ports.ReportInput) (string, error) {
	report, err := w.client.Complete(ctx, buildReportPrompt(in))
	if err != nil {
		return "", err
	}
	if report == "" {
		return "", fmt.Errorf("report generation returned empty text")
	}
	return report, nil
}
