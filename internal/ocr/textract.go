// Package ocr extracts question text from homework photos.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/somasaidi/somasaidi/internal/awsx"
)

// Textract runs synchronous text detection on an image.
type Textract struct {
	api awsx.TextractAPI
}

func NewTextract(api awsx.TextractAPI) *Textract {
	return &Textract{api: api}
}

// Extract returns the detected lines joined with newlines and the mean
// line confidence in the 0-100 range. Zero confidence means no lines were
// detected.
func (t *Textract) Extract(ctx context.Context, image []byte) (string, float64, error) {
	out, err := t.api.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: image},
	})
	if err != nil {
		return "", 0, fmt.Errorf("detect document text: %w", err)
	}

	var lines []string
	var total float64
	for _, block := range out.Blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		lines = append(lines, *block.Text)
		if block.Confidence != nil {
			total += float64(*block.Confidence)
		}
	}
	if len(lines) == 0 {
		return "", 0, nil
	}
	return strings.Join(lines, "\n"), total / float64(len(lines)), nil
}
