package qdrant

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

const scrollPageSize = 256

// LoadRecords scrolls the whole collection and returns every chunk payload.
// Vectors are not fetched; the retriever queries Qdrant for them.
func (c *Client) LoadRecords(ctx context.Context) ([]domain.ChunkRecord, error) {
	url := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, c.collection)

	var (
		records []domain.ChunkRecord
		offset  any
	)
	for {
		reqBody := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			reqBody["offset"] = offset
		}

		var scrollResp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := c.call(ctx, "qdrant_scroll", http.MethodPost, url, reqBody, &scrollResp); err != nil {
			return nil, err
		}

		for _, p := range scrollResp.Result.Points {
			records = append(records, domain.ChunkRecord{Chunk: chunkFromPayload(p.Payload)})
		}
		if scrollResp.Result.NextPageOffset == nil || len(scrollResp.Result.Points) == 0 {
			break
		}
		offset = scrollResp.Result.NextPageOffset
	}
	return records, nil
}
