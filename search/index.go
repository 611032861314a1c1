package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"interview-lab/domain"

	"github.com/blugelabs/bluge"
)

// Hit is one indexed turn returned by a transcript search.
type Hit struct {
	ParticipantID string
	Index         int
	Role          string
	Content       string
	Lang          string
}

// TranscriptIndex is the full-text index over persisted turns. Writes go
// through the single shared bluge writer; reads open a snapshot reader per
// search.
type TranscriptIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewTranscriptIndex(writer *bluge.Writer, log *slog.Logger) *TranscriptIndex {
	return &TranscriptIndex{writer: writer, log: log}
}

// IndexTurn upserts one turn. The document identity is stable so reindexing
// the same turn never duplicates it.
func (i *TranscriptIndex) IndexTurn(t domain.Turn) error {
	docID := fmt.Sprintf("%s:%06d", t.ParticipantID, t.Index)
	doc := bluge.NewDocument(docID).
		AddField(bluge.NewKeywordField("participant", t.ParticipantID).StoreValue()).
		AddField(bluge.NewKeywordField("role", string(t.Role)).StoreValue()).
		AddField(bluge.NewTextField("content", t.Content).StoreValue()).
		AddField(bluge.NewKeywordField("lang", t.Lang).StoreValue()).
		AddField(bluge.NewKeywordField("index", strconv.Itoa(t.Index)).StoreValue()).
		AddField(bluge.NewDateTimeField("created_at", t.CreatedAt))

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index turn %s: %w", docID, err)
	}
	return nil
}

// Search runs a full-text query over indexed turns and returns the matching
// page plus the total match count.
func (i *TranscriptIndex) Search(ctx context.Context, q *Query) ([]Hit, uint64, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("open index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	boolean := bluge.NewBooleanQuery()
	if q.Terms != "" {
		boolean.AddMust(bluge.NewMatchQuery(q.Terms).SetField("content"))
	} else {
		boolean.AddMust(bluge.NewMatchAllQuery())
	}
	if q.ParticipantID != "" {
		boolean.AddMust(bluge.NewTermQuery(q.ParticipantID).SetField("participant"))
	}
	if q.Role != "" {
		boolean.AddMust(bluge.NewTermQuery(q.Role).SetField("role"))
	}

	request := bluge.NewTopNSearch(q.Limit, boolean).
		SetFrom(q.Page * q.Limit).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("search failed: %w", err)
	}

	var hits []Hit
	match, err := iterator.Next()
	for err == nil && match != nil {
		var hit Hit
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "participant":
				hit.ParticipantID = string(value)
			case "role":
				hit.Role = string(value)
			case "content":
				hit.Content = string(value)
			case "lang":
				hit.Lang = string(value)
			case "index":
				hit.Index, _ = strconv.Atoi(string(value))
			}
			return true
		})
		if visitErr != nil {
			i.log.Warn("Failed to load stored fields", "error", visitErr)
		} else {
			hits = append(hits, hit)
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("iterate results: %w", err)
	}

	return hits, iterator.Aggregations().Count(), nil
}
