package service

import (
	"context"
	"errors"

	"rag-backend/internal/storage"
	"rag-backend/internal/tasks"
)

// Payload keys for process_document tasks.
const (
	PayloadLocation = "location"
	PayloadFilename = "filename"
)

// ProcessDocumentHandler ingests an upload previously saved to uploads.
func (s *RAGService) ProcessDocumentHandler(uploads storage.Store) tasks.Handler {
	return func(ctx context.Context, payload map[string]string) (string, error) {
		location := payload[PayloadLocation]
		if location == "" {
			return "", errors.New("payload is missing " + PayloadLocation)
		}
		name := payload[PayloadFilename]
		if name == "" {
			name = location
		}
		name, err := storage.CleanFilename(name)
		if err != nil {
			return "", err
		}
		data, err := uploads.Load(ctx, location)
		if err != nil {
			return "", err
		}
		res, err := s.Ingest(ctx, name, data)
		if err != nil {
			return "", err
		}
		return Message(res), nil
	}
}
