package dto

import (
	"time"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/session"
)

type ImageResponse struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	MimeType         string     `json:"mime_type"`
	Format           string     `json:"format"`
	Size             int64      `json:"size"`
	Width            int        `json:"width,omitempty"`
	Height           int        `json:"height,omitempty"`
	Version          int64      `json:"version"`
	Transformations  int        `json:"transformations"`
	Status           string     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CommittedAt      *time.Time `json:"committed_at,omitempty"`

	// URLs
	OriginalURL string `json:"original_url"`
	FileURL     string `json:"file_url"`
}

type ImageListResponse struct {
	Images []*ImageResponse `json:"images"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type TransformationResponse struct {
	Version    int64             `json:"version"`
	Seq        int               `json:"seq"`
	Descriptor domain.Descriptor `json:"descriptor"`
	AppliedAt  time.Time         `json:"applied_at"`
}

type SessionResponse struct {
	session.View
	FileURL string `json:"file_url"`
}

type QueueResponse struct {
	Transformations []domain.Descriptor `json:"transformations"`
	Length          int                 `json:"length"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`

	// FailedAt and Kind are set when a commit stopped at a failing step.
	FailedAt *int   `json:"failed_at,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

func MapImageToResponse(img *domain.Image, baseURL string) *ImageResponse {
	if img == nil {
		return nil
	}

	return &ImageResponse{
		ID:               img.ID,
		OriginalFilename: img.OriginalFilename,
		MimeType:         img.Format.ContentType(),
		Format:           string(img.Format),
		Size:             img.Size,
		Width:            img.Width,
		Height:           img.Height,
		Version:          img.Version,
		Transformations:  img.Transformations,
		Status:           string(img.Status),
		ErrorMessage:     img.ErrorMessage,
		CreatedAt:        img.CreatedAt,
		UpdatedAt:        img.UpdatedAt,
		CommittedAt:      img.CommittedAt,
		OriginalURL:      baseURL + "/image/" + img.ID + "/file?original=true",
		FileURL:          baseURL + "/image/" + img.ID + "/file",
	}
}

func MapImagesToResponse(images []*domain.Image, baseURL string, limit, offset int) *ImageListResponse {
	responses := make([]*ImageResponse, 0, len(images))
	for _, img := range images {
		responses = append(responses, MapImageToResponse(img, baseURL))
	}

	return &ImageListResponse{
		Images: responses,
		Total:  len(responses),
		Limit:  limit,
		Offset: offset,
	}
}

func MapTransformations(applied []domain.AppliedTransformation) []TransformationResponse {
	out := make([]TransformationResponse, 0, len(applied))
	for _, t := range applied {
		out = append(out, TransformationResponse{
			Version:    t.Version,
			Seq:        t.Seq,
			Descriptor: t.Descriptor,
			AppliedAt:  t.AppliedAt,
		})
	}
	return out
}

func MapSession(s *session.Session, baseURL string) *SessionResponse {
	view := s.View()
	return &SessionResponse{
		View:    view,
		FileURL: baseURL + "/image/" + view.Image.ID + "/file",
	}
}
