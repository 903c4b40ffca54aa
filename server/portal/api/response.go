package api

import (
	"pyrus_portal/server/common/transport/httpresp"
)

const (
	ErrUnauthorized       = httpresp.ErrUnauthorized
	ErrInvalidCredentials = httpresp.ErrInvalidCredentials
	ErrInvalidClientID    = httpresp.ErrInvalidClientID
	ErrClientNotFound     = httpresp.ErrClientNotFound
)

type ListResponse[T any] struct {
	Items []T `json:"items"`
}

type ErrorResponse = httpresp.ErrorResponse
type OKResponse = httpresp.OKResponse
type IDResponse = httpresp.IDResponse
type URLResponse = httpresp.URLResponse
type TokenResponse = httpresp.TokenResponse

type HealthResponse struct {
	Status string `json:"status"`
}

type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"object_key"`
}

func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items}
}

func NewErrorResponse(message string) ErrorResponse {
	return httpresp.NewErrorResponse(message)
}

func NewOKResponse() OKResponse {
	return httpresp.NewOKResponse()
}

func NewIDResponse(id string) IDResponse {
	return httpresp.NewIDResponse(id)
}

func NewURLResponse(url string) URLResponse {
	return httpresp.NewURLResponse(url)
}

func NewTokenResponse(accessToken string, userID string, clientID string, role string) TokenResponse {
	return httpresp.NewTokenResponse(accessToken, userID, clientID, role)
}

func NewHealthResponse(status string) HealthResponse {
	return HealthResponse{Status: status}
}

func NewUploadResponse(uploadURL, objectKey string) UploadResponse {
	return UploadResponse{UploadURL: uploadURL, ObjectKey: objectKey}
}
