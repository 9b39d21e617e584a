// Package mistral is a minimal client for the Mistral OCR and audio
// transcription endpoints.
package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.mistral.ai"

// DefaultTimeout bounds a single API call. OCR of large documents is slow,
// so this is generous, but a hung connection still gets cut off.
const DefaultTimeout = 120 * time.Second

// DefaultOCRModel is the OCR model used when none is configured.
const DefaultOCRModel = "mistral-ocr-latest"

// DefaultTranscriptionModel is the speech-to-text model used when none is configured.
const DefaultTranscriptionModel = "voxtral-mini-latest"

// Client calls the Mistral API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client with the given API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OCRResult is the response of an OCR request.
type OCRResult struct {
	Pages []Page    `json:"pages"`
	Model string    `json:"model"`
	Usage UsageInfo `json:"usage_info"`
}

// Page is one OCR'd page. Markdown preserves headings, tables, and figure
// references.
type Page struct {
	Index    int     `json:"index"`
	Markdown string  `json:"markdown"`
	Images   []Image `json:"images,omitempty"`
}

// Image is an embedded image extracted during OCR.
type Image struct {
	ID     string `json:"id"`
	Base64 string `json:"image_base64"`
}

// UsageInfo reports what the API billed for.
type UsageInfo struct {
	PagesProcessed int `json:"pages_processed"`
	DocSizeBytes   int `json:"doc_size_bytes"`
}

// Transcription is the response of an audio transcription request.
type Transcription struct {
	Text     string `json:"text"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

type signedURLResponse struct {
	URL string `json:"url"`
}

type ocrRequest struct {
	Model              string      `json:"model"`
	Document           documentRef `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

type documentRef struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

// ProcessDocument runs the three-step OCR flow: upload the file, fetch a
// short-lived signed URL for it, then request OCR against that URL.
func (c *Client) ProcessDocument(ctx context.Context, path, model string, includeImages bool) (*OCRResult, error) {
	if model == "" {
		model = DefaultOCRModel
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	c.log.Debug().Str("file", filepath.Base(path)).Int("bytes", len(data)).Msg("uploading document")
	fileID, err := c.uploadFile(ctx, filepath.Base(path), data)
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	signedURL, err := c.signedURL(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("get signed url: %w", err)
	}

	req := ocrRequest{
		Model:              model,
		Document:           documentRef{Type: "document_url", DocumentURL: signedURL},
		IncludeImageBase64: includeImages,
	}

	var result OCRResult
	if err := c.postJSON(ctx, "/v1/ocr", req, &result); err != nil {
		return nil, err
	}

	c.log.Debug().Int("pages", len(result.Pages)).Msg("ocr complete")
	return &result, nil
}

// Transcribe sends an audio file for transcription.
func (c *Client) Transcribe(ctx context.Context, path, model string) (*Transcription, error) {
	if model == "" {
		model = DefaultTranscriptionModel
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	body, contentType, err := encodeMultipart(map[string]string{"model": model}, "file", filepath.Base(path), data)
	if err != nil {
		return nil, err
	}

	respBody, err := c.do(ctx, http.MethodPost, "/v1/audio/transcriptions", body, contentType)
	if err != nil {
		return nil, err
	}

	var result Transcription
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse transcription response: %w", err)
	}
	return &result, nil
}

// uploadFile uploads raw bytes with purpose=ocr and returns the file ID.
func (c *Client) uploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	body, contentType, err := encodeMultipart(map[string]string{"purpose": "ocr"}, "file", filename, data)
	if err != nil {
		return "", err
	}

	respBody, err := c.do(ctx, http.MethodPost, "/v1/files", body, contentType)
	if err != nil {
		return "", err
	}

	var upload uploadResponse
	if err := json.Unmarshal(respBody, &upload); err != nil {
		return "", fmt.Errorf("parse upload response: %w", err)
	}
	return upload.ID, nil
}

// signedURL fetches a short-lived download URL for an uploaded file.
func (c *Client) signedURL(ctx context.Context, fileID string) (string, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/v1/files/"+fileID+"/url?expiry=1", nil, "")
	if err != nil {
		return "", err
	}

	var signed signedURLResponse
	if err := json.Unmarshal(respBody, &signed); err != nil {
		return "", fmt.Errorf("parse signed url response: %w", err)
	}
	return signed.URL, nil
}

// postJSON performs a JSON POST and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	respBody, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	return json.Unmarshal(respBody, out)
}

// do performs an authenticated request and returns the response body.
// Responses with status >= 400 become classified APIErrors.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// encodeMultipart builds a multipart/form-data body with simple fields plus
// one file part.
func encodeMultipart(fields map[string]string, fileField, filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile(fileField, filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
