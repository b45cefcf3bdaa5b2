// Cloudinary upload API implementation of [MediaStorage]
//
// Request signing based on https://cloudinary.com/documentation/authentication_signatures
package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/zylofm/internal/shared"
)

const cloudinaryBaseURL = "https://api.cloudinary.com"

// CloudinaryUpload is the subset of the upload response ZyloFM uses.
type CloudinaryUpload struct {
	PublicID     string  `json:"public_id"`
	SecureURL    string  `json:"secure_url"`
	ResourceType string  `json:"resource_type"`
	Format       string  `json:"format"`
	Bytes        int64   `json:"bytes"`
	Duration     float64 `json:"duration"`
}

type cloudinaryError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CloudinaryStorage implements [MediaStorage] with signed requests to the Cloudinary upload API.
type CloudinaryStorage struct {
	cloudName  string
	apiKey     string
	apiSecret  string
	folder     string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewCloudinaryStorage creates a new Cloudinary backend with the given credentials.
func NewCloudinaryStorage(cfg shared.CloudinaryConfig, client *http.Client) (*CloudinaryStorage, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: cloudinary cloud_name, api_key and api_secret are required", shared.ErrMissingConfig)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = cloudinaryBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	return &CloudinaryStorage{
		cloudName:  cfg.CloudName,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		folder:     strings.Trim(cfg.Folder, "/"),
		baseURL:    baseURL,
		httpClient: client,
		now:        time.Now,
	}, nil
}

func (c *CloudinaryStorage) Name() string {
	return "cloudinary"
}

// resourceType maps a [MediaKind] to a Cloudinary resource type. Audio is stored as "video".
func resourceType(kind MediaKind) string {
	if kind == MediaAudio {
		return "video"
	}
	return "image"
}

// Sign computes the request signature: SHA-1 over the sorted key=value pairs joined with '&',
// followed by the API secret. Empty values are skipped.
func (c *CloudinaryStorage) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}

func (c *CloudinaryStorage) endpoint(kind MediaKind, action string) string {
	return fmt.Sprintf("%s/v1_1/%s/%s/%s", c.baseURL, c.cloudName, resourceType(kind), action)
}

// Upload streams the file to Cloudinary as a signed multipart request.
func (c *CloudinaryStorage) Upload(ctx context.Context, req UploadRequest) (*StoredMedia, error) {
	if req.Body == nil {
		return nil, fmt.Errorf("%w: empty upload", shared.ErrInvalidInput)
	}

	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
		"folder":    path.Join(c.folder, req.Folder),
	}
	params["signature"] = c.Sign(params)
	params["api_key"] = c.apiKey

	body, contentType, written := multipartStream(params, req)
	var result CloudinaryUpload
	err := c.do(ctx, c.endpoint(req.Kind, "upload"), contentType, body, &result)
	body.Close()

	// Errors reading req.Body, such as a size cap, take precedence over the transport error.
	if werr := <-written; werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		return nil, werr
	}
	if err != nil {
		return nil, err
	}

	return &StoredMedia{
		PublicID:        result.PublicID,
		URL:             result.SecureURL,
		Kind:            req.Kind,
		Bytes:           result.Bytes,
		Format:          result.Format,
		DurationSeconds: int(math.Round(result.Duration)),
	}, nil
}

// Delete destroys an uploaded asset. Cloudinary answers "not found" for missing assets, which is ignored.
func (c *CloudinaryStorage) Delete(ctx context.Context, publicID string, kind MediaKind) error {
	if publicID == "" {
		return nil
	}

	params := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	params["signature"] = c.Sign(params)
	params["api_key"] = c.apiKey

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	var result struct {
		Result string `json:"result"`
	}
	err := c.do(ctx, c.endpoint(kind, "destroy"), "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &result)
	if err != nil {
		return err
	}
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("%w: cloudinary destroy returned %q", shared.ErrAPIRequest, result.Result)
	}
	return nil
}

func (c *CloudinaryStorage) do(ctx context.Context, endpoint, contentType string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr cloudinaryError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: cloudinary status %d", shared.ErrServiceUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("%w: cloudinary status %d: %s", shared.ErrAPIRequest, resp.StatusCode, apiErr.Error.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// multipartStream encodes params and req.Body as multipart form data through a pipe.
// The channel reports the writer's result once it finishes.
func multipartStream(params map[string]string, req UploadRequest) (io.ReadCloser, string, <-chan error) {
	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	written := make(chan error, 1)

	go func() {
		err := writeMultipart(w, params, req)
		pw.CloseWithError(err)
		written <- err
	}()
	return pr, w.FormDataContentType(), written
}

func writeMultipart(w *multipart.Writer, params map[string]string, req UploadRequest) error {
	for k, v := range params {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	filename := req.Filename
	if filename == "" {
		filename = "upload"
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, req.Body); err != nil {
		return fmt.Errorf("failed to copy upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return nil
}
