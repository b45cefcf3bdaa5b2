package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/shared"
	"github.com/desertthunder/zylofm/internal/tasks"
)

// multipartMemory is how much of a multipart body is held in memory before spilling to disk.
const multipartMemory = 32 << 20

type djRequestBody struct {
	Message      string `json:"message"`
	PortfolioURL string `json:"portfolio_url"`
}

type mixChangesBody struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	GenreID         *string `json:"genre_id"`
	DurationSeconds *int    `json:"duration_seconds"`
}

func (s *Server) createDJRequest(w http.ResponseWriter, r *http.Request) {
	var body djRequestBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	req, err := s.moderator.RequestDJ(r.Context(), currentUser(r), body.Message, body.PortfolioURL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, req)
}

func (s *Server) myDJRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.store.Requests.List(map[string]any{"user_id": currentUser(r).ID})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, requests)
}

func (s *Server) myMixes(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{"dj_id": currentUser(r).ID, "status": r.URL.Query().Get("status")}
	mixes, err := s.store.Mixes.List(criteria)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, mixes)
}

// submitMix accepts multipart fields title, description, genre_id and duration_seconds with an
// audio file and an optional cover image.
func (s *Server) submitMix(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	audio, err := formFile(r, "audio")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer closeInput(audio)
	cover, err := formFile(r, "cover")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer closeInput(cover)
	duration, err := formInt(r, "duration_seconds")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	mix, err := s.publisher.SubmitMix(r.Context(), currentUser(r), tasks.MixSubmission{
		Title:           r.FormValue("title"),
		Description:     r.FormValue("description"),
		GenreID:         r.FormValue("genre_id"),
		DurationSeconds: duration,
		Audio:           audio,
		Cover:           cover,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, mix)
}

// updateMix accepts JSON, or multipart when a new cover is attached.
func (s *Server) updateMix(w http.ResponseWriter, r *http.Request) {
	var changes tasks.MixChanges

	if isMultipart(r) {
		if err := s.parseMultipart(w, r); err != nil {
			s.fail(w, r, err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		changes.Title = formString(r, "title")
		changes.Description = formString(r, "description")
		changes.GenreID = formString(r, "genre_id")
		if v := formString(r, "duration_seconds"); v != nil {
			n, err := formInt(r, "duration_seconds")
			if err != nil {
				s.fail(w, r, err)
				return
			}
			changes.DurationSeconds = &n
		}
		cover, err := formFile(r, "cover")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		defer closeInput(cover)
		changes.Cover = cover
	} else {
		var body mixChangesBody
		if err := decodeJSON(r, &body); err != nil {
			s.fail(w, r, err)
			return
		}
		changes = tasks.MixChanges{
			Title:           body.Title,
			Description:     body.Description,
			GenreID:         body.GenreID,
			DurationSeconds: body.DurationSeconds,
		}
	}

	mix, err := s.publisher.UpdateMix(r.Context(), currentUser(r), r.PathValue("id"), changes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, mix)
}

// deleteMix serves both the owner and the admin route; ownership is checked by the publisher.
func (s *Server) deleteMix(w http.ResponseWriter, r *http.Request) {
	if err := s.publisher.DeleteMix(r.Context(), currentUser(r), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadAsset accepts a multipart "file" with "kind" (image or audio) and an optional "folder".
func (s *Server) uploadAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	kind, err := services.ParseMediaKind(r.FormValue("kind"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	file, err := formFile(r, "file")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer closeInput(file)

	media, err := s.publisher.UploadAsset(r.Context(), currentUser(r), kind, r.FormValue("folder"), file)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, media)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart caps the body at the configured upload limits.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	if !isMultipart(r) {
		return fmt.Errorf("%w: expected multipart/form-data", shared.ErrInvalidInput)
	}
	if limit := s.cfg.Uploads.MaxAudioBytes() + s.cfg.Uploads.MaxImageBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+maxJSONBody)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request exceeds %d MB", shared.ErrUploadRejected, tooLarge.Limit>>20)
		}
		return fmt.Errorf("%w: malformed multipart body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

// formFile returns nil when the field is absent.
func formFile(r *http.Request, field string) (*tasks.FileInput, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", shared.ErrInvalidInput, field, err)
	}
	return &tasks.FileInput{Filename: header.Filename, Size: header.Size, Reader: file}, nil
}

// formString returns nil when the field is absent.
func formString(r *http.Request, field string) *string {
	values, ok := r.MultipartForm.Value[field]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

func formInt(r *http.Request, field string) (int, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", shared.ErrInvalidInput, field)
	}
	return n, nil
}

func closeInput(f *tasks.FileInput) {
	if f == nil {
		return
	}
	if c, ok := f.Reader.(io.Closer); ok {
		c.Close()
	}
}
