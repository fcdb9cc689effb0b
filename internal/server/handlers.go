package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	curvenotes "curve-analyzer"
	"curve-analyzer/curvelog"
	"curve-analyzer/derive"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const (
	uploadField     = "file"
	defaultUploadAs = "upload.log"
)

// analyzeQuery holds the optional query overrides of /api/v1/analyze.
type analyzeQuery struct {
	Window int `query:"window" validate:"min=1,max=1000"`
}

// fieldError describes one rejected parameter.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	parsed, err := s.parse(data)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "log parsed",
		slog.String("file", name),
		slog.Int("records", len(parsed.Records)),
		slog.Int("samples", parsed.SampleCount()),
		slog.Int("diagnostics", len(parsed.Diagnostics)),
	)
	render.JSON(w, r, parsed)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	q, err := s.analyzeQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name, data, err := s.readUpload(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	parsed, err := s.parse(data)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	cfg := curvenotes.Config{
		SmoothingWindow: q.Window,
		DwellVelocity:   s.cfg.Analysis.DwellVelocity,
		Parallelism:     s.cfg.Analysis.Parallelism,
	}
	analysis, err := curvenotes.AnalyzeParsed(r.Context(), name, parsed, cfg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.observeDiagnostics(derive.Diagnostics(analysis.Enriched))

	s.logger.InfoContext(r.Context(), "log analyzed",
		slog.String("file", name),
		slog.Int("records", analysis.RecordCount),
		slog.Int("timed_samples", analysis.TimedSampleCount),
		slog.Int("window", analysis.SmoothingWindow),
		slog.Int("warnings", len(analysis.Warnings)),
	)
	render.JSON(w, r, analysis)
}

func (s *Server) analyzeQuery(r *http.Request) (analyzeQuery, error) {
	q := analyzeQuery{Window: s.cfg.Analysis.SmoothingWindow}
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, errInvalidParameter([]fieldError{{Field: "window", Message: "must be an integer"}})
		}
		q.Window = n
	}
	if err := s.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return q, err
		}
		details := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %q constraint %s", fe.Tag(), fe.Param()),
			})
		}
		return q, errInvalidParameter(details)
	}
	return q, nil
}

// readUpload returns the log carried by the request: the multipart field
// "file" when the body is a form, otherwise the raw body.
func (s *Server) readUpload(r *http.Request) (string, []byte, error) {
	name := defaultUploadAs
	if v := strings.TrimSpace(r.URL.Query().Get("name")); v != "" {
		name = filepath.Base(v)
	}

	var data []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile(uploadField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", nil, err
			}
			return "", nil, errInvalidRequest(fmt.Sprintf("multipart field %q is required", uploadField))
		}
		defer file.Close()
		if header.Filename != "" {
			name = filepath.Base(header.Filename)
		}
		if data, err = io.ReadAll(file); err != nil {
			return "", nil, err
		}
	} else {
		var err error
		if data, err = io.ReadAll(r.Body); err != nil {
			return "", nil, err
		}
	}

	if len(data) == 0 {
		return "", nil, curvelog.ErrEmptyInput
	}
	return name, data, nil
}

func (s *Server) parse(data []byte) (*curvelog.ParseResult, error) {
	start := time.Now()
	parsed, err := curvelog.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	s.metrics.observeParse(time.Since(start), parsed)
	return parsed, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiErrorFor(err, s.cfg.Server.MaxUploadBytes)
	level := slog.LevelWarn
	if apiErr.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("error_code", apiErr.ErrorCode),
		slog.String("error", err.Error()),
	)
	_ = render.Render(w, r, apiErr)
}
