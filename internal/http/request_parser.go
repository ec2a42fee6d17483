package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"remanejo/internal/realloc"
)

const (
	// MaxUploadBytes bounds the size of an uploaded workbook.
	MaxUploadBytes = 32 << 20

	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

var (
	ErrMissingFile  = errors.New("missing workbook in form field \"file\"")
	ErrFileTooLarge = fmt.Errorf("workbook larger than %d MiB", MaxUploadBytes>>20)
)

// upload is a workbook received in a multipart form.
type upload struct {
	name string
	data []byte
}

// parseUpload reads the "file" part of a multipart request.
func parseUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return nil, ErrMissingFile
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	name := sanitizeInput(filepath.Base(header.Filename))
	if name == "" || name == "." || name == "/" {
		name = "upload.xlsx"
	}
	return &upload{name: name, data: data}, nil
}

// parseRules applies the optional prohibited_fund and prohibited_natures
// form fields to base.
func parseRules(form url.Values, base realloc.Config) (realloc.Config, error) {
	rules := base
	if form.Has("prohibited_fund") {
		fund, err := realloc.ParseProhibitedFund(form.Get("prohibited_fund"))
		if err != nil {
			return rules, err
		}
		rules.ProhibitedFund = fund
	}
	if form.Has("prohibited_natures") {
		rules.ProhibitedNatures = realloc.ParseCodeList(form.Get("prohibited_natures"))
	}
	return rules, rules.Validate()
}

// parseLimit reads ?limit=, clamped to [1, maxHistoryLimit].
func parseLimit(query url.Values) int {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return defaultHistoryLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return defaultHistoryLimit
	}
	return min(n, maxHistoryLimit)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
