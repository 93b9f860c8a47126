package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrInvalidBookID   = errors.New("book id must be a positive integer")
	ErrEmptyBody       = errors.New("request body is empty")
	ErrEmptyBookUpdate = errors.New("at least one field must be provided")
	ErrTrailingData    = errors.New("body must only contain a single JSON value")
)

type ContextKey string

const (
	RequestIDPrefix         string     = "r"
	RequestIDContextKey     ContextKey = "request.id"
	RequestNumberContextKey ContextKey = "request.number"
)

// GetValueFromContext returns the value of a given key in the context
// if this key is not available, it returns an empty string.
func GetValueFromContext(ctx context.Context, contextKey ContextKey) string {
	if val := ctx.Value(contextKey); val != nil {
		return val.(string)
	}
	return ""
}

// GetRequestNumberFromContext returns the request number set in
// the context. if not previously set then it returns 0.
func GetRequestNumberFromContext(ctx context.Context) uint64 {
	if val := ctx.Value(RequestNumberContextKey); val != nil {
		return val.(uint64)
	}
	return 0
}

// ParseBookID converts a path parameter into a book id.
func ParseBookID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidBookID
	}
	return id, nil
}

// newBodyDecoder keeps numbers as json.Number so that the year value
// reaches the validator with its original JSON type.
func newBodyDecoder(r *http.Request) (*json.Decoder, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, ErrEmptyBody
	}
	d := json.NewDecoder(r.Body)
	d.UseNumber()
	return d, nil
}

// decodeSingle decodes exactly one JSON value into dst. A field unknown
// to dst is reported as an unknown_field violation.
func decodeSingle(d *json.Decoder, dst any) error {
	if err := d.Decode(dst); err != nil {
		if field, found := strings.CutPrefix(err.Error(), "json: unknown field "); found {
			return newValidationError(strings.Trim(field, `"`), ViolationUnknownField)
		}
		return err
	}
	if err := d.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}

// DecodeCreateBookRequestBody is a helper function to read the content of a book creation request.
func DecodeCreateBookRequestBody(r *http.Request, in *BookInput) error {
	d, err := newBodyDecoder(r)
	if err != nil {
		return err
	}
	var raw struct {
		Name          any `json:"name"`
		Author        any `json:"author"`
		YearPublished any `json:"year_published"`
		BookType      any `json:"book_type"`
	}
	d.DisallowUnknownFields()
	if err := decodeSingle(d, &raw); err != nil {
		return err
	}
	fields := []struct {
		name string
		src  any
		dst  *string
	}{
		{FieldName, raw.Name, &in.Name},
		{FieldAuthor, raw.Author, &in.Author},
		{FieldBookType, raw.BookType, &in.BookType},
	}
	for _, f := range fields {
		switch v := f.src.(type) {
		case nil:
		case string:
			*f.dst = v
		default:
			return newValidationError(f.name, ViolationInvalidType)
		}
	}
	in.YearPublished = raw.YearPublished
	return nil
}

// DecodeUpdateBookRequestBody is a helper function to read the content of a book update request.
func DecodeUpdateBookRequestBody(r *http.Request) (BookChanges, error) {
	d, err := newBodyDecoder(r)
	if err != nil {
		return nil, err
	}
	changes := BookChanges{}
	if err := decodeSingle(d, &changes); err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, ErrEmptyBookUpdate
	}
	return changes, nil
}

// GetRemoteIP returns the IP of the peer connected to the server.
func GetRemoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || net.ParseIP(ip) == nil {
		return ""
	}
	return ip
}

// GetRequestSourceIP helps find the source IP of the caller. Headers are
// set by the client unless a proxy rewrites them.
func GetRequestSourceIP(r *http.Request) string {
	// Get IP from the X-REAL-IP header
	ip := r.Header.Get("X-REAL-IP")
	netIP := net.ParseIP(ip)
	if netIP != nil {
		return ip
	}

	// Get IP from X-FORWARDED-FOR header
	ips := r.Header.Get("X-FORWARDED-FOR")
	splitIps := strings.Split(ips, ",")
	for _, ip := range splitIps {
		ip = strings.TrimSpace(ip)
		netIP = net.ParseIP(ip)
		if netIP != nil {
			return ip
		}
	}

	return GetRemoteIP(r)
}

// IsAppRunningInDocker checks the existence of the .dockerenv
// file at the root directory and returns a boolean result. This
// helps know if the App is running in a docker container or not.
func IsAppRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

// EnsureParentFolder creates the folder holding the given file path.
func EnsureParentFolder(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o700)
}
