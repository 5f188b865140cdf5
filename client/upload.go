package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
)

// File is one part of a multipart upload.
type File struct {
	Field  string
	Name   string
	Reader io.Reader
}

// Upload posts fields and files as multipart/form-data.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, files []File, out any) error {
	const op = "client.Upload"

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return fmt.Errorf("%s: %s: %w", op, f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return c.call(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        &buf,
		ContentType: w.FormDataContentType(),
	}, out)
}
