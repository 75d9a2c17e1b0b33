package site

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// DefaultRobotsTxt asks every crawler to stay out of the whole site.
//
//go:embed assets/robots.txt
var DefaultRobotsTxt []byte

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Renderer renders a named template with data into w.
type Renderer interface {
	Execute(w io.Writer, name string, data any) error
}

// PageData is the only value handed to the page template.
type PageData struct {
	Title      string
	Paragraphs []string
	Links      []Link
}

// Asset is an auxiliary file copied verbatim into the site root.
type Asset struct {
	Name    string
	Content []byte
}

// RobotsAsset returns the robots.txt asset with the given content, or
// DefaultRobotsTxt when content is nil.
func RobotsAsset(content []byte) Asset {
	if content == nil {
		content = DefaultRobotsTxt
	}
	return Asset{Name: "robots.txt", Content: content}
}

// ClearDir removes every child of root and keeps root itself. A missing root
// is not an error.
func ClearDir(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return ioError("clear output", err)
	}
	for _, entry := range entries {
		if err = os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			return ioError("clear output", err)
		}
	}
	return nil
}

// WriteSite replaces the contents of root with the rendered pages and the
// given assets. Pages are written in order, so a later page sharing an
// address overwrites an earlier one. The first failure aborts the write.
func WriteSite(ctx context.Context, root string, pages []Page, links []Link, r Renderer, templateName string, assets ...Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ClearDir(root); err != nil {
		return err
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return ioError("create output root", err)
	}

	var buf bytes.Buffer
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := resolve(root, page.Address)
		if err != nil {
			return err
		}

		buf.Reset()
		data := PageData{Title: page.Title, Paragraphs: page.Paragraphs, Links: links}
		if err = r.Execute(&buf, templateName, data); err != nil {
			return configError("render "+page.Address, err)
		}
		if err = writeFile(path, buf.Bytes()); err != nil {
			return err
		}
	}

	for _, asset := range assets {
		path, err := resolve(root, asset.Name)
		if err != nil {
			return err
		}
		if err = writeFile(path, asset.Content); err != nil {
			return err
		}
	}
	return nil
}

// resolve joins an address onto root, refusing anything that would land
// outside it.
func resolve(root, address string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(address)) {
		return "", ioError("resolve", fmt.Errorf("address %q escapes the output root", address))
	}
	return filepath.Join(root, filepath.FromSlash(address)), nil
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return ioError("create directory", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(content)); err != nil {
		return ioError("write "+path, err)
	}
	// atomic.WriteFile leaves new files with the temp file's 0600 mode.
	if err := os.Chmod(path, filePerm); err != nil {
		return ioError("chmod "+path, err)
	}
	return nil
}
