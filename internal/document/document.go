// Package document loads purchase-order files from disk and renders local
// preview handles for them.
package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"poflow/internal"
)

// Load reads path into a Document. The content type comes from the
// extension, falling back to sniffing the first bytes.
func Load(path string) (internal.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return internal.Document{}, err
	}
	return internal.Document{
		Name:        filepath.Base(path),
		ContentType: contentType(path, data),
		Data:        data,
	}, nil
}

func contentType(path string, data []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mediaType
}

// Previewer writes selected documents into a local directory and hands back
// a file URL for them. Files are content addressed, so selecting the same
// document twice reuses the copy.
type Previewer struct {
	dir string
	log zerolog.Logger
}

func NewPreviewer(dir string, log zerolog.Logger) *Previewer {
	return &Previewer{dir: dir, log: log}
}

func (p *Previewer) Preview(doc internal.Document) (internal.Preview, error) {
	if len(doc.Data) == 0 {
		return internal.Preview{}, fmt.Errorf("preview %s: empty document", doc.Name)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return internal.Preview{}, err
	}

	sum := sha256.Sum256(doc.Data)
	name := hex.EncodeToString(sum[:8]) + ".pdf"
	path, err := filepath.Abs(filepath.Join(p.dir, name))
	if err != nil {
		return internal.Preview{}, err
	}
	if _, err := os.Stat(path); err != nil {
		if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
			return internal.Preview{}, err
		}
	}

	pages, err := CountPages(doc.Data)
	if err != nil {
		p.log.Debug().Err(err).Str("file", doc.Name).Msg("page count unavailable")
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return internal.Preview{URL: u.String(), Pages: pages}, nil
}

// CountPages reports the page count recorded in the PDF page tree.
func CountPages(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}
