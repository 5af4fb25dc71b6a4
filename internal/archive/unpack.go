/*
Package archive turns completed downloads into the documents the run reports:
zip archives are expanded, plain documents are copied as they are.
*/
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/shanehull/annfetch/internal/types"
)

// ErrUnrecognised reports a download that is neither an archive nor a
// document of the target type, such as an HTML login page.
var ErrUnrecognised = errors.New("unrecognised download")

type Kind int

const (
	KindUnknown Kind = iota
	KindZip
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindZip:
		return "zip"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

type Config struct {
	OutDir    string
	Extension string
}

type Unpacker struct {
	cfg Config
	log *slog.Logger
}

func NewUnpacker(cfg Config, logger *slog.Logger) *Unpacker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Extension == "" {
		cfg.Extension = ".pdf"
	}
	cfg.Extension = strings.ToLower(cfg.Extension)
	return &Unpacker{cfg: cfg, log: logger}
}

// Detect sniffs the leading bytes of path. The extension decides only when
// the content is inconclusive: an empty file or unidentified binary data.
func (u *Unpacker) Detect(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return KindUnknown, err
	}
	head = head[:n]

	if bytes.HasPrefix(head, []byte("PK\x03\x04")) || bytes.HasPrefix(head, []byte("PK\x05\x06")) {
		return KindZip, nil
	}
	if len(head) > 0 {
		switch sniffed := http.DetectContentType(head); sniffed {
		case "application/pdf":
			if u.cfg.Extension == ".pdf" {
				return KindDocument, nil
			}
			return KindUnknown, nil
		case "application/octet-stream":
		default:
			u.log.Debug("download is neither archive nor document", "path", path, "content_type", sniffed)
			return KindUnknown, nil
		}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".zip":
		return KindZip, nil
	case u.cfg.Extension:
		return KindDocument, nil
	}
	return KindUnknown, nil
}

// Unpack expands or copies one completed download. An archive with no
// matching entries yields no documents and no error; a file of any other kind
// fails with ErrUnrecognised. Existing files in OutDir are never overwritten.
func (u *Unpacker) Unpack(path string, rec types.RecordRef) ([]types.ExtractedDocument, error) {
	kind, err := u.Detect(path)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(u.cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	switch kind {
	case KindZip:
		return u.unzip(path, rec)
	case KindDocument:
		dst, err := u.copyDocument(path)
		if err != nil {
			return nil, err
		}
		return []types.ExtractedDocument{{Path: dst, Source: path, Record: rec}}, nil
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnrecognised)
	}
}

func (u *Unpacker) unzip(path string, rec types.RecordRef) ([]types.ExtractedDocument, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", filepath.Base(path), err)
	}
	defer r.Close()

	dest := filepath.Join(u.cfg.OutDir, DestName(rec))
	var docs []types.ExtractedDocument
	used := map[string]bool{}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), u.cfg.Extension) {
			continue
		}
		if len(docs) == 0 {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return nil, fmt.Errorf("creating archive dir: %w", err)
			}
		}

		name := uniqueName(dest, used, filepath.Base(filepath.FromSlash(f.Name)))
		out := filepath.Join(dest, name)
		if err := extract(f, out); err != nil {
			return docs, fmt.Errorf("extracting %s: %w", f.Name, err)
		}
		docs = append(docs, types.ExtractedDocument{Path: out, Source: path, Record: rec})
	}

	u.log.Debug("unpacked archive", "path", path, "entries", len(r.File), "documents", len(docs))
	return docs, nil
}

func extract(f *zip.File, out string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if f.Modified.IsZero() {
		return nil
	}
	return os.Chtimes(out, f.Modified, f.Modified)
}

func (u *Unpacker) copyDocument(path string) (string, error) {
	dst := filepath.Join(u.cfg.OutDir, filepath.Base(path))
	if filepath.Clean(dst) == filepath.Clean(path) {
		return dst, nil
	}
	dst = filepath.Join(u.cfg.OutDir, uniqueName(u.cfg.OutDir, map[string]bool{}, filepath.Base(path)))

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	w, err := create(dst)
	if err != nil {
		return "", fmt.Errorf("copying document: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return "", fmt.Errorf("copying document: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return dst, os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// DestName namespaces an archive's contents by record date and title.
func DestName(rec types.RecordRef) string {
	return "extracted_" + rec.Date.Date.Format("20060102") + "_" + slug(rec.Title)
}

func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 40 {
			break
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "untitled"
	}
	return s
}

// uniqueName returns name, or name with a "-N" suffix, such that it is neither
// in used nor already present in dir.
func uniqueName(dir string, used map[string]bool, name string) string {
	taken := func(n string) bool {
		if used[n] {
			return true
		}
		_, err := os.Lstat(filepath.Join(dir, n))
		return err == nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; taken(candidate); i++ {
		candidate = stem + "-" + strconv.Itoa(i) + ext
	}
	used[candidate] = true
	return candidate
}

func create(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}
