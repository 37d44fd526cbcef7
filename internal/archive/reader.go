package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hook-system/hook/internal/models"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

var ErrUnsupportedArchive = errors.New("unsupported archive")

var gzipMagic = []byte{0x1f, 0x8b}

// truncatedPath names the failure recorded for a damaged archive tail
const truncatedPath = "<truncated>"

// Contents is everything read from one submission archive
type Contents struct {
	Files    []*models.SubmittedFile
	Failures []models.FileFailure
	Members  int // every header in the archive, directories included
}

// ByLanguage splits the files of one language into comparable documents
// (current and previous year) and whitelist documents.
func (c *Contents) ByLanguage(lang models.Language) (docs, whitelist []*models.SubmittedFile) {
	for _, f := range c.Files {
		if f.Language != lang {
			continue
		}
		if f.Type == models.FileTypeWhitelist {
			whitelist = append(whitelist, f)
		} else {
			docs = append(docs, f)
		}
	}
	return docs, whitelist
}

// Read opens a tar or gzip-compressed tar archive and classifies its
// members. Members with a bad layout or unreadable content are recorded as
// failures and skipped. A damaged tail stops reading but keeps the members
// read before it; only an archive that yields no member at all is an error.
func Read(archivePath string) (*Contents, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	return read(f)
}

func read(r io.Reader) (*Contents, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(len(gzipMagic))

	var src io.Reader = br
	if bytes.Equal(magic, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedArchive, err)
		}
		defer zr.Close()
		src = zr
	}

	tr := tar.NewReader(src)
	out := &Contents{}
	last := ""
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if out.Members == 0 {
				return nil, fmt.Errorf("%w: %v", ErrUnsupportedArchive, err)
			}
			// keep what was read before the damage
			out.Failures = append(out.Failures, models.FileFailure{
				Path:  truncatedPath,
				Stage: "extract",
				Error: fmt.Sprintf("archive unreadable after %q: %v", last, err),
			})
			log.Warn().Err(err).Str("after", last).Int("members", out.Members).Msg("Archive truncated, keeping members read so far")
			break
		}
		out.Members++
		last = hdr.Name

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		member, ok, err := ParsePath(hdr.Name)
		if err != nil {
			out.Failures = append(out.Failures, models.FileFailure{Path: hdr.Name, Stage: "extract", Error: err.Error()})
			continue
		}
		if !ok {
			log.Trace().Str("member", hdr.Name).Msg("Ignoring archive member")
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			// the stream cannot be resynchronized past a short member body
			out.Failures = append(out.Failures, models.FileFailure{Path: member.Path, Stage: "extract", Error: err.Error()})
			log.Warn().Err(err).Str("member", member.Path).Int("members", out.Members).Msg("Archive truncated, keeping members read so far")
			break
		}

		content := string(data)
		if !utf8.ValidString(content) {
			content = strings.ToValidUTF8(content, "�")
		}

		out.Files = append(out.Files, &models.SubmittedFile{
			Path:     member.Path,
			Owner:    member.Owner,
			Type:     member.Type,
			Language: member.Language,
			Content:  content,
		})
	}

	if out.Members == 0 {
		return nil, fmt.Errorf("%w: archive is empty", ErrUnsupportedArchive)
	}
	return out, nil
}
