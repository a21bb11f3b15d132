package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// Document is a file to store in the archive.
type Document struct {
	Name string
	Data []byte
}

// WriteArchive writes documents as a zip archive to w. Names are sanitized
// and made unique by suffixing "-2", "-3"...
func WriteArchive(w io.Writer, docs []Document, modified time.Time) error {
	const op = "export.WriteArchive"

	zw := zip.NewWriter(w)
	used := make(map[string]int, len(docs))

	for _, doc := range docs {
		name := uniqueName(SanitizeFilename(doc.Name), used)

		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}
		if _, err := entry.Write(doc.Data); err != nil {
			_ = zw.Close()
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// uniqueName returns name, or name with a numeric suffix before its
// extension when it was already used.
func uniqueName(name string, used map[string]int) string {
	key := strings.ToLower(name)
	used[key]++
	if used[key] == 1 {
		return name
	}

	base, ext := name, ""
	if dot := strings.LastIndex(name, "."); dot > 0 {
		base, ext = name[:dot], name[dot:]
	}
	candidate := base + "-" + strconv.Itoa(used[key]) + ext
	return uniqueName(candidate, used)
}
