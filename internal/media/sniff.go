package media

import (
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const sniffLen = 3072

var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// ResolveContentType returns the declared type when the client sent a useful
// one. Otherwise it sniffs the head of r and falls back to the file
// extension. r must be positioned at the start and is rewound afterwards.
func ResolveContentType(declared, filename string, r io.ReadSeeker) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt, nil
		}
		return declared, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	detected := mimetype.Detect(head[:n])
	if detected.Is("application/octet-stream") || detected.Is("text/plain") {
		if byExt, ok := videoExtensions[strings.ToLower(filepath.Ext(filename))]; ok {
			return byExt, nil
		}
	}
	return detected.String(), nil
}
