package tradein

import (
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Photo is one uploaded device picture. Body is read once during upload.
type Photo struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var photoContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// PhotoLimits bounds what a single pickup may carry.
type PhotoLimits struct {
	MaxPhotos int
	MaxBytes  int64
}

// validatePhotos returns every violation at once so the client can fix all of
// them in one round trip.
func validatePhotos(photos []Photo, limits PhotoLimits) error {
	var errs error
	if len(photos) > limits.MaxPhotos {
		errs = multierr.Append(errs, fmt.Errorf("at most %d photos are allowed, got %d", limits.MaxPhotos, len(photos)))
	}
	for i, photo := range photos {
		if photo.Body == nil {
			errs = multierr.Append(errs, fmt.Errorf("photo %d is empty", i+1))
			continue
		}
		if photo.Size <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("photo %d is empty", i+1))
		} else if photo.Size > limits.MaxBytes {
			errs = multierr.Append(errs, fmt.Errorf("photo %d exceeds %d bytes", i+1, limits.MaxBytes))
		}
		if _, ok := photoExtension(photo.ContentType); !ok {
			errs = multierr.Append(errs, fmt.Errorf("photo %d has unsupported content type %q", i+1, photo.ContentType))
		}
	}
	return errs
}

func photoExtension(contentType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	ext, ok := photoContentTypes[strings.ToLower(mediaType)]
	return ext, ok
}

// photoKey is <prefix>/<user>/<pickup>/<n>-<name><ext>.
func photoKey(prefix string, userID, pickupID uuid.UUID, index int, photo Photo) string {
	ext, _ := photoExtension(photo.ContentType)
	name := sanitizeFileName(strings.TrimSuffix(path.Base(photo.FileName), path.Ext(photo.FileName)))
	if name == "" {
		name = "photo"
	}
	return path.Join(strings.Trim(prefix, "/"), userID.String(), pickupID.String(), fmt.Sprintf("%d-%s%s", index+1, name, ext))
}

func sanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}
