// Package media decides what kind of media a file is from its name.
package media

import (
	"mime"
	"path/filepath"
	"strings"

	"family-atlas/model"
)

// cameraTypes covers camera formats that the platform MIME table often lacks.
var cameraTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".dng":  "image/x-adobe-dng",
	".arw":  "image/x-sony-arw",
	".cr2":  "image/x-canon-cr2",
	".nef":  "image/x-nikon-nef",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".3gp":  "video/3gpp",
	".mts":  "video/mp2t",
	".wmv":  "video/x-ms-wmv",
	".webm": "video/webm",
}

// scannableExts are the image formats that end up in location folders.
var scannableExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

func init() {
	for ext, typ := range cameraTypes {
		// Registration only fails for malformed input.
		_ = mime.AddExtensionType(ext, typ)
	}
}

// TypeOf returns the MIME type guessed from the extension of path, or "".
func TypeOf(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}

// Classify maps a path to Image, Video or Other. It never looks at file
// contents and never fails: unknown types are Other.
func Classify(path string) model.Kind {
	typ := TypeOf(path)
	switch {
	case strings.HasPrefix(typ, "video/"):
		return model.KindVideo
	case strings.HasPrefix(typ, "image/"):
		return model.KindImage
	default:
		return model.KindOther
	}
}

// IsScannable reports whether path is an image format the location scanner
// and categorizer accept (jpg, jpeg, png in any casing).
func IsScannable(path string) bool {
	return scannableExts[strings.ToLower(filepath.Ext(path))]
}
