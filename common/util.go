package common

import (
	"fmt"
	"strings"
	"time"
)

// ClipTimeLayout is used in clip and snapshot file names.
const ClipTimeLayout = "2006-01-02_15-04-05"

var captureCodecExtensions = map[string]string{
	"MJPG": ".avi",
	"XVID": ".avi",
	"YUYV": ".avi",
	"MP4V": ".mp4",
	"H264": ".mp4",
	"AVC1": ".mp4",
}

var formatMimeTypes = map[string]string{
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"mov":  "video/quicktime",
}

// CodecToFileExtension maps a FourCC capture codec to the container extension
// (with leading dot) gocv writes it into. Unknown codecs go to AVI.
func CodecToFileExtension(codec string) string {
	if ext, ok := captureCodecExtensions[strings.ToUpper(codec)]; ok {
		return ext
	}
	return ".avi"
}

// VideoFormatToMimeType returns the MIME type of a container format such as
// "mp4" or ".avi". Unknown formats map to video/mp4.
func VideoFormatToMimeType(format string) string {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if mime, ok := formatMimeTypes[format]; ok {
		return mime
	}
	return "video/mp4"
}

// ClipFileName builds "<prefix>_<timestamp><ext>". ext may be given with or
// without the leading dot.
func ClipFileName(prefix string, t time.Time, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if prefix == "" {
		return t.Format(ClipTimeLayout) + ext
	}
	return fmt.Sprintf("%s_%s%s", prefix, t.Format(ClipTimeLayout), ext)
}
