package services

import (
	"path/filepath"
	"strings"

	"mnas/config"
)

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	sanitized := b.String()
	if strings.Trim(sanitized, "._") == "" {
		return "unnamed"
	}
	return sanitized
}

func isFileExtensionAllowed(fileName string) bool {
	allowed := config.AppConfig.Storage.AllowedExtensions
	if len(allowed) == 0 {
		return true
	}

	fileExt := strings.ToLower(filepath.Ext(fileName))
	for _, ext := range allowed {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "*" {
			return true
		}
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if normalized == fileExt {
			return true
		}
	}

	return false
}

var mimeTypesByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".m4v":  "video/x-m4v",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".zip":  "application/zip",
}

func getMimeType(ext string) string {
	if mt, ok := mimeTypesByExt[strings.ToLower(ext)]; ok {
		return mt
	}
	return "application/octet-stream"
}

// resolveContentType 优先采用客户端声明的类型；声明为空或过于笼统时
// 按扩展名表推断。
func resolveContentType(declared, fileName string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return getMimeType(filepath.Ext(fileName))
}

func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

func isVideoMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/")
}
