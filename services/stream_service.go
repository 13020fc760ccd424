package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mnas/config"
	"mnas/models"
	"mnas/repositories"

	"gorm.io/gorm"
)

type StreamInfo struct {
	File        models.File
	AbsPath     string
	ContentType string
	Size        int64
}

type ByteRange struct {
	Start  int64
	End    int64
	Length int64
}

type StreamService interface {
	GetStreamInfo(ctx context.Context, userID uint, fileID uint) (StreamInfo, error)
	ResolveRange(header string, size int64) (*ByteRange, error)
}

type streamService struct {
	files repositories.FileRepository
}

func NewStreamService(files repositories.FileRepository) StreamService {
	return &streamService{files: files}
}

func (s *streamService) GetStreamInfo(ctx context.Context, userID uint, fileID uint) (StreamInfo, error) {
	file, err := s.files.GetByIDAndUser(ctx, nil, fileID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StreamInfo{}, newAppError(http.StatusNotFound, "文件不存在", nil)
		}
		return StreamInfo{}, newAppError(http.StatusInternalServerError, "查询文件失败", err)
	}

	absPath := filepath.Join(config.AppConfig.Storage.BasePath, file.FilePath)
	stat, err := os.Stat(absPath)
	if err != nil {
		return StreamInfo{}, newAppError(http.StatusNotFound, "文件不存在于存储中", nil)
	}

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return StreamInfo{File: file, AbsPath: absPath, ContentType: contentType, Size: stat.Size()}, nil
}

// ResolveRange 解析 bytes=start[-end]。无 Range 头返回 nil 表示整文件；
// 格式非法返回 400，start 超出文件大小返回 416，end 越界钳到 size-1。
func (s *streamService) ResolveRange(header string, size int64) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}

	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, newAppError(http.StatusBadRequest, "Range 头格式错误", nil)
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		// 多区间不支持
		return nil, newAppError(http.StatusBadRequest, "不支持多段 Range", nil)
	}

	dash := strings.Index(spec, "-")
	if dash < 0 {
		return nil, newAppError(http.StatusBadRequest, "Range 头格式错误", nil)
	}

	startPart := strings.TrimSpace(spec[:dash])
	endPart := strings.TrimSpace(spec[dash+1:])
	if startPart == "" {
		// 后缀区间 bytes=-N：取末尾 N 字节
		n, err := strconv.ParseInt(endPart, 10, 64)
		if err != nil || n <= 0 {
			return nil, newAppError(http.StatusBadRequest, "Range 头格式错误", nil)
		}
		if n > size {
			n = size
		}
		return &ByteRange{Start: size - n, End: size - 1, Length: n}, nil
	}

	start, err := strconv.ParseInt(startPart, 10, 64)
	if err != nil || start < 0 {
		return nil, newAppError(http.StatusBadRequest, "Range 头格式错误", nil)
	}
	if start >= size {
		return nil, newAppErrorWithData(http.StatusRequestedRangeNotSatisfiable, "请求范围超出文件大小",
			map[string]interface{}{"size": size}, nil)
	}

	end := size - 1
	if endPart != "" {
		end, err = strconv.ParseInt(endPart, 10, 64)
		if err != nil || end < start {
			return nil, newAppError(http.StatusBadRequest, "Range 头格式错误", nil)
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return &ByteRange{Start: start, End: end, Length: end - start + 1}, nil
}

// ContentRange 输出 Content-Range 头的值。
func (r *ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}
