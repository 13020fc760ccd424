package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"mnas/config"
	"mnas/logger"
	"mnas/utils"

	"github.com/gin-gonic/gin"
)

// StreamFile 支持 Range 的流式播放。无 Range 头返回整个文件，
// 合法的 bytes=start[-end] 返回 206 与精确的 Content-Range。
func StreamFile(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的文件ID")
		return
	}

	svc := getServices()
	info, svcErr := svc.Stream.GetStreamInfo(c.Request.Context(), userID, uint(fileID))
	if respondServiceError(c, svcErr) {
		return
	}

	byteRange, svcErr := svc.Stream.ResolveRange(c.GetHeader("Range"), info.Size)
	if respondServiceError(c, svcErr) {
		return
	}

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", info.ContentType)

	src, err := os.Open(info.AbsPath)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "打开文件失败")
		return
	}
	defer src.Close()

	buf := make([]byte, config.AppConfig.Storage.ChunkBufferSize)

	if byteRange == nil {
		c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
		c.Status(http.StatusOK)
		if _, err := io.CopyBuffer(c.Writer, src, buf); err != nil {
			logger.Debugf("流式传输中断 file=%d: %v", fileID, err)
		}
		return
	}

	if _, err := src.Seek(byteRange.Start, io.SeekStart); err != nil {
		utils.Error(c, http.StatusInternalServerError, "定位文件失败")
		return
	}

	c.Header("Content-Range", byteRange.ContentRange(info.Size))
	c.Header("Content-Length", strconv.FormatInt(byteRange.Length, 10))
	c.Status(http.StatusPartialContent)

	if _, err := io.CopyBuffer(c.Writer, io.LimitReader(src, byteRange.Length), buf); err != nil {
		logger.Debugf("流式传输中断 file=%d: %v", fileID, err)
	}
}

// StreamFileHead 只返回头部，供播放器探测是否支持断点续传
func StreamFileHead(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	info, svcErr := getServices().Stream.GetStreamInfo(c.Request.Context(), userID, uint(fileID))
	if svcErr != nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", info.ContentType)
	c.Header("Content-Length", fmt.Sprintf("%d", info.Size))
	c.Status(http.StatusOK)
}

// GetProcessingStatus 查询后台转码是否仍在进行
func GetProcessingStatus(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的文件ID")
		return
	}

	out, svcErr := getServices().Video.GetProcessingStatus(c.Request.Context(), userID, uint(fileID))
	if respondServiceError(c, svcErr) {
		return
	}
	utils.Success(c, out)
}
