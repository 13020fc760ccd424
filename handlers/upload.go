package handlers

import (
	"net/http"
	"strconv"

	"mnas/services"
	"mnas/utils"

	"github.com/gin-gonic/gin"
)

// UploadChunk 上传一个分片。首个分片到达时隐式建立上传会话，
// 无需单独的初始化请求。
func UploadChunk(c *gin.Context) {
	userID := c.GetUint("user_id")

	fileName := c.PostForm("filename")
	chunkIndex, err := strconv.Atoi(c.PostForm("chunk_index"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的分片序号")
		return
	}
	totalChunks, err := strconv.Atoi(c.PostForm("total_chunks"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的分片总数")
		return
	}
	totalSize, err := strconv.ParseInt(c.PostForm("total_size"), 10, 64)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的文件大小")
		return
	}
	projectID, err := strconv.ParseUint(c.PostForm("project_id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的项目ID")
		return
	}
	folderID, _ := strconv.ParseUint(c.DefaultPostForm("folder_id", "0"), 10, 32)

	chunk, header, err := c.Request.FormFile("chunk")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "获取分片数据失败")
		return
	}
	defer chunk.Close()

	out, svcErr := getServices().Upload.UploadChunk(c.Request.Context(), userID, services.UploadChunkInput{
		FileName:    fileName,
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
		TotalSize:   totalSize,
		ProjectID:   uint(projectID),
		FolderID:    uint(folderID),
		ContentType: header.Header.Get("Content-Type"),
		Chunk:       chunk,
	})
	if respondServiceError(c, svcErr) {
		return
	}
	utils.Success(c, out)
}

type CompleteUploadRequest struct {
	FileName  string `json:"filename" binding:"required"`
	ProjectID uint   `json:"project_id" binding:"required"`
	FolderID  uint   `json:"folder_id"`
}

// CompleteUpload 合并全部分片生成正式文件
func CompleteUpload(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req CompleteUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	file, err := getServices().Upload.CompleteUpload(c.Request.Context(), userID, services.UploadIdentityInput{
		FileName:  req.FileName,
		ProjectID: req.ProjectID,
		FolderID:  req.FolderID,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, file)
}

// GetUploadStatus 查询上传进度
func GetUploadStatus(c *gin.Context) {
	userID := c.GetUint("user_id")
	projectID, err := strconv.ParseUint(c.Param("project_id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的项目ID")
		return
	}
	fileName := c.Param("filename")
	folderID, _ := strconv.ParseUint(c.DefaultQuery("folder_id", "0"), 10, 32)

	out, svcErr := getServices().Upload.GetUploadStatus(c.Request.Context(), userID, services.UploadIdentityInput{
		FileName:  fileName,
		ProjectID: uint(projectID),
		FolderID:  uint(folderID),
	})
	if respondServiceError(c, svcErr) {
		return
	}
	utils.Success(c, out)
}

// CancelUpload 取消上传并清除全部分片
func CancelUpload(c *gin.Context) {
	userID := c.GetUint("user_id")
	projectID, err := strconv.ParseUint(c.Param("project_id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的项目ID")
		return
	}
	fileName := c.Param("filename")
	folderID, _ := strconv.ParseUint(c.DefaultQuery("folder_id", "0"), 10, 32)

	svcErr := getServices().Upload.CancelUpload(c.Request.Context(), userID, services.UploadIdentityInput{
		FileName:  fileName,
		ProjectID: uint(projectID),
		FolderID:  uint(folderID),
	})
	if respondServiceError(c, svcErr) {
		return
	}
	utils.SuccessWithMessage(c, "上传已取消", nil)
}
