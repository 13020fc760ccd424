package handlers

import (
	"net/http"
	"strconv"

	"mnas/config"
	"mnas/utils"

	"github.com/gin-gonic/gin"
)

// ListFiles 获取文件列表（支持分页）
func ListFiles(c *gin.Context) {
	userID := c.GetUint("user_id")
	projectID, err := strconv.ParseUint(c.Query("project_id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的项目ID")
		return
	}
	folderID, _ := strconv.ParseUint(c.DefaultQuery("folder_id", "0"), 10, 32)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	sortBy := c.DefaultQuery("sort_by", config.AppConfig.Pagination.DefaultSortBy)
	order := c.DefaultQuery("order", config.AppConfig.Pagination.DefaultOrder)

	out, svcErr := getServices().File.ListFiles(c.Request.Context(), userID, uint(projectID), uint(folderID), page, pageSize, sortBy, order)
	if respondServiceError(c, svcErr) {
		return
	}
	utils.Success(c, out)
}

// UploadFile 小文件直接上传
func UploadFile(c *gin.Context) {
	userID := c.GetUint("user_id")
	projectID, err := strconv.ParseUint(c.PostForm("project_id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的项目ID")
		return
	}
	folderID, _ := strconv.ParseUint(c.DefaultPostForm("folder_id", "0"), 10, 32)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "获取上传文件失败")
		return
	}
	defer file.Close()

	record, svcErr := getServices().File.UploadFile(c.Request.Context(), userID, uint(projectID), uint(folderID), file, header)
	if respondServiceError(c, svcErr) {
		return
	}
	utils.Success(c, record)
}

// DownloadFile 下载文件
func DownloadFile(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的文件ID")
		return
	}

	info, svcErr := getServices().File.GetDownloadInfo(c.Request.Context(), userID, uint(fileID))
	if respondServiceError(c, svcErr) {
		return
	}

	c.FileAttachment(info.AbsPath, info.DownloadName)
}

// GetThumbnail 获取图片缩略图
func GetThumbnail(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的文件ID")
		return
	}

	info, svcErr := getServices().File.GetThumbnailInfo(c.Request.Context(), userID, uint(fileID))
	if respondServiceError(c, svcErr) {
		return
	}

	c.Header("Content-Type", info.ContentType)
	c.File(info.AbsPath)
}

// DeleteFile 删除文件
func DeleteFile(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的文件ID")
		return
	}

	if respondServiceError(c, getServices().File.DeleteFile(c.Request.Context(), userID, uint(fileID))) {
		return
	}
	utils.SuccessWithMessage(c, "文件已删除", nil)
}
