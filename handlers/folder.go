package handlers

import (
	"net/http"
	"strconv"

	"mnas/services"
	"mnas/utils"

	"github.com/gin-gonic/gin"
)

type CreateFolderRequest struct {
	Name      string `json:"name" binding:"required,max=255"`
	ProjectID uint   `json:"project_id" binding:"required"`
	ParentID  *uint  `json:"parent_id"`
}

func CreateFolder(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	folder, err := getServices().Folder.CreateFolder(c.Request.Context(), userID, services.CreateFolderInput{
		Name:      req.Name,
		ProjectID: req.ProjectID,
		ParentID:  req.ParentID,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, folder)
}

func ListFolders(c *gin.Context) {
	userID := c.GetUint("user_id")
	projectID, err := strconv.ParseUint(c.Query("project_id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	var parentID *uint
	if raw := c.Query("parent_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "无效的父文件夹ID")
			return
		}
		id := uint(parsed)
		parentID = &id
	}

	folders, svcErr := getServices().Folder.ListFolders(c.Request.Context(), userID, uint(projectID), parentID)
	if respondServiceError(c, svcErr) {
		return
	}
	utils.Success(c, gin.H{"folders": folders})
}

func DeleteFolder(c *gin.Context) {
	userID := c.GetUint("user_id")
	folderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的文件夹ID")
		return
	}

	if respondServiceError(c, getServices().Folder.DeleteFolder(c.Request.Context(), userID, uint(folderID))) {
		return
	}
	utils.SuccessWithMessage(c, "文件夹已删除", nil)
}
