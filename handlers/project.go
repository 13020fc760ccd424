package handlers

import (
	"net/http"
	"strconv"

	"mnas/services"
	"mnas/utils"

	"github.com/gin-gonic/gin"
)

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`
}

func CreateProject(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	project, err := getServices().Project.CreateProject(c.Request.Context(), userID, services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, project)
}

func ListProjects(c *gin.Context) {
	userID := c.GetUint("user_id")

	projects, err := getServices().Project.ListProjects(c.Request.Context(), userID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, gin.H{"projects": projects})
}

func GetProject(c *gin.Context) {
	userID := c.GetUint("user_id")
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	project, svcErr := getServices().Project.GetProject(c.Request.Context(), userID, uint(projectID))
	if respondServiceError(c, svcErr) {
		return
	}
	utils.Success(c, project)
}

func DeleteProject(c *gin.Context) {
	userID := c.GetUint("user_id")
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	if respondServiceError(c, getServices().Project.DeleteProject(c.Request.Context(), userID, uint(projectID))) {
		return
	}
	utils.SuccessWithMessage(c, "项目已删除", nil)
}
