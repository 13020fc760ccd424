package handlers

import (
	"mnas/utils"

	"github.com/gin-gonic/gin"
)

func GetStorageQuota(c *gin.Context) {
	userID := c.GetUint("user_id")

	out, err := getServices().User.GetStorageQuota(c.Request.Context(), userID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, out)
}
