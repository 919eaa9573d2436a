package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/services"
)

type MeHandler struct {
	meService services.MeService
}

func NewMeHandler(meService services.MeService) *MeHandler {
	return &MeHandler{meService: meService}
}

func (mh *MeHandler) GetMe(c *gin.Context) {
	me, err := mh.meService.GetMe(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

func (mh *MeHandler) UpdateMe(c *gin.Context) {
	var req services.UpdateMeInput
	if !bindJSON(c, &req) {
		return
	}
	me, err := mh.meService.UpdateMe(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

// Avatar streams a user's avatar PNG.
func (mh *MeHandler) Avatar(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	rc, info, err := mh.meService.OpenAvatar(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()
	contentType := info.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, sizeOrUnknown(info.Size), contentType, rc, nil)
}

func (mh *MeHandler) GetPreferences(c *gin.Context) {
	pref, err := mh.meService.GetPreferences(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

func (mh *MeHandler) UpdatePreferences(c *gin.Context) {
	var req services.PreferencesInput
	if !bindJSON(c, &req) {
		return
	}
	pref, err := mh.meService.UpdatePreferences(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}
