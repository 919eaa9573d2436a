package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/devforge-org/devforge-backend/internal/services"
)

// multipartOverhead is the slack allowed on top of the file for form framing.
const multipartOverhead = 1 << 20

type FileHandler struct {
	fileService    services.FileService
	maxUploadBytes int64
}

func NewFileHandler(fileService services.FileService, maxUploadBytes int64) *FileHandler {
	return &FileHandler{fileService: fileService, maxUploadBytes: maxUploadBytes}
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (fh *FileHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, fh.maxUploadBytes+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, "file is too large")
			return
		}
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	projectID, err := optionalUUID(c.PostForm("projectId"))
	if err != nil {
		badRequest(c, "invalid projectId")
		return
	}
	f, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	file, err := fh.fileService.Upload(c.Request.Context(), services.UploadInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		ProjectID:   projectID,
		Body:        f,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

func (fh *FileHandler) List(c *gin.Context) {
	projectID, err := optionalUUID(c.Query("projectId"))
	if err != nil {
		badRequest(c, "invalid projectId")
		return
	}
	files, err := fh.fileService.List(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (fh *FileHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	file, err := fh.fileService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (fh *FileHandler) Content(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rc, file, err := fh.fileService.OpenContent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, sizeOrUnknown(file.Size), file.ContentType, rc, map[string]string{
		"Content-Disposition": `inline; filename="` + file.Name + `"`,
	})
}

func (fh *FileHandler) Thumbnail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rc, _, err := fh.fileService.OpenThumbnail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "image/png", rc, nil)
}

func (fh *FileHandler) Reanalyze(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	file, err := fh.fileService.Reanalyze(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (fh *FileHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := fh.fileService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Analyze runs the analysis on posted content without storing it.
func (fh *FileHandler) Analyze(c *gin.Context) {
	var req struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := fh.fileService.Analyze(req.Filename, []byte(req.Content))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
