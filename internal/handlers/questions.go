package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/somasaidi/somasaidi/internal/apperr"
	"github.com/somasaidi/somasaidi/internal/auth"
	"github.com/somasaidi/somasaidi/internal/middleware"
	"github.com/somasaidi/somasaidi/internal/questions"
	"github.com/somasaidi/somasaidi/internal/validation"
)

func submitQuestion(cfg Config, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validation.SubmitQuestionRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			middleware.Fail(c, err)
			return
		}

		var img *questions.Upload
		if req.SubmissionType == questions.SubmissionImage {
			upload, err := readImage(c, cfg.MaxUploadBytes)
			if err != nil {
				middleware.Fail(c, err)
				return
			}
			img = upload
		}

		res, err := cfg.Questions.Submit(c.Request.Context(), auth.UserID(c), req, img)
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":       "Question submitted successfully",
			"data":          res.Question,
			"estimatedCost": res.EstimatedCost,
		})
	}
}

func readImage(c *gin.Context, maxBytes int64) (*questions.Upload, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, apperr.InvalidErr("image file is required for image submissions", nil)
	}
	if fh.Size > maxBytes {
		return nil, apperr.InvalidErr("image is too large", map[string]string{"image": "exceeds upload size limit"})
	}
	contentType := fh.Header.Get("Content-Type")
	switch contentType {
	case "image/jpeg", "image/jpg", "image/png", "image/webp":
	default:
		return nil, apperr.InvalidErr("unsupported image type", map[string]string{"image": "must be JPEG, PNG or WebP"})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes))
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return &questions.Upload{Data: data, ContentType: contentType}, nil
}

func listQuestions(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := cfg.Questions.List(c.Request.Context(), auth.UserID(c))
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func getQuestion(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := cfg.Questions.Get(c.Request.Context(), auth.UserID(c), c.Param("id"))
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": q})
	}
}

func questionStats(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := cfg.Questions.Stats(c.Request.Context(), auth.UserID(c))
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": stats})
	}
}
