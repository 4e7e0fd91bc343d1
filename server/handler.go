package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/krau/medlens/catalog"
	"github.com/krau/medlens/service"
	"github.com/spf13/cast"
)

const rootMessage = "Medical Image Classification API"

type Server struct {
	predictor   *service.Predictor
	metrics     *Metrics
	allowOrigin string
	maxUpload   int64
}

type Options struct {
	AllowOrigin    string
	MaxUploadBytes int64
}

func New(predictor *service.Predictor, metrics *Metrics, opts Options) *Server {
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Server{
		predictor:   predictor,
		metrics:     metrics,
		allowOrigin: opts.AllowOrigin,
		maxUpload:   opts.MaxUploadBytes,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(), CORS(s.allowOrigin), s.metrics.Middleware())
	r.GET("/", s.RootHandler)
	r.GET("/health", s.HealthHandler)
	r.GET("/tasks", s.TasksHandler)
	r.POST("/predict", s.PredictHandler)
	r.GET("/metrics", s.metrics.Handler())
	return r
}

func (s *Server) PredictHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image exceeds the upload limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided. Use 'image' as the form field name"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}

	req := service.PredictRequest{
		Task:    c.PostForm("task"),
		Image:   data,
		Overlay: cast.ToBool(c.PostForm("gradcam")),
	}
	res, err := s.predictor.Predict(c.Request.Context(), req)
	if err != nil {
		status, msg := errorResponse(err, req.Task)
		if status >= http.StatusInternalServerError {
			slog.Error("Prediction failed",
				slog.String("task", req.Task),
				slog.String("request_id", c.GetString(requestIDKey)),
				slog.String("error", err.Error()),
			)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	res.RequestID = c.GetString(requestIDKey)
	s.metrics.observePrediction(res.Task, res.Prediction)
	c.JSON(http.StatusOK, res)
}

func errorResponse(err error, task string) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrUnknownTask):
		return http.StatusBadRequest, "Unknown task type: " + task
	case errors.Is(err, service.ErrDecode):
		return http.StatusBadRequest, "Invalid image format. Supported: JPEG, PNG, WebP, AVIF"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request cancelled"
	case errors.Is(err, catalog.ErrUnknownClass):
		return http.StatusInternalServerError, "Model output does not match the configured classes"
	case errors.Is(err, service.ErrInference):
		return http.StatusInternalServerError, "Inference failed"
	default:
		return http.StatusInternalServerError, "Error processing image"
	}
}

type taskInfo struct {
	Task      string            `json:"task"`
	ModelName string            `json:"model_name,omitempty"`
	Classes   map[string]string `json:"classes"`
}

func (s *Server) TasksHandler(c *gin.Context) {
	names := s.predictor.Catalog.Names()
	tasks := make([]taskInfo, 0, len(names))
	for _, name := range names {
		t, err := s.predictor.Catalog.Task(name)
		if err != nil {
			continue
		}
		info := taskInfo{Task: name, ModelName: t.ModelName, Classes: make(map[string]string, len(t.ClassInfo))}
		for k, v := range t.ClassInfo {
			info.Classes[k] = v.Class
		}
		tasks = append(tasks, info)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": rootMessage})
}

func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"tasks":  len(s.predictor.Catalog.Names()),
	})
}
