package api

import (
	"github.com/gin-gonic/gin"

	"github.com/hcpdigital/letter-ner-system/api/handler"
	"github.com/hcpdigital/letter-ner-system/api/middleware"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	letterHandler *handler.LetterHandler,
	annotationHandler *handler.AnnotationHandler,
	taskHandler *handler.TaskHandler,
) *gin.Engine {
	// 创建默认的Gin路由引擎
	router := gin.Default()

	// 应用全局中间件
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.SetTraceID())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	// 创建API分组
	api := router.Group("/api")
	{
		// 信件管理API
		letterGroup := api.Group("/letters")
		{
			// 上传信件 - POST /api/letters
			letterGroup.POST("", letterHandler.UploadLetter)

			// 获取信件列表 - GET /api/letters
			letterGroup.GET("", letterHandler.ListLetters)

			// 获取信件状态 - GET /api/letters/:id
			letterGroup.GET("/:id", letterHandler.GetLetterStatus)

			// 删除信件 - DELETE /api/letters/:id
			letterGroup.DELETE("/:id", letterHandler.DeleteLetter)

			// 触发实体标注 - POST /api/letters/:id/annotate
			letterGroup.POST("/:id/annotate", annotationHandler.AnnotateLetter)

			// 获取信件标注运行列表 - GET /api/letters/:id/annotations
			letterGroup.GET("/:id/annotations", annotationHandler.ListAnnotationRuns)

			// 获取信件任务列表 - GET /api/letters/:id/tasks
			if taskHandler != nil {
				letterGroup.GET("/:id/tasks", taskHandler.GetLetterTasks)
			}
		}

		// 标注运行API
		annotationGroup := api.Group("/annotations")
		{
			// 查询标注运行 - GET /api/annotations/:id
			annotationGroup.GET("/:id", annotationHandler.GetAnnotationRun)

			// 导出标注结果 - GET /api/annotations/:id/export
			annotationGroup.GET("/:id/export", annotationHandler.ExportAnnotation)
		}

		// 任务API
		if taskHandler != nil {
			taskGroup := api.Group("/tasks")
			{
				// 任务回调 - POST /api/tasks/callback
				taskGroup.POST("/callback", taskHandler.HandleCallback)

				// 查询任务状态 - GET /api/tasks/:id
				taskGroup.GET("/:id", taskHandler.GetTaskStatus)
			}
		}

		// 模型信息API
		api.GET("/labels", annotationHandler.GetLabels)
		api.GET("/model", annotationHandler.GetModelMeta)

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 如果需要支持跨域请求，可以启用此中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
