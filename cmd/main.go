package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hcpdigital/letter-ner-system/api"
	"github.com/hcpdigital/letter-ner-system/api/handler"
	"github.com/hcpdigital/letter-ner-system/api/middleware"
	"github.com/hcpdigital/letter-ner-system/api/model"
	appconfig "github.com/hcpdigital/letter-ner-system/config"
	"github.com/hcpdigital/letter-ner-system/internal/cache"
	"github.com/hcpdigital/letter-ner-system/internal/database"
	"github.com/hcpdigital/letter-ner-system/internal/document"
	"github.com/hcpdigital/letter-ner-system/internal/ner"
	"github.com/hcpdigital/letter-ner-system/internal/services"
	"github.com/hcpdigital/letter-ner-system/pkg/storage"
	"github.com/hcpdigital/letter-ner-system/pkg/taskqueue"
)

// 配置选项
type config struct {
	Port         int           // 服务端口
	Mode         string        // 运行模式 (debug/release)
	StoragePath  string        // 文件存储路径
	CacheType    string        // 缓存类型
	LogLevel     string        // 日志级别
	LogFile      string        // 日志文件路径（为空时只输出到标准输出）
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时
	DataDir      string        // 数据目录路径
	ConfigFile   string        // 配置文件路径
	// 模型服务相关配置
	NERBaseURL string // 模型服务地址
	NERModel   string // 模型名称
	// 任务队列相关配置
	QueueEnabled     bool          // 是否启用任务队列
	QueueType        string        // 任务队列类型
	RedisAddr        string        // Redis 地址
	RedisPassword    string        // Redis 密码
	RedisDB          int           // Redis 数据库编号
	QueueConcurrency int           // 任务队列处理并发数
	QueueRetryLimit  int           // 任务重试次数
	QueueRetryDelay  time.Duration // 任务重试延迟
}

func main() {
	// 加载.env文件（如果存在）
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment variables from .env file")
	}

	// 解析命令行参数
	cfg := parseFlags()

	// 加载配置文件(如果指定)
	var appConfig *appconfig.Config
	var err error
	if cfg.ConfigFile != "" {
		appConfig, err = appconfig.Load(cfg.ConfigFile)
		if err != nil {
			log.Printf("Warning: Failed to load config file: %v, using command line args", err)
		} else {
			// 使用配置文件中的值更新相关设置
			updateConfigFromFile(&cfg, appConfig)
		}
	}

	// 设置Gin模式
	gin.SetMode(cfg.Mode)

	// 初始化日志
	logger := setupLogger(cfg)
	logger.Info("Starting Letter NER System...")

	// 注册自定义请求验证规则
	if err := model.RegisterValidators(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}

	// 初始化数据库
	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 创建文件存储服务
	fileStorage, err := setupStorage(cfg, appConfig)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建模型服务客户端
	nerClient, err := setupNERClient(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize NER client: %v", err)
	}

	// 创建缓存服务
	cacheService, err := setupCache(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	// 初始化任务队列（如果启用）
	var queue taskqueue.Queue
	if cfg.QueueEnabled {
		queue, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	// 创建文本规范化器
	normalizer := setupNormalizer(appConfig)

	// 创建标注服务
	annotateServiceOptions := []services.AnnotateOption{
		services.WithLogger(logger),
		services.WithCache(cacheService),
	}

	// 如果配置启用了导出产物归档，挂载产物存储
	if appConfig != nil && appConfig.Export.ArtifactsEnable {
		artifactStorage, err := setupArtifactStorage(appConfig)
		if err != nil {
			logger.Fatalf("Failed to initialize artifact storage: %v", err)
		}
		annotateServiceOptions = append(annotateServiceOptions, services.WithArtifactStorage(artifactStorage))
		logger.WithField("path", appConfig.Export.ArtifactsPath).Info("Export artifact archiving enabled")
	}

	annotateService := services.NewAnnotateService(
		fileStorage,
		normalizer,
		nerClient,
		annotateServiceOptions...,
	)
	if err := annotateService.Init(); err != nil {
		logger.Fatalf("Failed to initialize annotate service: %v", err)
	}

	// 如果启用了队列，配置异步处理并启动工作者
	var worker taskqueue.Worker
	if queue != nil {
		annotateService.EnableAsyncProcessing(queue)

		worker, err = setupWorker(queue, annotateService, cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()

		logger.Info("Letter annotation will use async task queue")
	}

	// 初始化API处理器
	letterHandler := handler.NewLetterHandler(annotateService, fileStorage)
	annotationHandler := handler.NewAnnotationHandler(annotateService)

	var taskHandler *handler.TaskHandler
	if queue != nil {
		taskHandler = handler.NewTaskHandler(queue)
	}

	// 设置路由
	r := api.SetupRouter(letterHandler, annotationHandler, taskHandler)

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		// 启动服务
		logger.Infof("Server is running on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// 创建带超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() config {
	cfg := config{}

	// 服务配置
	flag.IntVar(&cfg.Port, "port", 8080, "Server port")
	flag.StringVar(&cfg.Mode, "mode", "debug", "Run mode (debug/release)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Log file path (empty for stdout only)")
	flag.DurationVar(&cfg.ReadTimeout, "read-timeout", 30*time.Second, "Read timeout")
	flag.DurationVar(&cfg.WriteTimeout, "write-timeout", 30*time.Second, "Write timeout")

	// 存储配置
	flag.StringVar(&cfg.StoragePath, "storage", "./data/files", "File storage path")

	// 模型服务配置
	flag.StringVar(&cfg.NERBaseURL, "ner-url", ner.DefaultEndpoint, "NER model service base URL")
	flag.StringVar(&cfg.NERModel, "ner-model", ner.ModelEnCoreWebSm, "NER model name")

	// 缓存配置
	flag.StringVar(&cfg.CacheType, "cache", "memory", "Cache type (memory/redis)")

	// 数据目录配置
	flag.StringVar(&cfg.DataDir, "data-dir", "./data", "Data directory path")

	// 配置文件
	flag.StringVar(&cfg.ConfigFile, "config", "", "Path to config file")

	// 任务队列配置
	flag.BoolVar(&cfg.QueueEnabled, "queue", false, "Enable task queue")
	flag.StringVar(&cfg.QueueType, "queue-type", "redis", "Task queue type (redis)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "Redis address for task queue")
	flag.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database number")
	flag.IntVar(&cfg.QueueConcurrency, "queue-concurrency", 10, "Task queue concurrency")
	flag.IntVar(&cfg.QueueRetryLimit, "queue-retry", 3, "Max retry attempts for failed tasks")
	flag.DurationVar(&cfg.QueueRetryDelay, "queue-retry-delay", time.Minute, "Delay between retry attempts")

	// 从环境变量获取配置（优先级高于命令行参数默认值）
	if url := os.Getenv("NER_SERVICE_URL"); url != "" {
		cfg.NERBaseURL = url
	}
	if modelName := os.Getenv("NER_MODEL"); modelName != "" {
		cfg.NERModel = modelName
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}

	flag.Parse()
	return cfg
}

// updateConfigFromFile 从配置文件更新命令行参数
func updateConfigFromFile(cfg *config, appConfig *appconfig.Config) {
	// 只更新未在命令行上明确设置的参数

	// 服务配置
	if flag.Lookup("port").DefValue == fmt.Sprint(cfg.Port) && appConfig.Server.Port > 0 {
		cfg.Port = appConfig.Server.Port
	}

	// 存储配置
	if flag.Lookup("storage").DefValue == cfg.StoragePath && appConfig.Storage.Path != "" {
		cfg.StoragePath = appConfig.Storage.Path
	}

	// 模型服务配置
	if flag.Lookup("ner-url").DefValue == cfg.NERBaseURL && appConfig.NER.BaseURL != "" {
		cfg.NERBaseURL = appConfig.NER.BaseURL
	}
	if flag.Lookup("ner-model").DefValue == cfg.NERModel && appConfig.NER.Model != "" {
		cfg.NERModel = appConfig.NER.Model
	}

	// 缓存配置
	if flag.Lookup("cache").DefValue == cfg.CacheType && appConfig.Cache.Type != "" {
		cfg.CacheType = appConfig.Cache.Type
	}

	// 任务队列配置
	if flag.Lookup("queue").DefValue == fmt.Sprint(cfg.QueueEnabled) {
		cfg.QueueEnabled = appConfig.Queue.Enable
	}
	if flag.Lookup("queue-type").DefValue == cfg.QueueType {
		cfg.QueueType = appConfig.Queue.Type
	}
	if flag.Lookup("redis-addr").DefValue == cfg.RedisAddr {
		cfg.RedisAddr = appConfig.Queue.RedisAddr
	}
	if flag.Lookup("redis-password").DefValue == cfg.RedisPassword {
		cfg.RedisPassword = appConfig.Queue.RedisPassword
	}
	if flag.Lookup("redis-db").DefValue == fmt.Sprint(cfg.RedisDB) {
		cfg.RedisDB = appConfig.Queue.RedisDB
	}
	if flag.Lookup("queue-concurrency").DefValue == fmt.Sprint(cfg.QueueConcurrency) {
		cfg.QueueConcurrency = appConfig.Queue.Concurrency
	}
	if flag.Lookup("queue-retry").DefValue == fmt.Sprint(cfg.QueueRetryLimit) {
		cfg.QueueRetryLimit = appConfig.Queue.RetryLimit
	}
	if appConfig.Queue.RetryDelay > 0 {
		cfg.QueueRetryDelay = time.Duration(appConfig.Queue.RetryDelay) * time.Second
	}
}

// setupLogger 设置日志系统
func setupLogger(cfg config) *logrus.Logger {
	logger := middleware.GetLogger()

	// 设置日志级别
	switch cfg.LogLevel {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	// 如果指定了日志文件，同时输出到文件并自动轮转
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // 天
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	return logger
}

// setupStorage 设置文件存储服务
func setupStorage(cfg config, appConfig *appconfig.Config) (storage.Storage, error) {
	// 如果配置文件指定了MinIO存储，使用MinIO
	if appConfig != nil && appConfig.Storage.Type == "minio" {
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  appConfig.Storage.Endpoint,
			AccessKey: appConfig.Storage.AccessKey,
			SecretKey: appConfig.Storage.SecretKey,
			Bucket:    appConfig.Storage.Bucket,
			UseSSL:    appConfig.Storage.UseSSL,
		})
	}

	// 确保存储目录存在
	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	// 创建本地存储
	return storage.NewLocalStorage(storage.LocalConfig{
		Path: cfg.StoragePath,
	})
}

// setupArtifactStorage 设置导出产物存储
func setupArtifactStorage(appConfig *appconfig.Config) (storage.Storage, error) {
	path := appConfig.Export.ArtifactsPath
	if path == "" {
		path = "./data/exports"
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %v", err)
	}

	return storage.NewLocalStorage(storage.LocalConfig{
		Path: path,
	})
}

// setupNERClient 设置模型服务客户端
func setupNERClient(cfg config) (ner.Client, error) {
	return ner.NewClient("spacy",
		ner.WithBaseURL(cfg.NERBaseURL),
		ner.WithModel(cfg.NERModel),
		ner.WithTimeout(30*time.Second),
		ner.WithMaxRetries(3),
	)
}

// setupCache 设置缓存服务
func setupCache(cfg config) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.CacheType,
		DefaultTTL:      24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}

	// 如果配置了Redis，添加Redis配置
	if cfg.CacheType == "redis" {
		cacheConfig.RedisAddr = cfg.RedisAddr
		cacheConfig.RedisPassword = cfg.RedisPassword
		// Redis数据库编号默认为0
	}

	return cache.NewCache(cacheConfig)
}

// setupNormalizer 设置文本规范化器
func setupNormalizer(appConfig *appconfig.Config) *document.Normalizer {
	// 配置文件中有自定义规则时使用自定义规则
	if appConfig != nil && len(appConfig.Normalizer.Rules) > 0 {
		rules := make([]document.Rule, 0, len(appConfig.Normalizer.Rules))
		for _, r := range appConfig.Normalizer.Rules {
			rules = append(rules, document.Rule{Old: r.Old, New: r.New})
		}
		return document.NewNormalizer(rules...)
	}

	return document.NewNormalizer()
}

// setupDatabase 设置数据库
func setupDatabase(cfg config, logger *logrus.Logger) error {
	dbPath := filepath.Join(cfg.DataDir, "letters.db")

	// 确保数据目录存在
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %v", err)
	}

	// 初始化数据库
	dbConfig := &database.Config{
		Type: "sqlite",
		DSN:  dbPath,
	}

	return database.Setup(dbConfig, logger)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg config, logger *logrus.Logger) (taskqueue.Queue, error) {
	if !cfg.QueueEnabled {
		return nil, nil
	}

	// 根据配置创建任务队列
	queueConfig := &taskqueue.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Concurrency:   cfg.QueueConcurrency,
		RetryLimit:    cfg.QueueRetryLimit,
		RetryDelay:    cfg.QueueRetryDelay,
	}

	logger.WithFields(logrus.Fields{
		"type":        cfg.QueueType,
		"redis_addr":  cfg.RedisAddr,
		"concurrency": cfg.QueueConcurrency,
		"retry_limit": cfg.QueueRetryLimit,
	}).Info("Setting up task queue")

	queue, err := taskqueue.NewQueue(cfg.QueueType, queueConfig)
	if err != nil {
		return nil, err
	}

	return queue, nil
}

// setupWorker 启动任务工作者
// 在进程内执行队列中的标注任务
func setupWorker(queue taskqueue.Queue, svc *services.AnnotateService, cfg config, logger *logrus.Logger) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("task worker requires a redis queue, got %T", queue)
	}

	queueConfig := &taskqueue.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Concurrency:   cfg.QueueConcurrency,
		RetryLimit:    cfg.QueueRetryLimit,
		RetryDelay:    cfg.QueueRetryDelay,
	}

	worker := taskqueue.NewRedisWorker(redisQueue, queueConfig)

	// 注册信件标注任务处理器
	taskHandler := services.NewLetterTaskHandler(svc, queue, logger)
	for _, taskType := range taskHandler.GetTaskTypes() {
		worker.RegisterHandler(taskType, taskHandler)
	}

	if err := worker.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %v", err)
	}

	return worker, nil
}
