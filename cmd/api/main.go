package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/organigram-api/internal/config"
	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/filter"
	"github.com/organigram-api/internal/graph"
	"github.com/organigram-api/internal/handler"
	"github.com/organigram-api/internal/meta"
	"github.com/organigram-api/internal/repository"
	"github.com/organigram-api/internal/service"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

func main() {
	// Инициализация логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Подключение к БД
	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("failed to get sql.DB", slog.Any("error", err))
		os.Exit(1)
	}
	defer sqlDB.Close()

	// Запуск миграций
	if err := migrate(db, cfg.Database.Driver); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Построение реестра сущностей и схем фильтрации
	reg, err := meta.BuildRegistry()
	if err != nil {
		logger.Error("failed to build entity registry", slog.Any("error", err))
		os.Exit(1)
	}
	specs := make(map[string]*filter.Spec, len(reg.Entities()))
	for _, desc := range reg.Entities() {
		spec, err := filter.BuildSpec(reg, desc.Name, cfg.API.MaxFilterDepth)
		if err != nil {
			logger.Error("failed to build filter spec",
				slog.String("entity", desc.Name), slog.Any("error", err))
			os.Exit(1)
		}
		specs[desc.Name] = spec
	}

	// Инициализация репозиториев
	resourceRepo := repository.NewResourceRepository(db, reg)
	structureRepo := repository.NewStructureRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	edgeRepo := repository.NewEdgeRepository(db)
	diagramRepo := repository.NewDiagramRepository(db)

	// Инициализация сервисов
	resources := service.NewResourceService(resourceRepo, reg, specs)
	grades := service.NewGradeService(resources)
	details := service.NewDetailService(resources, positionRepo)
	structures := service.NewStructureService(resources, structureRepo, positionRepo, edgeRepo, diagramRepo)
	positions := service.NewPositionService(resources, positionRepo, edgeRepo)
	edges := service.NewEdgeService(resources, edgeRepo, positionRepo, structureRepo)
	diagrams := service.NewDiagramService(resources, structureRepo, diagramRepo)
	dashboard := service.NewDashboardService(resourceRepo, structureRepo)

	// Построение GraphQL-схемы
	schema, err := graph.NewSchema(reg, specs, resources)
	if err != nil {
		logger.Error("failed to build graphql schema", slog.Any("error", err))
		os.Exit(1)
	}

	// Инициализация хендлеров
	handlers := handler.Handlers{
		Resources:  handler.NewResourceHandler(resources, logger),
		Grades:     handler.NewGradeHandler(grades, logger),
		Details:    handler.NewDetailHandler(details, logger),
		Structures: handler.NewStructureHandler(structures, logger),
		Positions:  handler.NewPositionHandler(positions, logger),
		Edges:      handler.NewEdgeHandler(edges, logger),
		Diagrams:   handler.NewDiagramHandler(diagrams, logger),
		Dashboard:  handler.NewDashboardHandler(dashboard, logger),
	}

	// Настройка роутера
	router := handler.NewRouter(reg, schema, handlers, cfg.Cache, logger)
	httpHandler := router.Setup()

	// Настройка HTTP сервера
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("could not gracefully shutdown the server", slog.Any("error", err))
		}
		close(done)
	}()

	logger.Info("server is starting", slog.String("port", cfg.Server.Port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("could not listen on port", slog.String("port", cfg.Server.Port), slog.Any("error", err))
		os.Exit(1)
	}

	<-done
	logger.Info("server stopped")
}

func connectDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}

	if cfg.Driver == "sqlite" {
		return gorm.Open(sqlite.Open(cfg.Path), gormCfg)
	}

	var db *gorm.DB
	var err error
	for i := 0; i < 30; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
		if err == nil {
			sqlDB, _ := db.DB()
			if sqlDB.Ping() == nil {
				return db, nil
			}
		}
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("failed to connect to database after 30 attempts: %w", err)
}

// migrate применяет схему БД: goose для postgres, авто-миграция для sqlite
func migrate(db *gorm.DB, driver string) error {
	if driver == "sqlite" {
		return db.AutoMigrate(domain.Models()...)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return runMigrations(sqlDB)
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
