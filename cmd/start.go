package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sqlmerge/core/config"
	"sqlmerge/core/database"
	"sqlmerge/core/loader"
	"sqlmerge/core/logger"
	"sqlmerge/core/middleware/auth"
	"sqlmerge/core/middleware/rayid"
	"sqlmerge/core/reconcile"
	"sqlmerge/core/storage"

	"sqlmerge/feature/merge"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the merge server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		logg = logg.With(zap.String("driver", cfg.Database.Driver))
		logg.Info("Connected to database", zap.String("database", cfg.Database.Name))

		// 4. Metadata Recorder
		recorder, err := newRecorder(context.Background(), cfg, db)
		if err != nil {
			logg.Fatal("Failed to create metadata recorder", zap.Error(err))
		}

		// 5. Merge Engine
		inspector := database.NewInspector(db, cfg.Database.Driver)
		engine := reconcile.NewEngine(db, inspector, recorder, cfg.Merge, logg)

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		mgr := loader.NewManager(logg)
		mgr.Register(merge.NewFeature(engine, logg))

		// RayID must be first to trace everything
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(cfg.Server.Addr()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			logg.Warn("Server shutdown incomplete", zap.Error(err))
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	},
}

var newStorageClient = storage.NewClient

// newRecorder builds the metadata recorder selected by cfg.Merge.Recorder.
// A nil recorder disables metadata stamping.
func newRecorder(ctx context.Context, cfg *config.Config, db *gorm.DB) (reconcile.MetadataRecorder, error) {
	switch cfg.Merge.Recorder {
	case reconcile.RecorderDatabase, "":
		return database.NewPropertyRecorder(db), nil
	case reconcile.RecorderStorage:
		client, err := newStorageClient(cfg.Storage)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			return nil, err
		}
		return storage.NewRecorder(client, cfg.Storage.Bucket, cfg.Merge.MetadataPrefix), nil
	case reconcile.RecorderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported metadata recorder %q", cfg.Merge.Recorder)
	}
}

func init() {
	RootCmd.AddCommand(startCmd)
}
