package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/config"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/database"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/notifications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/programs"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/server"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "compass-api",
		Short: "Compass application tracking backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Duration("token-ttl", defaults.GetDuration("auth.token_ttl"), "Access token TTL")
	cmd.PersistentFlags().StringSlice("cors-origins", defaults.GetStringSlice("http.cors_origins"), "Allowed CORS origins")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().Bool("debug", defaults.GetBool("debug"), "Include error details in responses")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.token_ttl", "token-ttl")
	bindFlag(cmd, "http.cors_origins", "cors-origins")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "debug", "debug")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "compass-auth",
		Audience:      "compass-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	provider := ids.NewUUIDProvider()
	hasher := auth.NewPasswordHasher(bcrypt.DefaultCost)

	recorder, err := activity.NewRecorder(activity.RecorderConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: provider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: provider,
		Hasher:     hasher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	postsService, err := posts.NewService(posts.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: provider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	programsService, err := programs.NewService(programs.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: provider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	applicationsService, err := applications.NewService(applications.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: provider,
		Recorder:   recorder,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	documentsService, err := documents.NewService(documents.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: provider,
		Recorder:   recorder,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	notificationsService, err := notifications.NewService(notifications.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: provider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:  tokenManager,
		Users:         usersService,
		Posts:         postsService,
		Programs:      programsService,
		Applications:  applicationsService,
		Documents:     documentsService,
		Notifications: notificationsService,
		Activity:      recorder,
		Logger:        logger,
		CORSOrigins:   appConfig.CORSOrigins,
		Debug:         appConfig.Debug,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
