// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/ohcore/fbekeyd/internal/config"
	adminhttp "github.com/ohcore/fbekeyd/internal/http"
	"github.com/ohcore/fbekeyd/internal/fbe/usecase"
	"github.com/ohcore/fbekeyd/internal/fscrypt"
	keystoreDomain "github.com/ohcore/fbekeyd/internal/keystore/domain"
	keystoreService "github.com/ohcore/fbekeyd/internal/keystore/service"
	"github.com/ohcore/fbekeyd/internal/metrics"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	config *config.Config

	logger *slog.Logger

	kmsService keystoreDomain.KMSService
	gateway    keystoreService.KeystoreGateway
	control    fscrypt.Control

	keyManager  usecase.KeyManagerAPI
	userManager usecase.UserManagerAPI

	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	adminServer   *adminhttp.Server
	metricsServer *adminhttp.MetricsServer

	loggerInit          sync.Once
	gatewayInit         sync.Once
	controlInit         sync.Once
	keyManagerInit      sync.Once
	userManagerInit     sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	adminServerInit     sync.Once
	metricsServerInit   sync.Once

	initErrors map[string]error
	errMu      sync.Mutex
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

func (c *Container) recordErr(key string, err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.initErrors[key] = err
}

func (c *Container) loadErr(key string) error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.initErrors[key]
}

// KeystoreGateway returns the seal/unseal gateway backing every BaseKey,
// built in KMS-wrapped mode or legacy plaintext mode per config.
func (c *Container) KeystoreGateway(ctx context.Context) (keystoreService.KeystoreGateway, error) {
	c.gatewayInit.Do(func() {
		c.kmsService = keystoreService.NewKMSService()
		gw, err := c.initGateway(ctx)
		if err != nil {
			c.recordErr("gateway", err)
			return
		}
		c.gateway = gw
	})
	if err := c.loadErr("gateway"); err != nil {
		return nil, err
	}
	return c.gateway, nil
}

func (c *Container) initGateway(ctx context.Context) (keystoreService.KeystoreGateway, error) {
	aeadManager := keystoreService.NewAEADManager()
	if c.config.KMSProvider != "" {
		gw, err := keystoreService.NewKMSGateway(ctx, c.config, c.kmsService, aeadManager, keystoreDomain.AESGCM, c.Logger())
		if err != nil {
			return nil, fmt.Errorf("failed to build kms-backed keystore gateway: %w", err)
		}
		if err := gw.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize kms-backed keystore gateway: %w", err)
		}
		return gw, nil
	}

	chain, err := keystoreDomain.LoadTrustRootChainFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load legacy trust root chain: %w", err)
	}
	defer chain.Close()

	active, ok := chain.Get(chain.ActiveTrustRootID())
	if !ok {
		return nil, keystoreDomain.ErrActiveTrustRootNotFound
	}

	gw, err := keystoreService.NewSoftwareGateway(aeadManager, keystoreDomain.AESGCM, active.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to build software keystore gateway: %w", err)
	}
	if err := gw.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize software keystore gateway: %w", err)
	}
	return gw, nil
}

// FsCryptControl returns the kernel fscrypt control surface: the real
// kernel ioctls on Linux, or an in-memory fake when not running as root
// (e.g. under `go test`, or a non-Linux dev machine).
func (c *Container) FsCryptControl() fscrypt.Control {
	c.controlInit.Do(func() {
		if runtime.GOOS == "linux" && os.Geteuid() == 0 {
			c.control = fscrypt.NewLinuxControl()
			return
		}
		c.Logger().Warn("fscrypt: not running as root on linux, using in-memory fake control surface")
		c.control = fscrypt.NewFake()
	})
	return c.control
}

// BusinessMetrics returns the business-operation metrics recorder the
// KeyManager/UserManager decorators report through, or a no-op
// implementation when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		if !c.config.MetricsEnabled {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		var provider *metrics.Provider
		provider, err = c.MetricsProvider()
		if err != nil {
			c.recordErr("businessMetrics", err)
			return
		}
		c.businessMetrics, err = metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.recordErr("businessMetrics", err)
		}
	})
	if storedErr := c.loadErr("businessMetrics"); storedErr != nil {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// MetricsProvider returns the OpenTelemetry/Prometheus provider backing
// both the admin HTTP metrics endpoint and BusinessMetrics.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.recordErr("metricsProvider", err)
		}
	})
	if storedErr := c.loadErr("metricsProvider"); storedErr != nil {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// KeyManager returns the process-wide key catalog, wrapped with the
// business-metrics decorator.
func (c *Container) KeyManager(ctx context.Context) (usecase.KeyManagerAPI, error) {
	c.keyManagerInit.Do(func() {
		gw, err := c.KeystoreGateway(ctx)
		if err != nil {
			c.recordErr("keyManager", err)
			return
		}
		bm, err := c.BusinessMetrics()
		if err != nil {
			c.recordErr("keyManager", err)
			return
		}

		layout := usecase.Layout{
			DeviceEL1Dir: c.config.StorageRoot + "/el0/storage_daemon/sd",
			EL1Dir:       c.config.StorageRoot + "/el1",
			EL2Dir:       c.config.StorageRoot + "/el2",
			MountPoint:   "/data",
		}
		km := usecase.NewKeyManager(layout, gw, c.FsCryptControl(), c.Logger())
		c.keyManager = usecase.NewKeyManagerWithMetrics(km, bm)
	})
	if err := c.loadErr("keyManager"); err != nil {
		return nil, err
	}
	return c.keyManager, nil
}

// UserManager returns the per-user directory lifecycle state machine,
// wrapped with the business-metrics decorator.
func (c *Container) UserManager() (usecase.UserManagerAPI, error) {
	c.userManagerInit.Do(func() {
		bm, err := c.BusinessMetrics()
		if err != nil {
			c.recordErr("userManager", err)
			return
		}
		um := usecase.NewUserManager("", usecase.NewOSDirOps(), usecase.NewUnixMounter())
		c.userManager = usecase.NewUserManagerWithMetrics(um, bm)
	})
	if err := c.loadErr("userManager"); err != nil {
		return nil, err
	}
	return c.userManager, nil
}

// AdminServer returns the admin HTTP server (health, readiness and metrics only).
func (c *Container) AdminServer() (*adminhttp.Server, error) {
	c.adminServerInit.Do(func() {
		var provider *metrics.Provider
		if c.config.MetricsEnabled {
			var err error
			provider, err = c.MetricsProvider()
			if err != nil {
				c.recordErr("adminServer", err)
				return
			}
		}
		server := adminhttp.NewServer(c.config.ServerHost, c.config.ServerPort, c.Logger())
		server.SetupRouter(c.config, provider, c.config.MetricsNamespace)
		c.adminServer = server
	})
	if err := c.loadErr("adminServer"); err != nil {
		return nil, err
	}
	return c.adminServer, nil
}

// MetricsServer returns the dedicated Prometheus scrape endpoint server.
func (c *Container) MetricsServer() (*adminhttp.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.recordErr("metricsServer", err)
			return
		}
		c.metricsServer = adminhttp.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	})
	if err := c.loadErr("metricsServer"); err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
func (c *Container) Shutdown(ctx context.Context) error {
	var shutdownErrors []error

	if c.adminServer != nil {
		if err := c.adminServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("admin server shutdown: %w", err))
		}
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}
	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}
