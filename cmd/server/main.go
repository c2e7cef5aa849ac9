package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/acme/autocert"

	"github.com/virek/vroom/internal/config"
	"github.com/virek/vroom/internal/handlers"
	"github.com/virek/vroom/internal/opentok"
	"github.com/virek/vroom/internal/push"
	"github.com/virek/vroom/internal/registry"
	"github.com/virek/vroom/internal/relay"
	"github.com/virek/vroom/internal/static"
	"github.com/virek/vroom/internal/turn"
)

const appVersion = "1.0.0"

func main() {
	httpOnly := flag.Bool("http-only", false, "serve plain HTTP behind a fronting proxy")
	selfSigned := flag.Bool("self-signed", false, "serve HTTPS with a generated self-signed certificate")
	flag.Parse()

	cfg := config.Load(httpOnly)
	logger := newLogger(cfg.LogLevel)

	logger.Info("vroom server starting", "version", appVersion)

	if !cfg.UsesHostedPlatform() && !cfg.RelayEnabled {
		logger.Error("no session backend: set VONAGE_API_KEY/VONAGE_API_SECRET or RELAY_ENABLED=true")
		os.Exit(1)
	}

	meetings, err := registry.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open meeting registry", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	var vendor handlers.Vendor
	if cfg.UsesHostedPlatform() {
		vendor = opentok.NewClient(cfg.VonageAPIKey, cfg.VonageAPISecret)
	} else {
		vendor = relay.SessionSource{}
	}

	var turnServer *turn.TURNServer
	var relayServer *relay.Server
	if cfg.RelayEnabled {
		turnServer, err = turn.Initialize(cfg.TURNPort, cfg.TURNRealm, logger)
		if err != nil {
			logger.Error("failed to start TURN server", "error", err)
			os.Exit(1)
		}
		defer turnServer.Close()

		relayServer = relay.NewServer(logger)
		if cfg.RedisURL != "" {
			fanout, err := relay.NewFanout(cfg.RedisURL, relayServer.Hub(), logger)
			if err != nil {
				logger.Error("failed to connect relay fanout", "error", err)
				os.Exit(1)
			}
			defer fanout.Close()
			relayServer.SetFanout(fanout)
		}
	}

	h := handlers.New(cfg, vendor, meetings, turnServer, logger)

	if cfg.PushEnabled {
		notifier, err := push.NewNotifier(meetings, cfg.VAPIDSubject, logger)
		if err != nil {
			logger.Warn("push notifications disabled", "error", err)
		} else {
			h.SetNotifier(notifier)
		}
	}

	// The shared-session token endpoint answers 503 until this lands.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.EnsureSimpleSession(ctx); err != nil {
			logger.Warn("shared session unavailable", "error", err)
		}
	}()

	router := setupRouter(h, relayServer, cfg, logger)
	startServer(router, cfg, *selfSigned, logger)
}

func setupRouter(h *handlers.Handlers, relayServer *relay.Server, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(slogGinLogger(logger))
	router.Use(corsMiddleware(cfg))

	h.RegisterRoutes(router)
	if relayServer != nil {
		router.GET("/ws", relayServer.HandleWebSocket)
	}

	static.RegisterDemoRoutes(router, cfg)
	return router
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := "*"
		if cfg.HTTPOnly && cfg.ClientURL != "" {
			origin = cfg.ClientURL
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func startServer(router *gin.Engine, cfg *config.Config, selfSigned bool, logger *slog.Logger) {
	if cfg.HTTPOnly {
		startHTTP(router, cfg, logger)
		return
	}
	if selfSigned {
		startSelfSignedHTTPS(router, cfg, logger)
		return
	}
	startAutocertHTTPS(router, cfg, logger)
}

func startHTTP(router *gin.Engine, cfg *config.Config, logger *slog.Logger) {
	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("http server starting", "port", cfg.HTTPPort, "client_url", cfg.ClientURL)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
	}
}

func startAutocertHTTPS(router *gin.Engine, cfg *config.Config, logger *slog.Logger) {
	certsDir := certsDirectory()
	if err := os.MkdirAll(certsDir, 0700); err != nil {
		logger.Error("failed to create certs directory", "error", err)
		return
	}

	domain := normalizeDomain(cfg.Domain)
	logger.Info("requesting certificates", "domain", domain, "cache", certsDir)
	if domain == "localhost" || domain == "127.0.0.1" {
		logger.Warn("ACME will not issue for localhost, use --self-signed for local development")
	}

	m := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		HostPolicy: func(ctx context.Context, host string) error {
			if normalizeDomain(host) != domain {
				return fmt.Errorf("host %q not configured (expected %q)", host, domain)
			}
			return nil
		},
		Cache: autocert.DirCache(certsDir),
	}

	// Scanners hammering the TLS port with bogus SNI produce handshake
	// errors worth dropping.
	errorLog := log.New(newTLSErrorWriter(logger), "", log.LstdFlags)

	httpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/.well-known/acme-challenge/") {
			m.HTTPHandler(nil).ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, "https://"+r.Host+r.RequestURI, http.StatusMovedPermanently)
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     errorLog,
	}
	httpsServer := &http.Server{
		Addr:         ":" + cfg.HTTPSPort,
		Handler:      router,
		TLSConfig:    m.TLSConfig(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     errorLog,
	}

	go func() {
		logger.Info("http redirect server starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http redirect server failed", "error", err)
			os.Exit(1)
		}
	}()

	go certificateRenewalLoop(m, domain, logger)

	logger.Info("https server starting", "port", cfg.HTTPSPort, "domain", domain)
	if err := httpsServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("https server failed", "error", err)
	}
}

func startSelfSignedHTTPS(router *gin.Engine, cfg *config.Config, logger *slog.Logger) {
	hosts := []string{"localhost"}
	if cfg.Domain != "" {
		hosts = []string{cfg.Domain}
	}
	certPEM, keyPEM, err := generateSelfSignedCert(hosts)
	if err != nil {
		logger.Error("failed to generate self-signed certificate", "error", err)
		return
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		logger.Error("failed to load self-signed certificate", "error", err)
		return
	}

	httpsServer := &http.Server{
		Addr:    ":" + cfg.HTTPSPort,
		Handler: router,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		redirect := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if idx := strings.Index(host, ":"); idx != -1 {
				host = host[:idx]
			}
			target := "https://" + host + ":" + cfg.HTTPSPort + r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		})
		httpServer := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: redirect}
		logger.Info("http redirect server starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http redirect server failed", "error", err)
		}
	}()

	logger.Info("https server starting with self-signed certificate", "port", cfg.HTTPSPort)
	if err := httpsServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("https server failed", "error", err)
	}
}

// certificateRenewalLoop re-checks the cached certificate monthly and
// triggers a renewal when it is within 30 days of expiry.
func certificateRenewalLoop(m *autocert.Manager, domain string, logger *slog.Logger) {
	time.Sleep(30 * time.Second)

	ticker := time.NewTicker(30 * 24 * time.Hour)
	defer ticker.Stop()

	checkAndRenewCertificate(m, domain, logger)
	for range ticker.C {
		checkAndRenewCertificate(m, domain, logger)
	}
}

func checkAndRenewCertificate(m *autocert.Manager, domain string, logger *slog.Logger) {
	cert, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: domain})
	if err != nil {
		logger.Warn("certificate check failed, will retry on next request", "domain", domain, "error", err)
		return
	}
	if cert == nil || len(cert.Certificate) == 0 {
		logger.Warn("no certificate cached yet", "domain", domain)
		return
	}

	x509Cert := cert.Leaf
	if x509Cert == nil {
		x509Cert, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			logger.Warn("certificate parse failed", "domain", domain, "error", err)
			return
		}
	}

	daysLeft := int(time.Until(x509Cert.NotAfter).Hours() / 24)
	logger.Info("certificate status", "domain", domain, "days_left", daysLeft, "expires", x509Cert.NotAfter.Format("2006-01-02"))

	if daysLeft < 30 {
		// GetCertificate renews through the manager as a side effect.
		if _, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: domain}); err != nil {
			logger.Error("certificate renewal failed", "domain", domain, "error", err)
		}
	}
}

func certsDirectory() string {
	execPath, err := os.Executable()
	if err != nil {
		return "certs"
	}
	return filepath.Join(filepath.Dir(execPath), "certs")
}

func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(domain, "www.")
}

func generateSelfSignedCert(hosts []string) (certPEM, keyPEM []byte, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate private key: %w", err)
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial number: %w", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(365 * 24 * time.Hour)

	dnsNames := make([]string, 0, len(hosts))
	ipAddrs := make([]net.IP, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if idx := strings.Index(h, ":"); idx != -1 {
			h = h[:idx]
		}
		if ip := net.ParseIP(h); ip != nil {
			ipAddrs = append(ipAddrs, ip)
			continue
		}
		dnsNames = append(dnsNames, h)
	}
	if len(dnsNames) == 0 && len(ipAddrs) == 0 {
		dnsNames = []string{"localhost"}
	}

	commonName := "localhost"
	if len(dnsNames) > 0 {
		commonName = dnsNames[0]
	} else if len(ipAddrs) > 0 {
		commonName = ipAddrs[0].String()
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Vroom Development"},
			CommonName:   commonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           ipAddrs,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	certBuffer := new(bytes.Buffer)
	if err := pem.Encode(certBuffer, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		return nil, nil, fmt.Errorf("encode certificate: %w", err)
	}

	privBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	keyBuffer := new(bytes.Buffer)
	if err := pem.Encode(keyBuffer, &pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes}); err != nil {
		return nil, nil, fmt.Errorf("encode private key: %w", err)
	}

	return certBuffer.Bytes(), keyBuffer.Bytes(), nil
}
