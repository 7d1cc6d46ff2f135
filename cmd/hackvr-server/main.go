package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackvr/hackvr-core/internal/asset"
	"github.com/hackvr/hackvr-core/internal/config"
	"github.com/hackvr/hackvr-core/internal/dispatch"
	"github.com/hackvr/hackvr-core/internal/establish"
	"github.com/hackvr/hackvr-core/internal/identitystore"
	"github.com/hackvr/hackvr-core/internal/logging"
	"github.com/hackvr/hackvr-core/internal/session"
	"github.com/hackvr/hackvr-core/internal/wire"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "hackvr-server",
	Short: "HackVR protocol server",
	Long:  `hackvr-server hosts a HackVR scene and speaks the wire protocol to connecting viewers.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start listening for viewer connections",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hackvr-server v%s\n", version)
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen <user>",
	Short: "Generate an Ed25519 identity and append its public key to the identity store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		generateIdentity(args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/hackvr/hackvrd.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keygenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// server holds the shared, cross-connection tables every dispatch.Agent
// on this process consults (§5's "shared server tables").
type server struct {
	cfg        *config.Config
	sessions   *session.Registry
	identities *identitystore.Store
	assets     *asset.Cache
}

func runServer() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logOutput, logFile, err := logging.Output(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput)
	log = logging.L("main")

	var identities *identitystore.Store
	if cfg.IdentityStorePath != "" {
		identities, err = identitystore.Load(cfg.IdentityStorePath)
		if err != nil {
			log.Error("failed to load identity store", "path", cfg.IdentityStorePath, "error", err)
			os.Exit(1)
		}
		if err := identities.Watch(); err != nil {
			log.Warn("identity store hot-reload unavailable", "error", err)
		}
		defer identities.Close()
	}

	srv := &server{
		cfg:        cfg,
		sessions:   session.NewRegistry(time.Duration(cfg.SessionTokenTTLSeconds) * time.Second),
		identities: identities,
		assets:     asset.NewCache(nil, asset.DefaultRetryConfig()),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var listeners []net.Listener
	if cfg.ListenRaw != "" {
		ln, err := net.Listen("tcp", cfg.ListenRaw)
		if err != nil {
			log.Error("failed to listen (raw)", "addr", cfg.ListenRaw, "error", err)
			os.Exit(1)
		}
		log.Info("listening", "scheme", "hackvr", "addr", cfg.ListenRaw)
		listeners = append(listeners, ln)
		go srv.acceptRaw(ctx, ln, "hackvr")
	}

	if cfg.ListenRawTLS != "" {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			log.Error("failed to configure TLS", "error", err)
			os.Exit(1)
		}
		ln, err := tls.Listen("tcp", cfg.ListenRawTLS, tlsCfg)
		if err != nil {
			log.Error("failed to listen (raw-tls)", "addr", cfg.ListenRawTLS, "error", err)
			os.Exit(1)
		}
		log.Info("listening", "scheme", "hackvrs", "addr", cfg.ListenRawTLS)
		listeners = append(listeners, ln)
		go srv.acceptRaw(ctx, ln, "hackvrs")
	}

	if cfg.ListenHTTP != "" {
		ln, err := net.Listen("tcp", cfg.ListenHTTP)
		if err != nil {
			log.Error("failed to listen (http)", "addr", cfg.ListenHTTP, "error", err)
			os.Exit(1)
		}
		log.Info("listening", "scheme", "http+hackvr", "addr", cfg.ListenHTTP)
		listeners = append(listeners, ln)
		go srv.acceptHTTP(ctx, ln, "http+hackvr")
	}

	if cfg.ListenHTTPS != "" {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			log.Error("failed to configure TLS", "error", err)
			os.Exit(1)
		}
		ln, err := tls.Listen("tcp", cfg.ListenHTTPS, tlsCfg)
		if err != nil {
			log.Error("failed to listen (https)", "addr", cfg.ListenHTTPS, "error", err)
			os.Exit(1)
		}
		log.Info("listening", "scheme", "https+hackvr", "addr", cfg.ListenHTTPS)
		listeners = append(listeners, ln)
		go srv.acceptHTTP(ctx, ln, "https+hackvr")
	}

	if len(listeners) == 0 {
		fmt.Fprintln(os.Stderr, "no listeners configured; set listen_raw/listen_raw_tls/listen_http/listen_https")
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if logFile != nil {
				if err := logFile.Reopen(); err != nil {
					log.Warn("log file reopen failed", "error", err)
				} else {
					log.Info("log file reopened")
				}
			}
			continue
		}
		break
	}
	log.Info("shutting down")

	for _, ln := range listeners {
		ln.Close()
	}
	cancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	srv.assets.Close(drainCtx)

	log.Info("stopped")
}

func loadTLSConfig(cfg *config.Config) (*tls.Config, error) {
	if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
		return nil, fmt.Errorf("tls_cert_file and tls_key_file are required for a TLS listener")
	}
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// acceptRaw runs the raw hackvr-hello handshake (§4.5(a)) on every
// accepted connection, then hands it to the per-connection agent loop.
func (s *server) acceptRaw(ctx context.Context, ln net.Listener, scheme string) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("accept failed", "error", err)
			continue
		}
		go s.handleRaw(conn, scheme)
	}
}

func (s *server) handleRaw(conn net.Conn, scheme string) {
	connID := uuid.NewString()
	defer conn.Close()

	result, err := establish.ServerRaw(conn, conn, scheme)
	if err != nil {
		log.Debug("establishment failed", "conn", connID, "error", err)
		return
	}
	s.runAgent(conn, connID, *result)
}

// acceptHTTP runs the HTTP/1.1 Upgrade handshake (§4.5(b)) on every
// accepted connection.
func (s *server) acceptHTTP(ctx context.Context, ln net.Listener, scheme string) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("accept failed", "error", err)
			continue
		}
		go s.handleHTTP(conn, scheme)
	}
}

func (s *server) handleHTTP(conn net.Conn, scheme string) {
	connID := uuid.NewString()
	defer conn.Close()

	result, err := establish.ServerHTTP(conn, conn, scheme)
	if err != nil {
		log.Debug("upgrade failed", "conn", connID, "error", err)
		respondUpgradeFailure(conn, err)
		return
	}
	s.runAgent(conn, connID, *result)
}

func respondUpgradeFailure(conn net.Conn, err error) {
	body := err.Error()
	resp := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Length: %d\r\nContent-Type: text/plain\r\n\r\n%s",
		http.StatusBadRequest, http.StatusText(http.StatusBadRequest), len(body), body,
	)
	conn.Write([]byte(resp))
}

// connEmitter adapts a net.Conn to dispatch.Emitter.
type connEmitter struct {
	conn net.Conn
}

func (e connEmitter) Emit(frame []byte) error {
	_, err := e.conn.Write(frame)
	return err
}

// runAgent drives one established connection's command loop (§5: one
// goroutine per connection, sequential dispatch).
func (s *server) runAgent(conn net.Conn, connID string, result establish.Result) {
	logger := logging.WithConn(log, connID)

	agent := dispatch.New(connID, dispatch.RoleServer, s.cfg, s.sessions, s.identities, result.Origin, connEmitter{conn})
	if len(result.SessionToken) > 0 {
		if tok, ok := session.TokenFromBytes(result.SessionToken); ok {
			if _, valid := s.sessions.Resume(tok, time.Now()); valid {
				logger.Info("session resumed")
			}
		}
	}

	defer s.sessions.Forget(connID)

	framer := wire.NewFramer(conn)
	for {
		frame, err := framer.Next()
		if err != nil {
			var ferr *wire.FramingError
			if errors.As(err, &ferr) {
				// Post-establishment framing violations drop the one
				// malformed line; the framer has already resynced.
				logger.Debug("frame error", "error", ferr)
				continue
			}
			logger.Debug("connection closed", "error", err)
			return
		}
		if err := agent.Dispatch(frame); err != nil {
			logger.Warn("closing connection", "error", err)
			return
		}
	}
}

func generateIdentity(user string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = config.Default()
	}
	if cfg.IdentityStorePath == "" {
		fmt.Fprintln(os.Stderr, "identity_store_path must be set in config to use keygen")
		os.Exit(1)
	}
	if err := identitystore.EnsureFile(cfg.IdentityStorePath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare identity store: %v\n", err)
		os.Exit(1)
	}

	pub, priv, err := generateEd25519()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate keypair: %v\n", err)
		os.Exit(1)
	}
	if err := identitystore.Append(cfg.IdentityStorePath, user, pub); err != nil {
		fmt.Fprintf(os.Stderr, "failed to append identity: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user: %s\n", user)
	fmt.Printf("public key (hex): %x\n", []byte(pub))
	fmt.Printf("private key (hex, keep secret): %x\n", []byte(priv))
}

func generateEd25519() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}
