package httpserver

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func generateSelfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"formgate"},
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:  x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
		},
		BasicConstraintsValid: true,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: derBytes,
	})
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})

	return tls.X509KeyPair(certPEM, keyPEM)
}

type Config struct {
	Addr string
	// TLSAddr enables a second listener with a self-signed certificate.
	TLSAddr string
}

type Server struct {
	log     *logrus.Entry
	handler http.Handler
	cfg     Config
}

func New(logger *logrus.Logger, handler http.Handler, cfg Config) *Server {
	return &Server{
		log:     logger.WithField("component", "http_server"),
		handler: handler,
		cfg:     cfg,
	}
}

// Run serves until ctx is cancelled, then shuts the listeners down
// gracefully. It returns the first listener error.
func (s *Server) Run(ctx context.Context) error {
	var servers []*http.Server

	plain := s.newHTTPServer(s.cfg.Addr)
	servers = append(servers, plain)
	plainLn, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	var tlsServer *http.Server
	var tlsLn net.Listener
	if s.cfg.TLSAddr != "" {
		cert, err := generateSelfSignedCert()
		if err != nil {
			plainLn.Close()
			return err
		}
		tlsServer = s.newHTTPServer(s.cfg.TLSAddr)
		tlsServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		servers = append(servers, tlsServer)
		if tlsLn, err = net.Listen("tcp", s.cfg.TLSAddr); err != nil {
			plainLn.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.WithField("addr", plainLn.Addr().String()).Info("Starting HTTP server")
		return ignoreClosed(plain.Serve(plainLn))
	})
	if tlsServer != nil {
		g.Go(func() error {
			s.log.WithField("addr", tlsLn.Addr().String()).Info("Starting HTTPS server")
			return ignoreClosed(tlsServer.ServeTLS(tlsLn, "", ""))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var firstErr error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		s.log.Info("HTTP servers stopped")
		return firstErr
	})

	return g.Wait()
}

func (s *Server) newHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
