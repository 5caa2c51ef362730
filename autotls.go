package ember

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/indigo-web/ember/internal/address"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/acme/autocert"
)

const cacheDirName = "ember-autocert"

func autoTLSConfig(addr string, domains []string, log zerolog.Logger) (*tls.Config, error) {
	cache := cacheDir()

	if address.IsLocalhost(addr) {
		cert, key, err := selfSignedCert(cache)
		if err != nil {
			return nil, err
		}

		certificate, err := tls.LoadX509KeyPair(cert, key)
		if err != nil {
			return nil, err
		}

		return &tls.Config{Certificates: []tls.Certificate{certificate}}, nil
	}

	m := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
	}

	if len(domains) > 0 {
		m.HostPolicy = autocert.HostWhitelist(domains...)
	}

	if err := os.MkdirAll(cache, 0o700); err != nil {
		log.Warn().Err(err).Msg("auto https: not using a certificates cache")
	} else {
		m.Cache = autocert.DirCache(cache)
	}

	return m.TLSConfig(), nil
}

func cacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, cacheDirName)
	}

	return filepath.Join(os.TempDir(), cacheDirName)
}

// selfSignedCert returns the paths of a certificate for localhost, generating one if the
// cache has none.
func selfSignedCert(dir string) (cert, key string, err error) {
	cert, key = filepath.Join(dir, "localhost.crt"), filepath.Join(dir, "localhost.key")
	if fileExists(cert) && fileExists(key) {
		return cert, key, nil
	}

	if err = os.MkdirAll(dir, 0o700); err != nil {
		return "", "", err
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", err
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"Localhost"}},
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return "", "", err
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", err
	}

	if err = writePEM(cert, "CERTIFICATE", der); err != nil {
		return "", "", err
	}

	if err = writePEM(key, "PRIVATE KEY", privBytes); err != nil {
		return "", "", err
	}

	return cert, key, nil
}

func writePEM(filename, blockType string, data []byte) error {
	return os.WriteFile(filename, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: data}), 0o600)
}

func fileExists(filename string) bool {
	stat, err := os.Stat(filename)
	return err == nil && !stat.IsDir()
}
