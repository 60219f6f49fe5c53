package ssl

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/tech-arch1tect/datacollector-agent/internal/logging"

	"go.uber.org/zap"
)

const (
	CertFileName = "server.crt"
	KeyFileName  = "server.key"

	certValidity = 365 * 24 * time.Hour
)

// CertificateManager provides the relay's TLS key pair, generating a
// self-signed one on first start when certDir holds none.
type CertificateManager struct {
	certDir string
	logger  *logging.Logger
}

func NewCertificateManager(certDir string, logger *logging.Logger) *CertificateManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CertificateManager{
		certDir: certDir,
		logger:  logger,
	}
}

func (cm *CertificateManager) Paths() (certPath, keyPath string) {
	return filepath.Join(cm.certDir, CertFileName), filepath.Join(cm.certDir, KeyFileName)
}

func (cm *CertificateManager) EnsureCertificates() (string, string, error) {
	certPath, keyPath := cm.Paths()

	if fileExists(certPath) && fileExists(keyPath) {
		if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
			return "", "", fmt.Errorf("existing TLS key pair is unusable: %w", err)
		}
		cm.logger.Info("using existing TLS certificate", zap.String("cert_path", certPath))
		return certPath, keyPath, nil
	}

	cm.logger.Info("generating self-signed TLS certificate",
		zap.String("cert_path", certPath),
		zap.String("key_path", keyPath))

	if err := cm.generateSelfSigned(certPath, keyPath); err != nil {
		return "", "", fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	return certPath, keyPath, nil
}

func (cm *CertificateManager) generateSelfSigned(certPath, keyPath string) error {
	if err := os.MkdirAll(cm.certDir, 0755); err != nil {
		return fmt.Errorf("failed to create certificate directory: %w", err)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Data Collector Agent"},
			CommonName:   "datacollector-agent",
		},
		NotBefore:   now,
		NotAfter:    now.Add(certValidity),
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:    []string{"localhost", "datacollector-agent"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	if err := writePEM(certPath, "CERTIFICATE", certDER, 0644); err != nil {
		return err
	}
	if err := writePEM(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(privateKey), 0600); err != nil {
		return err
	}

	cm.logger.Info("self-signed TLS certificate generated",
		zap.Time("not_after", template.NotAfter))
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to open %s for writing: %w", path, err)
	}
	defer f.Close()

	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
