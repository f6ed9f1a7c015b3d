// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package tls creates and loads the certificates that secure the gRPC
// transport: a private CA and a server certificate it signs.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// File names inside a certificates directory.
const (
	CAFile         = "root-ca.crt"
	caKeyFile      = "root-ca.key"
	ServerCertFile = "server.crt"
	ServerKeyFile  = "server.key"
)

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// ServerCert holds a server certificate and private key.
type ServerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

func serial() (*big.Int, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, oops.Code("CERT_SERIAL_FAILED").Wrap(err)
	}
	return n, nil
}

// GenerateCA creates a new root CA valid for ten years.
func GenerateCA() (*CA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code("CERT_KEY_FAILED").Wrap(err)
	}
	sn, err := serial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: sn,
		Subject: pkix.Name{
			Organization: []string{"Lorenzo"},
			CommonName:   "Lorenzo CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Code("CERT_CREATE_FAILED").Wrap(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code("CERT_CREATE_FAILED").Wrap(err)
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateServerCert creates a one-year server certificate signed by ca.
// hosts may hold DNS names and IP addresses; localhost and 127.0.0.1 are
// always included.
func GenerateServerCert(ca *CA, hosts ...string) (*ServerCert, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code("CERT_KEY_FAILED").Wrap(err)
	}
	sn, err := serial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: sn,
		Subject: pkix.Name{
			Organization: []string{"Lorenzo"},
			CommonName:   "lorenzo-server",
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1")},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if h != "" && h != "localhost" {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, oops.Code("CERT_CREATE_FAILED").Wrap(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code("CERT_CREATE_FAILED").Wrap(err)
	}
	return &ServerCert{Certificate: cert, PrivateKey: key}, nil
}

// Save writes ca and server into dir.
func Save(dir string, ca *CA, server *ServerCert) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("dir", dir).Wrap(err)
	}
	if err := writePEM(dir, CAFile, "CERTIFICATE", ca.Certificate.Raw); err != nil {
		return err
	}
	if err := writeKey(dir, caKeyFile, ca.PrivateKey); err != nil {
		return err
	}
	if err := writePEM(dir, ServerCertFile, "CERTIFICATE", server.Certificate.Raw); err != nil {
		return err
	}
	return writeKey(dir, ServerKeyFile, server.PrivateKey)
}

func writeKey(dir, name string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("file", name).Wrap(err)
	}
	return writePEM(dir, name, "EC PRIVATE KEY", der)
}

func writePEM(dir, name, typ string, der []byte) error {
	data := pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("file", name).Wrap(err)
	}
	return nil
}

// Ensure creates a CA and server certificate in dir unless a server
// certificate is already there. It reports whether it generated them.
func Ensure(dir string, hosts ...string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, ServerCertFile))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, oops.Code("CERT_LOAD_FAILED").With("dir", dir).Wrap(err)
	}

	ca, err := GenerateCA()
	if err != nil {
		return false, err
	}
	server, err := GenerateServerCert(ca, hosts...)
	if err != nil {
		return false, err
	}
	if err := Save(dir, ca, server); err != nil {
		return false, err
	}
	return true, nil
}

// ServerConfig loads the server certificate from dir.
func ServerConfig(dir string) (*cryptotls.Config, error) {
	cert, err := cryptotls.LoadX509KeyPair(filepath.Join(dir, ServerCertFile), filepath.Join(dir, ServerKeyFile))
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("dir", dir).Wrap(err)
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		MinVersion:   cryptotls.VersionTLS13,
	}, nil
}

// ClientConfig trusts the CA certificate in caFile. serverName overrides
// the name verified against the server certificate when non-empty.
func ClientConfig(caFile, serverName string) (*cryptotls.Config, error) {
	data, err := os.ReadFile(filepath.Clean(caFile))
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("file", caFile).Wrap(err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, oops.Code("CERT_LOAD_FAILED").With("file", caFile).Errorf("no certificate found")
	}
	return &cryptotls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: cryptotls.VersionTLS13,
	}, nil
}
