package certs

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}

func TestFileManager_GetOrCreateCertificate(t *testing.T) {
	tests := []struct {
		setup         func(t *testing.T, certDir string)
		validate      func(t *testing.T, first *x509.Certificate, cert *x509.Certificate)
		name          string
		errorContains string
		hosts         []string
		wantErr       bool
	}{
		{
			name: "creates certificate when none exists",
			validate: func(t *testing.T, _ *x509.Certificate, cert *x509.Certificate) {
				t.Helper()
				assert.Equal(t, "artmap", cert.Subject.Organization[0])
				assert.NoError(t, cert.VerifyHostname("localhost"))
				assert.NoError(t, cert.VerifyHostname("127.0.0.1"))
				assert.True(t, cert.NotAfter.After(time.Now().Add(364*24*time.Hour)))
			},
		},
		{
			name:  "covers extra hosts",
			hosts: []string{"review.workshop.lan", "192.168.10.5"},
			validate: func(t *testing.T, _ *x509.Certificate, cert *x509.Certificate) {
				t.Helper()
				assert.NoError(t, cert.VerifyHostname("review.workshop.lan"))
				assert.NoError(t, cert.VerifyHostname("192.168.10.5"))
			},
		},
		{
			name: "reuses existing valid certificate",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				_, err := NewFileManager(certDir).GetOrCreateCertificate()
				require.NoError(t, err)
			},
			validate: func(t *testing.T, first *x509.Certificate, cert *x509.Certificate) {
				t.Helper()
				require.NotNil(t, first)
				assert.Equal(t, first.SerialNumber, cert.SerialNumber)
			},
		},
		{
			name: "regenerates when a new host is configured",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				_, err := NewFileManager(certDir).GetOrCreateCertificate()
				require.NoError(t, err)
			},
			hosts: []string{"review.workshop.lan"},
			validate: func(t *testing.T, first *x509.Certificate, cert *x509.Certificate) {
				t.Helper()
				assert.NotEqual(t, first.SerialNumber, cert.SerialNumber)
				assert.NoError(t, cert.VerifyHostname("review.workshop.lan"))
			},
		},
		{
			name: "regenerates unreadable certificate",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				require.NoError(t, os.MkdirAll(certDir, 0o700))
				require.NoError(t, os.WriteFile(filepath.Join(certDir, certFileName), []byte("invalid certificate data"), 0o600))
				require.NoError(t, os.WriteFile(filepath.Join(certDir, keyFileName), []byte("invalid key data"), 0o600))
			},
			validate: func(t *testing.T, _ *x509.Certificate, cert *x509.Certificate) {
				t.Helper()
				assert.True(t, cert.NotBefore.After(time.Now().Add(-2*time.Minute)))
			},
		},
		{
			name: "fails when the directory is a file",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				require.NoError(t, os.MkdirAll(filepath.Dir(certDir), 0o700))
				require.NoError(t, os.WriteFile(certDir, []byte("not a directory"), 0o600))
			},
			wantErr:       true,
			errorContains: "failed to check certificate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certDir := filepath.Join(t.TempDir(), "certs")
			if tt.setup != nil {
				tt.setup(t, certDir)
			}

			var first *x509.Certificate
			if data, err := os.ReadFile(filepath.Join(certDir, certFileName)); err == nil {
				if existing, err := tls.X509KeyPair(data, mustRead(t, filepath.Join(certDir, keyFileName))); err == nil {
					first = leaf(t, existing)
				}
			}

			cert, err := NewFileManager(certDir, tt.hosts...).GetOrCreateCertificate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			tt.validate(t, first, leaf(t, cert))
		})
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestFileManager_RenewsBeforeExpiry(t *testing.T) {
	certDir := t.TempDir()
	m := NewFileManager(certDir)

	first, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(validity - renewBefore/2) }
	second, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	assert.NotEqual(t, leaf(t, first).SerialNumber, leaf(t, second).SerialNumber)
}

func TestFileManager_CertificateExists(t *testing.T) {
	certDir := t.TempDir()
	m := NewFileManager(certDir)

	exists, err := m.CertificateExists()
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(filepath.Join(certDir, certFileName), []byte("x"), 0o600))
	exists, err = m.CertificateExists()
	require.NoError(t, err)
	assert.False(t, exists, "a certificate without its key does not count")

	_, err = m.GetOrCreateCertificate()
	require.NoError(t, err)
	exists, err = m.CertificateExists()
	require.NoError(t, err)
	assert.True(t, exists)

	info, err := os.Stat(filepath.Join(certDir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
