package transport

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/ocsp"
)

type testPKI struct {
	ca     *x509.Certificate
	caKey  crypto.Signer
	leaf   *x509.Certificate
	serial *big.Int
}

func newTestPKI(t *testing.T, ocspURL, crlURL string) *testPKI {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, caKey.Public(), caKey)
	require.NoError(t, err)
	ca, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial := big.NewInt(4242)
	leafTemplate := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "ingest.example.com"},
		DNSNames:     []string{"ingest.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ocspURL != "" {
		leafTemplate.OCSPServer = []string{ocspURL}
	}
	if crlURL != "" {
		leafTemplate.CRLDistributionPoints = []string{crlURL}
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, ca, leafKey.Public(), caKey)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	return &testPKI{ca: ca, caKey: caKey, leaf: leaf, serial: serial}
}

func (p *testPKI) state(stapled []byte) tls.ConnectionState {
	return tls.ConnectionState{
		VerifiedChains: [][]*x509.Certificate{{p.leaf, p.ca}},
		OCSPResponse:   stapled,
	}
}

func (p *testPKI) ocspResponse(t *testing.T, status int) []byte {
	t.Helper()
	template := ocsp.Response{
		Status:       status,
		SerialNumber: p.serial,
		ThisUpdate:   time.Now().Add(-time.Minute),
		NextUpdate:   time.Now().Add(time.Hour),
	}
	if status == ocsp.Revoked {
		template.RevokedAt = time.Now().Add(-time.Minute)
	}
	resp, err := ocsp.CreateResponse(p.ca, p.ca, template, p.caKey)
	require.NoError(t, err)
	return resp
}

func (p *testPKI) crl(t *testing.T, revoked bool) []byte {
	t.Helper()
	template := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Now().Add(-time.Minute),
		NextUpdate: time.Now().Add(time.Hour),
	}
	if revoked {
		template.RevokedCertificateEntries = []x509.RevocationListEntry{
			{SerialNumber: p.serial, RevocationTime: time.Now().Add(-time.Minute)},
		}
	}
	der, err := x509.CreateRevocationList(rand.Reader, template, p.ca, p.caKey)
	require.NoError(t, err)
	return der
}

// responder serves whatever body is stored in it and counts requests
type responder struct {
	*httptest.Server
	mu   sync.Mutex
	body []byte
	hits atomic.Int32
}

func newResponder(t *testing.T) *responder {
	t.Helper()
	r := &responder{}
	r.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		r.hits.Add(1)
		r.mu.Lock()
		body := r.body
		r.mu.Unlock()
		if body == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(r.Close)
	return r
}

func (r *responder) set(body []byte) {
	r.mu.Lock()
	r.body = body
	r.mu.Unlock()
}

func newTestChecker() *revocationChecker {
	return newRevocationChecker(time.Second, zap.NewNop())
}

func TestVerifyConnectionStapledOCSP(t *testing.T) {
	pki := newTestPKI(t, "", "")

	t.Run("revoked", func(t *testing.T) {
		err := newTestChecker().VerifyConnection(pki.state(pki.ocspResponse(t, ocsp.Revoked)))
		assert.ErrorIs(t, err, ErrCertificateRevoked)
	})

	t.Run("good", func(t *testing.T) {
		err := newTestChecker().VerifyConnection(pki.state(pki.ocspResponse(t, ocsp.Good)))
		assert.NoError(t, err)
	})

	t.Run("garbage is tolerated", func(t *testing.T) {
		err := newTestChecker().VerifyConnection(pki.state([]byte("not ocsp")))
		assert.NoError(t, err)
	})
}

func TestVerifyConnectionOCSPResponder(t *testing.T) {
	ocspServer := newResponder(t)
	pki := newTestPKI(t, ocspServer.URL, "")

	ocspServer.set(pki.ocspResponse(t, ocsp.Revoked))
	err := newTestChecker().VerifyConnection(pki.state(nil))
	assert.ErrorIs(t, err, ErrCertificateRevoked)

	ocspServer.set(pki.ocspResponse(t, ocsp.Good))
	err = newTestChecker().VerifyConnection(pki.state(nil))
	assert.NoError(t, err)
}

func TestVerifyConnectionCRL(t *testing.T) {
	crlServer := newResponder(t)
	pki := newTestPKI(t, "", crlServer.URL)

	crlServer.set(pki.crl(t, true))
	err := newTestChecker().VerifyConnection(pki.state(nil))
	assert.ErrorIs(t, err, ErrCertificateRevoked)

	crlServer.set(pki.crl(t, false))
	err = newTestChecker().VerifyConnection(pki.state(nil))
	assert.NoError(t, err)
}

func TestVerifyConnectionToleratesFetchFailures(t *testing.T) {
	ocspServer := newResponder(t)
	crlServer := newResponder(t)
	pki := newTestPKI(t, ocspServer.URL, crlServer.URL)

	// Both responders answer 503
	err := newTestChecker().VerifyConnection(pki.state(nil))
	assert.NoError(t, err)

	// A CRL that does not parse
	crlServer.set([]byte("garbage"))
	err = newTestChecker().VerifyConnection(pki.state(nil))
	assert.NoError(t, err)
}

func TestVerifyConnectionCachesLookups(t *testing.T) {
	crlServer := newResponder(t)
	pki := newTestPKI(t, "", crlServer.URL)
	crlServer.set(pki.crl(t, false))

	checker := newTestChecker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, checker.VerifyConnection(pki.state(nil)))
		}()
	}
	wg.Wait()
	require.NoError(t, checker.VerifyConnection(pki.state(nil)))

	assert.Equal(t, int32(1), crlServer.hits.Load())
}

func TestVerifyConnectionShortChain(t *testing.T) {
	pki := newTestPKI(t, "", "")
	err := newTestChecker().VerifyConnection(tls.ConnectionState{
		VerifiedChains: [][]*x509.Certificate{{pki.leaf}},
	})
	assert.NoError(t, err)
}
