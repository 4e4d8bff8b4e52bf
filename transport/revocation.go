package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/tracekit/internal/infrastructure/logging"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/ocsp"
	"golang.org/x/sync/singleflight"
)

// ErrCertificateRevoked fails a handshake whose leaf certificate is revoked.
var ErrCertificateRevoked = errors.New("ingest certificate revoked")

type revocationStatus int

const (
	statusUnknown revocationStatus = iota
	statusGood
	statusRevoked
)

const (
	// unknownTTL bounds how often an unreachable responder is retried
	unknownTTL = time.Minute
	// defaultTTL applies when a response carries no next update
	defaultTTL = time.Hour
)

type revocationEntry struct {
	status  revocationStatus
	expires time.Time
}

// revocationChecker answers "is this leaf revoked" for TLS handshakes.
// Lookups for the same certificate are collapsed with singleflight and
// cached until the responder's next update.
type revocationChecker struct {
	fetch   *resty.Client
	timeout time.Duration
	group   singleflight.Group
	limited *logging.Limited

	mu    sync.Mutex
	cache map[string]revocationEntry
	now   func() time.Time
}

func newRevocationChecker(timeout time.Duration, logger *zap.Logger) *revocationChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &revocationChecker{
		fetch:   resty.New().SetTimeout(timeout).SetRetryCount(0).SetDisableWarn(true).SetLogger(logger.Sugar()),
		timeout: timeout,
		limited: logging.NewLimited(logger, time.Second, 5),
		cache:   make(map[string]revocationEntry),
		now:     time.Now,
	}
}

// VerifyConnection runs after chain verification. It returns an error only
// when the leaf is known to be revoked.
func (r *revocationChecker) VerifyConnection(cs tls.ConnectionState) error {
	if len(cs.VerifiedChains) == 0 || len(cs.VerifiedChains[0]) < 2 {
		return nil
	}
	leaf, issuer := cs.VerifiedChains[0][0], cs.VerifiedChains[0][1]

	if len(cs.OCSPResponse) > 0 {
		resp, err := ocsp.ParseResponseForCert(cs.OCSPResponse, leaf, issuer)
		if err == nil {
			switch resp.Status {
			case ocsp.Revoked:
				return fmt.Errorf("%w: serial %s", ErrCertificateRevoked, leaf.SerialNumber)
			case ocsp.Good:
				return nil
			}
		} else {
			r.limited.Debug("ignoring unparsable stapled OCSP response", zap.Error(err))
		}
	}

	if r.status(leaf, issuer) == statusRevoked {
		return fmt.Errorf("%w: serial %s", ErrCertificateRevoked, leaf.SerialNumber)
	}
	return nil
}

func (r *revocationChecker) status(leaf, issuer *x509.Certificate) revocationStatus {
	key := hex.EncodeToString(issuer.SubjectKeyId) + ":" + leaf.SerialNumber.Text(16)

	if entry, ok := r.cached(key); ok {
		return entry.status
	}

	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		// A flight that finished just before this one may have filled the cache
		if entry, ok := r.cached(key); ok {
			return entry, nil
		}
		entry := r.lookup(leaf, issuer)
		r.mu.Lock()
		r.cache[key] = entry
		r.mu.Unlock()
		return entry, nil
	})
	return v.(revocationEntry).status
}

func (r *revocationChecker) cached(key string) (revocationEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[key]
	if !ok || !r.now().Before(entry.expires) {
		return revocationEntry{}, false
	}
	return entry, true
}

// lookup asks OCSP responders first, then CRL distribution points
func (r *revocationChecker) lookup(leaf, issuer *x509.Certificate) revocationEntry {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if entry, ok := r.lookupOCSP(ctx, leaf, issuer); ok {
		return entry
	}
	if entry, ok := r.lookupCRL(ctx, leaf, issuer); ok {
		return entry
	}
	return revocationEntry{status: statusUnknown, expires: r.now().Add(unknownTTL)}
}

func (r *revocationChecker) lookupOCSP(ctx context.Context, leaf, issuer *x509.Certificate) (revocationEntry, bool) {
	if len(leaf.OCSPServer) == 0 {
		return revocationEntry{}, false
	}

	req, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		r.limited.Debug("cannot build OCSP request", zap.Error(err))
		return revocationEntry{}, false
	}

	for _, server := range leaf.OCSPServer {
		resp, err := r.fetch.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/ocsp-request").
			SetHeader("Accept", "application/ocsp-response").
			SetBody(req).
			Post(server)
		if err != nil || !resp.IsSuccess() {
			r.limited.Debug("OCSP responder unavailable", zap.String("server", server), zap.Error(err))
			continue
		}

		parsed, err := ocsp.ParseResponseForCert(resp.Body(), leaf, issuer)
		if err != nil {
			r.limited.Debug("ignoring bad OCSP response", zap.String("server", server), zap.Error(err))
			continue
		}

		switch parsed.Status {
		case ocsp.Good:
			return revocationEntry{status: statusGood, expires: r.expiry(parsed.NextUpdate)}, true
		case ocsp.Revoked:
			return revocationEntry{status: statusRevoked, expires: r.expiry(parsed.NextUpdate)}, true
		}
	}
	return revocationEntry{}, false
}

func (r *revocationChecker) lookupCRL(ctx context.Context, leaf, issuer *x509.Certificate) (revocationEntry, bool) {
	for _, point := range leaf.CRLDistributionPoints {
		resp, err := r.fetch.R().SetContext(ctx).Get(point)
		if err != nil || !resp.IsSuccess() {
			r.limited.Debug("CRL distribution point unavailable", zap.String("url", point), zap.Error(err))
			continue
		}

		crl, err := x509.ParseRevocationList(resp.Body())
		if err != nil {
			r.limited.Debug("ignoring bad CRL", zap.String("url", point), zap.Error(err))
			continue
		}
		if err := crl.CheckSignatureFrom(issuer); err != nil {
			r.limited.Debug("ignoring CRL with bad signature", zap.String("url", point), zap.Error(err))
			continue
		}

		expires := r.expiry(crl.NextUpdate)
		for _, revoked := range crl.RevokedCertificateEntries {
			if revoked.SerialNumber != nil && revoked.SerialNumber.Cmp(leaf.SerialNumber) == 0 {
				return revocationEntry{status: statusRevoked, expires: expires}, true
			}
		}
		return revocationEntry{status: statusGood, expires: expires}, true
	}
	return revocationEntry{}, false
}

func (r *revocationChecker) expiry(next time.Time) time.Time {
	now := r.now()
	if next.IsZero() || !next.After(now) {
		return now.Add(defaultTTL)
	}
	return next
}
