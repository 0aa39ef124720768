package security

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

// LTVData is revocation material gathered at signing time, embedded so a
// validator can verify the chain long after the responders disappear.
type LTVData struct {
	OCSPs [][]byte
	CRLs  [][]byte
}

// CollectLTV fetches OCSP responses and CRLs for every issued
// certificate in the chain. Collection is best effort: an unreachable
// responder skips that certificate rather than failing the signing run.
// A nil client gets a default with a 10 second timeout.
func CollectLTV(ctx context.Context, chain []*x509.Certificate, client *http.Client) (*LTVData, error) {
	if len(chain) < 2 {
		return nil, fmt.Errorf("chain too short to collect revocation data")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	out := &LTVData{}
	for i := 0; i < len(chain)-1; i++ {
		cert, issuer := chain[i], chain[i+1]
		if resp, err := fetchOCSP(ctx, client, cert, issuer); err == nil {
			out.OCSPs = append(out.OCSPs, resp)
		}
		if crl, err := fetchCRL(ctx, client, cert, issuer); err == nil {
			out.CRLs = append(out.CRLs, crl)
		}
	}
	return out, nil
}

func fetchOCSP(ctx context.Context, client *http.Client, cert, issuer *x509.Certificate) ([]byte, error) {
	if len(cert.OCSPServer) == 0 {
		return nil, fmt.Errorf("no ocsp responder")
	}
	req, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{
		Hash: crypto.SHA1, // SHA1 is standard for OCSP requests
	})
	if err != nil {
		return nil, fmt.Errorf("create ocsp request: %w", err)
	}

	var lastErr error
	for _, serverURL := range cert.OCSPServer {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", serverURL, bytes.NewReader(req))
		if err != nil {
			lastErr = err
			continue
		}
		httpReq.Header.Set("Content-Type", "application/ocsp-request")
		httpReq.Header.Set("Accept", "application/ocsp-response")

		resp, err := client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("ocsp request failed: %w", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read ocsp response: %w", err)
			continue
		}
		if _, err := ocsp.ParseResponse(body, issuer); err != nil {
			lastErr = fmt.Errorf("parse ocsp response: %w", err)
			continue
		}
		return body, nil
	}
	return nil, lastErr
}

func fetchCRL(ctx context.Context, client *http.Client, cert, issuer *x509.Certificate) ([]byte, error) {
	if len(cert.CRLDistributionPoints) == 0 {
		return nil, fmt.Errorf("no crl distribution point")
	}
	var lastErr error
	for _, crlURL := range cert.CRLDistributionPoints {
		req, err := http.NewRequestWithContext(ctx, "GET", crlURL, nil)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("crl request failed: %w", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read crl: %w", err)
			continue
		}
		crl, err := x509.ParseRevocationList(body)
		if err != nil {
			lastErr = fmt.Errorf("parse crl: %w", err)
			continue
		}
		if err := crl.CheckSignatureFrom(issuer); err != nil {
			lastErr = fmt.Errorf("crl signature invalid: %w", err)
			continue
		}
		return body, nil
	}
	return nil, lastErr
}
