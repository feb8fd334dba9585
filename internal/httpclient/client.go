// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// ErrInvalidCertificatePem is returned when the CA PEM holds no usable
// certificates.
var ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

// New creates a new http client which will use the optional CA certificate PEM
// if provided, otherwise it will use the installed system CA chain. A zero
// timeout leaves the client without an overall deadline; callers are expected
// to bound requests with a context in that case.
func New(caPEM string, timeout time.Duration) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}

		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}
